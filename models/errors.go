package models

import "errors"

var (
	ErrConfiguration  = errors.New("configuration error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrMissingOfferID = errors.New("no Takealot offer ID")
	ErrInvalidRequest = errors.New("invalid request")
	ErrPersistence    = errors.New("persistence error")
)
