package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"takealot_sync/config"
	"takealot_sync/models"
)

// Authenticator resolves a bearer token to the seller it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

var ErrInvalidToken = fmt.Errorf("%w: invalid token", models.ErrUnauthorized)

// New builds the authenticator selected by AUTH_MODE.
func New(cfg config.AuthConfig) (Authenticator, error) {
	switch cfg.Mode {
	case "jwt":
		return NewJWTAuthenticator(cfg.JWTSecret), nil
	case "supabase":
		return NewSupabaseAuthenticator(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	case "static":
		return StaticAuthenticator{UserID: cfg.StaticUserID}, nil
	default:
		return nil, fmt.Errorf("%w: unknown auth mode %q", models.ErrConfiguration, cfg.Mode)
	}
}

// StaticAuthenticator maps every request to one fixed seller and needs no
// token. Meant for single-tenant installs and local development.
type StaticAuthenticator struct {
	UserID uuid.UUID
}

func (s StaticAuthenticator) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	if s.UserID == uuid.Nil {
		return uuid.Nil, ErrInvalidToken
	}
	return s.UserID, nil
}

func parseSubject(sub string) (uuid.UUID, error) {
	if sub == "" {
		return uuid.Nil, errors.Join(ErrInvalidToken, errors.New("missing subject"))
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidToken, fmt.Errorf("subject is not a uuid: %w", err))
	}
	return id, nil
}
