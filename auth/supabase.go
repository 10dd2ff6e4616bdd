package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"takealot_sync/models"
)

// SupabaseAuthenticator asks the Supabase auth server who owns a token.
// Slower than local JWT verification but honours revoked sessions.
type SupabaseAuthenticator struct {
	client *supabase.Client
}

func NewSupabaseAuthenticator(url, anonKey string) (*SupabaseAuthenticator, error) {
	client, err := supabase.NewClient(url, anonKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: supabase client: %v", models.ErrConfiguration, err)
	}
	return &SupabaseAuthenticator{client: client}, nil
}

func (a *SupabaseAuthenticator) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrInvalidToken
	}

	user, err := a.client.Auth.WithToken(token).GetUser()
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidToken, err)
	}
	if user == nil || user.ID == uuid.Nil {
		return uuid.Nil, ErrInvalidToken
	}
	return user.ID, nil
}
