// Package auth resolves bearer tokens into marketplace identities.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-gig-live/pkg/jwt"
	"github.com/weiawesome/wes-gig-live/pkg/log"
	"github.com/weiawesome/wes-gig-live/pkg/middleware"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/repository"
)

// TokenValidator verifies a token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// Resolver checks the token, then loads the user it names.
type Resolver struct {
	tokens TokenValidator
	users  repository.UserRepository
}

func NewResolver(tokens TokenValidator, users repository.UserRepository) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve returns middleware.ErrNoToken, ErrInvalidToken or ErrUnauthorized
// for client-caused failures. Any other error is a store failure.
func (r *Resolver) Resolve(ctx context.Context, token string) (*domain.Identity, error) {
	l := log.Ctx(ctx)
	if token == "" {
		return nil, middleware.ErrNoToken
	}

	claims, err := r.tokens.ValidateToken(token)
	if err != nil {
		l.Debug().Err(err).Msg("token rejected")
		return nil, middleware.ErrInvalidToken
	}

	user, err := r.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			l.Debug().Str(log.FieldUserID, claims.UserID()).Msg("token subject not found")
			return nil, middleware.ErrUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.Suspended {
		l.Debug().Str(log.FieldUserID, user.ID).Msg("suspended user rejected")
		return nil, middleware.ErrUnauthorized
	}

	// The stored role wins over the token claim; roles change without reissue.
	return &domain.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Name:   user.Name,
	}, nil
}

// Authenticate implements middleware.Authenticator.
func (r *Resolver) Authenticate(ctx context.Context, token string) (*middleware.Principal, error) {
	id, err := r.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return &middleware.Principal{
		UserID: id.UserID,
		Email:  id.Email,
		Role:   id.Role,
		Name:   id.Name,
	}, nil
}
