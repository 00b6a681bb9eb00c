// Package sessions keeps server-side login sessions and the signed cookie that points at them.
package sessions

import (
	"context"
	"errors"

	"github.com/jjudge-oj/accounts/types"
)

var (
	// ErrNotFound means the request carries no live session.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidToken means the session cookie failed verification.
	ErrInvalidToken = errors.New("invalid session token")
)

// Store persists sessions by ID.
type Store interface {
	Get(ctx context.Context, id string) (types.Session, error)
	Save(ctx context.Context, session types.Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}
