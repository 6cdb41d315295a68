package storage

import (
	"context"

	"github.com/mcoot/roomchat/internal/model"
)

// Storage defines the interface for session persistence
type Storage interface {
	// SaveSession stores or replaces a session keyed by its token
	SaveSession(ctx context.Context, session *model.Session) error
	// GetSession returns model.ErrSessionNotFound when no session has the token
	GetSession(ctx context.Context, token string) (*model.Session, error)
	// DeleteSession is a no-op when the token is unknown
	DeleteSession(ctx context.Context, token string) error
}
