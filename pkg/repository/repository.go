package repository

import (
	"context"

	"github.com/m-mizutani/sahayak/pkg/model"
)

// SessionStore persists the session identifier of one client profile.
type SessionStore interface {
	// GetSessionID returns the stored identifier. found is false when nothing is stored yet.
	GetSessionID(ctx context.Context) (id model.SessionID, found bool, err error)

	// PutSessionID stores the identifier, replacing any previous value
	PutSessionID(ctx context.Context, id model.SessionID) error

	// DeleteSessionID removes the stored identifier. Deleting a missing value is not an error.
	DeleteSessionID(ctx context.Context) error
}
