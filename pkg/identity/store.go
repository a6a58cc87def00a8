package identity

import (
	"context"
	"time"
)

// Store persists user accounts. Implementations must return ErrNotFound
// from FindByEmail when no account matches.
type Store interface {
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// Create inserts a new user and fills in ID and DateJoined.
	Create(ctx context.Context, user *User) error

	// AssignGroups adds the user to the named groups, creating groups
	// that do not exist yet.
	AssignGroups(ctx context.Context, userID int64, groups []string) error

	// RecordLogin updates the user's last login timestamp.
	RecordLogin(ctx context.Context, userID int64, at time.Time) error

	Ping(ctx context.Context) error
	Close() error
}
