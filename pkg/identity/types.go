package identity

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user matches a lookup.
	ErrNotFound = errors.New("user not found")

	// ErrNoMatchingUser is returned when an assertion's identity has no
	// local account and provisioning is disabled.
	ErrNoMatchingUser = errors.New("no matching user for identity")

	// ErrInactive is returned when the matched account is deactivated.
	ErrInactive = errors.New("user is inactive")
)

// User is a local account.
type User struct {
	ID          int64
	Username    string
	Email       string
	FirstName   string
	LastName    string
	IsActive    bool
	IsStaff     bool
	IsSuperuser bool
	Groups      []string
	DateJoined  time.Time
	LastLogin   *time.Time
}

// Claims is the identity extracted from a validated assertion. Each mapped
// field holds the first value of its source attribute; Raw preserves every
// attribute with all values.
type Claims struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Raw       map[string][]string
}
