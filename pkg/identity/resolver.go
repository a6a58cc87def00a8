package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/Tesorio/saml2auth/pkg/observability"
)

// ProvisioningPolicy controls whether and how unmatched identities become
// new accounts.
type ProvisioningPolicy struct {
	// Enabled allows creating accounts for identities with no local user.
	// When false, an unmatched login fails.
	Enabled bool

	// Groups are assigned to every provisioned account.
	Groups []string

	// Flags applied to provisioned accounts.
	ActiveFlag bool
	StaffFlag  bool
	SuperFlag  bool
}

// Hooks are deployment extension points. Both run synchronously; an error
// from either aborts the login. Hooks receive the full claim set from
// the assertion, raw attribute bag included.
type Hooks struct {
	// AfterUserCreated runs once when an account is provisioned.
	AfterUserCreated func(ctx context.Context, user *User, claims Claims) error

	// BeforeLogin runs when an existing account matches, before the
	// activation check. It does not run for just-provisioned accounts.
	BeforeLogin func(ctx context.Context, user *User, claims Claims) error
}

// Resolver matches assertion claims to local accounts.
type Resolver struct {
	store  Store
	policy ProvisioningPolicy
	hooks  Hooks
}

// NewResolver creates a resolver with the given store and policy.
func NewResolver(store Store, policy ProvisioningPolicy, hooks Hooks) *Resolver {
	return &Resolver{
		store:  store,
		policy: policy,
		hooks:  hooks,
	}
}

// Resolve maps claims to a user account. It returns ErrNoMatchingUser when
// no account matches and provisioning is disabled, and ErrInactive when the
// matched account is deactivated. An inactive account is never reactivated
// by a login, and a provisioned account honors the policy's active flag.
func (r *Resolver) Resolve(ctx context.Context, claims Claims) (*User, error) {
	logger := observability.FromContext(ctx).WithField("email", claims.Email)

	user, err := r.store.FindByEmail(ctx, claims.Email)
	switch {
	case err == nil:
		logger.WithField("user_id", user.ID).Debug("matched existing user")
		if r.hooks.BeforeLogin != nil {
			if err := r.hooks.BeforeLogin(ctx, user, claims); err != nil {
				return nil, fmt.Errorf("before-login hook: %w", err)
			}
		}
	case err == ErrNotFound:
		if !r.policy.Enabled {
			logger.Info("no matching user and provisioning is disabled")
			return nil, ErrNoMatchingUser
		}
		user, err = r.provision(ctx, claims)
		if err != nil {
			return nil, err
		}
		logger.WithField("user_id", user.ID).Info("provisioned new user")
	default:
		return nil, err
	}

	if !user.IsActive {
		logger.WithField("user_id", user.ID).Info("rejecting inactive user")
		return nil, ErrInactive
	}

	now := time.Now().UTC()
	if err := r.store.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now

	return user, nil
}

func (r *Resolver) provision(ctx context.Context, claims Claims) (*User, error) {
	username := claims.Username
	if username == "" {
		username = claims.Email
	}

	user := &User{
		Username:    username,
		Email:       claims.Email,
		FirstName:   claims.FirstName,
		LastName:    claims.LastName,
		IsActive:    r.policy.ActiveFlag,
		IsStaff:     r.policy.StaffFlag,
		IsSuperuser: r.policy.SuperFlag,
	}
	if err := r.store.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := r.store.AssignGroups(ctx, user.ID, r.policy.Groups); err != nil {
		return nil, err
	}
	user.Groups = append([]string(nil), r.policy.Groups...)

	if r.hooks.AfterUserCreated != nil {
		if err := r.hooks.AfterUserCreated(ctx, user, claims); err != nil {
			return nil, fmt.Errorf("after-user-created hook: %w", err)
		}
	}

	return user, nil
}
