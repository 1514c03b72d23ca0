package directory

import (
	"context"

	"github.com/lucas-luzj/magic-crm/core"
)

// Attributes are the principal attributes pushed into the directory.
type Attributes map[string]string

// Directory is the capability contract this module requires from an identity
// directory. All operations are idempotent: ensuring an existing principal or
// group, or setting an existing membership, succeeds without effect.
type Directory interface {
	// EnsurePrincipal creates the principal if absent and updates its
	// attributes otherwise.
	EnsurePrincipal(ctx context.Context, id string, attrs Attributes) error

	// DeletePrincipal removes the principal and all of its memberships.
	// Deleting an absent principal is not an error.
	DeletePrincipal(ctx context.Context, id string) error

	// EnsureGroup creates the group if absent.
	EnsureGroup(ctx context.Context, key string, kind core.GroupKind, displayName string) error

	// SetMembership adds the principal to the group.
	SetMembership(ctx context.Context, principalID, groupKey string) error

	// ClearMembership removes the principal from the group.
	ClearMembership(ctx context.Context, principalID, groupKey string) error

	// ListMemberships returns the keys of all groups of the given kind the
	// principal is a member of.
	ListMemberships(ctx context.Context, principalID string, kind core.GroupKind) (map[string]struct{}, error)
}
