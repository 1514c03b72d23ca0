// Package identity keeps the identity directory's derived group memberships
// converged with the CRM's principal and department state.
package identity

import (
	"context"

	"github.com/lucas-luzj/magic-crm/core"
)

// PrincipalSource reads current, committed CRM principal and department
// state. Reconciliation always reads through this interface instead of
// trusting event payloads, so stale or reordered events still converge.
type PrincipalSource interface {
	// Principal returns the principal, or core.ErrPrincipalNotFound if it
	// was deleted.
	Principal(ctx context.Context, id string) (*core.Principal, error)

	// Department returns the department, or core.ErrDepartmentNotFound.
	Department(ctx context.Context, id string) (*core.Department, error)
}

// PrincipalLister enumerates all principal ids. Optional capability of a
// PrincipalSource, used by the stale-membership sweep.
type PrincipalLister interface {
	PrincipalIDs(ctx context.Context) ([]string, error)
}
