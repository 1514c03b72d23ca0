package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/directory"
	"github.com/lucas-luzj/magic-crm/internal/log"
	"github.com/lucas-luzj/magic-crm/internal/metrickeys"
	im "github.com/lucas-luzj/magic-crm/internal/metrics"
	"github.com/lucas-luzj/magic-crm/metrics"
)

type ReconcilerOption func(*Reconciler)

func WithLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithMetrics(client metrics.Client) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = client
	}
}

// Reconciler makes the identity directory's role and department group
// memberships for a principal match the principal's current CRM state.
// Reconcile is idempotent and safe to run concurrently and repeatedly.
type Reconciler struct {
	dir directory.Directory
	src PrincipalSource

	logger  *slog.Logger
	metrics metrics.Client
}

func NewReconciler(dir directory.Directory, src PrincipalSource, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		dir:     dir,
		src:     src,
		logger:  slog.Default(),
		metrics: im.NewNoopMetricsClient(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Reconcile converges the directory state for the given principal. Deleted or
// deactivated principals are removed from the directory entirely. Directory
// failures abort the run; a later run converges from any partial state.
func (r *Reconciler) Reconcile(ctx context.Context, principalID string) error {
	err := r.reconcile(ctx, principalID)
	if err != nil {
		r.metrics.Counter(metrickeys.ReconcileFailed, metrics.Tags{}, 1)

		r.logger.ErrorContext(ctx, "Reconciling principal failed",
			log.PrincipalIDKey, principalID,
			"error", err,
		)

		return err
	}

	r.metrics.Counter(metrickeys.ReconcileProcessed, metrics.Tags{}, 1)

	return nil
}

func (r *Reconciler) reconcile(ctx context.Context, principalID string) error {
	p, err := r.src.Principal(ctx, principalID)
	if err != nil && !errors.Is(err, core.ErrPrincipalNotFound) {
		return fmt.Errorf("reading principal: %w", err)
	}

	if p == nil || !p.Active {
		if err := r.dir.DeletePrincipal(ctx, principalID); err != nil {
			return &core.DirectoryError{Op: "deletePrincipal", Err: err}
		}

		r.logger.DebugContext(ctx, "Removed principal from directory", log.PrincipalIDKey, principalID)

		return nil
	}

	desired, err := r.desiredGroups(ctx, p)
	if err != nil {
		return err
	}

	if err := r.dir.EnsurePrincipal(ctx, p.ID, directory.Attributes{
		"role": string(p.Role),
	}); err != nil {
		return &core.DirectoryError{Op: "ensurePrincipal", Err: err}
	}

	for _, g := range desired {
		if err := r.dir.EnsureGroup(ctx, g.Key, g.Kind, g.DisplayName); err != nil {
			return &core.DirectoryError{Op: "ensureGroup", Err: err}
		}
	}

	// Diff current role and department memberships against the desired set.
	// Other membership kinds are left untouched.
	for _, kind := range []core.GroupKind{core.GroupKindRole, core.GroupKindDepartment} {
		current, err := r.dir.ListMemberships(ctx, p.ID, kind)
		if err != nil {
			return &core.DirectoryError{Op: "listMemberships", Err: err}
		}

		for key := range current {
			if !containsGroup(desired, key) {
				if err := r.dir.ClearMembership(ctx, p.ID, key); err != nil {
					return &core.DirectoryError{Op: "clearMembership", Err: err}
				}
			}
		}

		for _, g := range desired {
			if g.Kind != kind {
				continue
			}

			if _, ok := current[g.Key]; !ok {
				if err := r.dir.SetMembership(ctx, p.ID, g.Key); err != nil {
					return &core.DirectoryError{Op: "setMembership", Err: err}
				}
			}
		}
	}

	return nil
}

// desiredGroups computes the derived groups for the principal, validating the
// department parent chain so a violated tree invariant fails instead of
// looping.
func (r *Reconciler) desiredGroups(ctx context.Context, p *core.Principal) ([]core.Group, error) {
	if p.DepartmentID != "" {
		lookup := func(id string) (core.Department, bool) {
			d, err := r.src.Department(ctx, id)
			if err != nil {
				return core.Department{}, false
			}

			return *d, true
		}

		if _, err := core.DepartmentChain(lookup, p.DepartmentID); err != nil {
			return nil, fmt.Errorf("validating department chain: %w", err)
		}
	}

	return core.DerivedGroups(p), nil
}

func containsGroup(groups []core.Group, key string) bool {
	for _, g := range groups {
		if g.Key == key {
			return true
		}
	}

	return false
}
