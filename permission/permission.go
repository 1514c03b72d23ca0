// Package permission decides whether a principal may perform an action on a
// process or task. It combines direct assignment, derived group membership,
// and the engine's candidate lists; it never mutates state.
package permission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/directory"
	"github.com/lucas-luzj/magic-crm/engine"
	"github.com/lucas-luzj/magic-crm/internal/log"
)

type ResolverOption func(*Resolver)

func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithDirectory lets the resolver consult directory memberships in addition
// to locally derived groups. Optional; without it only derived groups are
// checked.
func WithDirectory(dir directory.Directory) ResolverOption {
	return func(r *Resolver) {
		r.dir = dir
	}
}

type Resolver struct {
	engine engine.Engine
	dir    directory.Directory

	logger *slog.Logger
}

func NewResolver(e engine.Engine, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		engine: e,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// CanActOnProcess applies the fixed role/action table. It is total over the
// closed Action set: every pair yields a defined boolean.
func (r *Resolver) CanActOnProcess(p *core.Principal, definitionKey string, action core.Action) bool {
	if p.Role == core.RoleAdmin {
		return true
	}

	switch action {
	case core.ActionRead:
		return p.Active
	case core.ActionStart:
		return p.Active && (p.Role == core.RoleUser || p.Role == core.RoleManager)
	case core.ActionManage:
		return p.Active && p.Role == core.RoleManager
	default:
		return false
	}
}

// CanActOnTask checks, cheapest first: active flag, admin role, direct
// assignment, engine candidate users, then derived group membership against
// the engine candidate groups. At most two derived groups exist per
// principal, bounding the group check.
func (r *Resolver) CanActOnTask(ctx context.Context, p *core.Principal, taskID string, action core.Action) (bool, error) {
	if !p.Active {
		return false, nil
	}

	if p.Role == core.RoleAdmin {
		return true, nil
	}

	task, err := r.engine.Task(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("reading task: %w", err)
	}

	if task.Assignee == p.ID {
		return true, nil
	}

	if task.HasCandidateUser(p.ID) {
		return true, nil
	}

	return task.HasCandidateGroup(r.groups(ctx, p)), nil
}

// groups returns the principal's derived groups, unioned with the directory's
// role and department memberships when a directory is configured. The
// directory may lag behind a recent principal mutation; the locally derived
// groups cover that window. Directory read failures degrade to derived groups
// only, since this path must stay read-only and non-fatal.
func (r *Resolver) groups(ctx context.Context, p *core.Principal) []core.Group {
	groups := core.DerivedGroups(p)

	if r.dir == nil {
		return groups
	}

	for _, kind := range []core.GroupKind{core.GroupKindRole, core.GroupKindDepartment} {
		members, err := r.dir.ListMemberships(ctx, p.ID, kind)
		if err != nil {
			r.logger.WarnContext(ctx, "Falling back to derived groups",
				log.PrincipalIDKey, p.ID,
				"error", err,
			)

			return core.DerivedGroups(p)
		}

		for key := range members {
			if !hasGroup(groups, key) {
				groups = append(groups, core.Group{Key: key, Kind: kind})
			}
		}
	}

	return groups
}

func hasGroup(groups []core.Group, key string) bool {
	for _, g := range groups {
		if g.Key == key {
			return true
		}
	}

	return false
}
