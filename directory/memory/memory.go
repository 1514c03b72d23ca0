package memory

import (
	"context"
	"sync"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/directory"
)

type group struct {
	kind        core.GroupKind
	displayName string
	members     map[string]struct{}
}

// memoryDirectory is an in-memory Directory for tests and embedded
// deployments.
type memoryDirectory struct {
	mu sync.Mutex

	principals map[string]directory.Attributes
	groups     map[string]*group
}

var _ directory.Directory = (*memoryDirectory)(nil)

func NewMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{
		principals: map[string]directory.Attributes{},
		groups:     map[string]*group{},
	}
}

func (d *memoryDirectory) EnsurePrincipal(ctx context.Context, id string, attrs directory.Attributes) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	merged := directory.Attributes{}
	for k, v := range d.principals[id] {
		merged[k] = v
	}
	for k, v := range attrs {
		merged[k] = v
	}

	d.principals[id] = merged

	return nil
}

func (d *memoryDirectory) DeletePrincipal(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.principals, id)

	for _, g := range d.groups {
		delete(g.members, id)
	}

	return nil
}

func (d *memoryDirectory) EnsureGroup(ctx context.Context, key string, kind core.GroupKind, displayName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.groups[key]; !ok {
		d.groups[key] = &group{
			kind:        kind,
			displayName: displayName,
			members:     map[string]struct{}{},
		}
	}

	return nil
}

func (d *memoryDirectory) SetMembership(ctx context.Context, principalID, groupKey string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.groups[groupKey]
	if !ok {
		return core.ErrGroupNotFound
	}

	g.members[principalID] = struct{}{}

	return nil
}

func (d *memoryDirectory) ClearMembership(ctx context.Context, principalID, groupKey string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if g, ok := d.groups[groupKey]; ok {
		delete(g.members, principalID)
	}

	return nil
}

func (d *memoryDirectory) ListMemberships(ctx context.Context, principalID string, kind core.GroupKind) (map[string]struct{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := map[string]struct{}{}

	for key, g := range d.groups {
		if g.kind != kind {
			continue
		}

		if _, ok := g.members[principalID]; ok {
			keys[key] = struct{}{}
		}
	}

	return keys, nil
}
