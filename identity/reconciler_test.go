package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/directory"
	"github.com/lucas-luzj/magic-crm/directory/memory"
)

type fakeSource struct {
	mu sync.Mutex

	principals  map[string]*core.Principal
	departments map[string]*core.Department
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		principals:  map[string]*core.Principal{},
		departments: map[string]*core.Department{},
	}
}

func (s *fakeSource) put(p *core.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *p
	s.principals[p.ID] = &c
}

func (s *fakeSource) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.principals, id)
}

func (s *fakeSource) Principal(ctx context.Context, id string) (*core.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.principals[id]
	if !ok {
		return nil, core.ErrPrincipalNotFound
	}

	c := *p

	return &c, nil
}

func (s *fakeSource) Department(ctx context.Context, id string) (*core.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.departments[id]
	if !ok {
		return nil, core.ErrDepartmentNotFound
	}

	c := *d

	return &c, nil
}

func (s *fakeSource) PrincipalIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id := range s.principals {
		ids = append(ids, id)
	}

	return ids, nil
}

func memberships(t *testing.T, dir directory.Directory, principalID string) map[string]struct{} {
	t.Helper()

	all := map[string]struct{}{}

	for _, kind := range []core.GroupKind{core.GroupKindRole, core.GroupKindDepartment} {
		keys, err := dir.ListMemberships(context.Background(), principalID, kind)
		require.NoError(t, err)

		for k := range keys {
			all[k] = struct{}{}
		}
	}

	return all
}

func Test_Reconcile_Idempotent(t *testing.T) {
	dir := memory.NewMemoryDirectory()
	src := newFakeSource()
	src.departments["7"] = &core.Department{ID: "7"}
	src.put(&core.Principal{ID: "u1", Role: core.RoleUser, DepartmentID: "7", Active: true})

	r := NewReconciler(dir, src)

	require.NoError(t, r.Reconcile(context.Background(), "u1"))
	first := memberships(t, dir, "u1")

	require.NoError(t, r.Reconcile(context.Background(), "u1"))
	second := memberships(t, dir, "u1")

	require.Equal(t, map[string]struct{}{"ROLE_USER": {}, "DEPT_7": {}}, first)
	require.Equal(t, first, second)
}

func Test_Reconcile_ReadsCurrentState(t *testing.T) {
	dir := memory.NewMemoryDirectory()
	src := newFakeSource()
	src.put(&core.Principal{ID: "u1", Role: core.RoleUser, Active: true})

	r := NewReconciler(dir, src)

	require.NoError(t, r.Reconcile(context.Background(), "u1"))

	// Role changes to MANAGER; a stale trigger for the USER snapshot still
	// converges on the committed state.
	src.put(&core.Principal{ID: "u1", Role: core.RoleManager, Active: true})

	require.NoError(t, r.Reconcile(context.Background(), "u1"))
	require.NoError(t, r.Reconcile(context.Background(), "u1"))

	require.Equal(t, map[string]struct{}{"ROLE_MANAGER": {}}, memberships(t, dir, "u1"))
}

func Test_Reconcile_DepartmentChange(t *testing.T) {
	dir := memory.NewMemoryDirectory()
	src := newFakeSource()
	src.departments["7"] = &core.Department{ID: "7"}
	src.departments["8"] = &core.Department{ID: "8"}
	src.put(&core.Principal{ID: "u1", Role: core.RoleUser, DepartmentID: "7", Active: true})

	r := NewReconciler(dir, src)
	require.NoError(t, r.Reconcile(context.Background(), "u1"))

	src.put(&core.Principal{ID: "u1", Role: core.RoleUser, DepartmentID: "8", Active: true})
	require.NoError(t, r.Reconcile(context.Background(), "u1"))

	require.Equal(t, map[string]struct{}{"ROLE_USER": {}, "DEPT_8": {}}, memberships(t, dir, "u1"))
}

func Test_Reconcile_LeavesOtherKindsUntouched(t *testing.T) {
	dir := memory.NewMemoryDirectory()
	src := newFakeSource()
	src.put(&core.Principal{ID: "u1", Role: core.RoleUser, Active: true})

	require.NoError(t, dir.EnsureGroup(context.Background(), "TEAM_X", core.GroupKind("team"), "Team X"))
	require.NoError(t, dir.SetMembership(context.Background(), "u1", "TEAM_X"))

	r := NewReconciler(dir, src)
	require.NoError(t, r.Reconcile(context.Background(), "u1"))

	teams, err := dir.ListMemberships(context.Background(), "u1", core.GroupKind("team"))
	require.NoError(t, err)
	require.Contains(t, teams, "TEAM_X")
}

func Test_Reconcile_RemovesDeactivatedPrincipal(t *testing.T) {
	dir := memory.NewMemoryDirectory()
	src := newFakeSource()
	src.put(&core.Principal{ID: "u1", Role: core.RoleUser, Active: true})

	r := NewReconciler(dir, src)
	require.NoError(t, r.Reconcile(context.Background(), "u1"))
	require.NotEmpty(t, memberships(t, dir, "u1"))

	src.put(&core.Principal{ID: "u1", Role: core.RoleUser, Active: false})
	require.NoError(t, r.Reconcile(context.Background(), "u1"))

	require.Empty(t, memberships(t, dir, "u1"))
}

func Test_Reconcile_RemovesDeletedPrincipal(t *testing.T) {
	dir := memory.NewMemoryDirectory()
	src := newFakeSource()
	src.put(&core.Principal{ID: "u1", Role: core.RoleUser, Active: true})

	r := NewReconciler(dir, src)
	require.NoError(t, r.Reconcile(context.Background(), "u1"))

	src.remove("u1")
	require.NoError(t, r.Reconcile(context.Background(), "u1"))

	require.Empty(t, memberships(t, dir, "u1"))
}

func Test_Reconcile_DepartmentCycle(t *testing.T) {
	dir := memory.NewMemoryDirectory()
	src := newFakeSource()
	src.departments["7"] = &core.Department{ID: "7", ParentID: "8"}
	src.departments["8"] = &core.Department{ID: "8", ParentID: "7"}
	src.put(&core.Principal{ID: "u1", Role: core.RoleUser, DepartmentID: "7", Active: true})

	r := NewReconciler(dir, src)

	err := r.Reconcile(context.Background(), "u1")
	require.ErrorIs(t, err, core.ErrDepartmentCycle)
}

// failingDirectory injects one failure per failing operation name.
type failingDirectory struct {
	directory.Directory

	failSetMembership bool
}

var errDirectoryDown = errors.New("directory down")

func (d *failingDirectory) SetMembership(ctx context.Context, principalID, groupKey string) error {
	if d.failSetMembership {
		d.failSetMembership = false
		return errDirectoryDown
	}

	return d.Directory.SetMembership(ctx, principalID, groupKey)
}

func Test_Reconcile_DirectoryFailureSurfaced(t *testing.T) {
	dir := &failingDirectory{Directory: memory.NewMemoryDirectory(), failSetMembership: true}
	src := newFakeSource()
	src.put(&core.Principal{ID: "u1", Role: core.RoleUser, Active: true})

	r := NewReconciler(dir, src)

	err := r.Reconcile(context.Background(), "u1")
	require.Error(t, err)

	var derr *core.DirectoryError
	require.ErrorAs(t, err, &derr)

	// A later run converges from the partial state.
	require.NoError(t, r.Reconcile(context.Background(), "u1"))
	require.Equal(t, map[string]struct{}{"ROLE_USER": {}}, memberships(t, dir, "u1"))
}
