package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucas-luzj/magic-crm/core"
)

func Test_MemoryDirectory_MembershipRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()

	require.NoError(t, d.EnsurePrincipal(ctx, "u1", nil))
	require.NoError(t, d.EnsureGroup(ctx, "ROLE_USER", core.GroupKindRole, "User"))
	require.NoError(t, d.EnsureGroup(ctx, "DEPT_7", core.GroupKindDepartment, "Sales"))

	require.NoError(t, d.SetMembership(ctx, "u1", "ROLE_USER"))
	require.NoError(t, d.SetMembership(ctx, "u1", "DEPT_7"))

	// Setting an existing membership is a no-op.
	require.NoError(t, d.SetMembership(ctx, "u1", "ROLE_USER"))

	roles, err := d.ListMemberships(ctx, "u1", core.GroupKindRole)
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"ROLE_USER": {}}, roles)

	depts, err := d.ListMemberships(ctx, "u1", core.GroupKindDepartment)
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"DEPT_7": {}}, depts)

	require.NoError(t, d.ClearMembership(ctx, "u1", "DEPT_7"))

	depts, err = d.ListMemberships(ctx, "u1", core.GroupKindDepartment)
	require.NoError(t, err)
	require.Empty(t, depts)
}

func Test_MemoryDirectory_SetMembershipUnknownGroup(t *testing.T) {
	d := NewMemoryDirectory()

	err := d.SetMembership(context.Background(), "u1", "ROLE_ADMIN")
	require.ErrorIs(t, err, core.ErrGroupNotFound)
}

func Test_MemoryDirectory_DeletePrincipalRemovesMemberships(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()

	require.NoError(t, d.EnsurePrincipal(ctx, "u1", nil))
	require.NoError(t, d.EnsureGroup(ctx, "ROLE_MANAGER", core.GroupKindRole, "Manager"))
	require.NoError(t, d.SetMembership(ctx, "u1", "ROLE_MANAGER"))

	require.NoError(t, d.DeletePrincipal(ctx, "u1"))

	// Deleting an absent principal is not an error.
	require.NoError(t, d.DeletePrincipal(ctx, "u1"))

	roles, err := d.ListMemberships(ctx, "u1", core.GroupKindRole)
	require.NoError(t, err)
	require.Empty(t, roles)
}
