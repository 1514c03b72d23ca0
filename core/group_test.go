package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_DerivedGroups_RoleOnly(t *testing.T) {
	p := &Principal{ID: "u1", Role: RoleUser, Active: true}

	groups := DerivedGroups(p)
	require.Len(t, groups, 1)
	require.Equal(t, "ROLE_USER", groups[0].Key)
	require.Equal(t, GroupKindRole, groups[0].Kind)
}

func Test_DerivedGroups_WithDepartment(t *testing.T) {
	p := &Principal{ID: "u1", Role: RoleManager, DepartmentID: "7", Active: true}

	groups := DerivedGroups(p)
	require.Len(t, groups, 2)
	require.Equal(t, "ROLE_MANAGER", groups[0].Key)
	require.Equal(t, "DEPT_7", groups[1].Key)
	require.Equal(t, GroupKindDepartment, groups[1].Kind)
}

func Test_DepartmentChain(t *testing.T) {
	deps := map[string]Department{
		"1": {ID: "1"},
		"2": {ID: "2", ParentID: "1"},
		"3": {ID: "3", ParentID: "2"},
	}

	lookup := func(id string) (Department, bool) {
		d, ok := deps[id]
		return d, ok
	}

	chain, err := DepartmentChain(lookup, "3")
	require.NoError(t, err)
	require.Equal(t, []string{"3", "2", "1"}, chain)
}

func Test_DepartmentChain_Cycle(t *testing.T) {
	deps := map[string]Department{
		"1": {ID: "1", ParentID: "2"},
		"2": {ID: "2", ParentID: "1"},
	}

	lookup := func(id string) (Department, bool) {
		d, ok := deps[id]
		return d, ok
	}

	_, err := DepartmentChain(lookup, "1")
	require.ErrorIs(t, err, ErrDepartmentCycle)
}

func Test_DepartmentChain_MissingParent(t *testing.T) {
	deps := map[string]Department{
		"2": {ID: "2", ParentID: "1"},
	}

	lookup := func(id string) (Department, bool) {
		d, ok := deps[id]
		return d, ok
	}

	_, err := DepartmentChain(lookup, "2")
	require.ErrorIs(t, err, ErrDepartmentNotFound)
}
