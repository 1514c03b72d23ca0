package permission

import (
	"context"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/engine"
	"github.com/lucas-luzj/magic-crm/engine/enginetest"
)

func Test_CanActOnProcess_Table(t *testing.T) {
	r := NewResolver(enginetest.NewFakeEngine(clock.NewMock()))

	tests := []struct {
		role   core.Role
		action core.Action
		want   bool
	}{
		{core.RoleAdmin, core.ActionRead, true},
		{core.RoleAdmin, core.ActionStart, true},
		{core.RoleAdmin, core.ActionManage, true},
		{core.RoleAdmin, core.ActionComplete, true},
		{core.RoleManager, core.ActionRead, true},
		{core.RoleManager, core.ActionStart, true},
		{core.RoleManager, core.ActionManage, true},
		{core.RoleManager, core.ActionComplete, false},
		{core.RoleUser, core.ActionRead, true},
		{core.RoleUser, core.ActionStart, true},
		{core.RoleUser, core.ActionManage, false},
		{core.RoleUser, core.ActionComplete, false},
	}

	for _, tt := range tests {
		p := &core.Principal{ID: "p", Role: tt.role, Active: true}

		got := r.CanActOnProcess(p, "order-approval", tt.action)
		require.Equal(t, tt.want, got, "role %s action %s", tt.role, tt.action)
	}
}

func Test_CanActOnProcess_InactivePrincipal(t *testing.T) {
	r := NewResolver(enginetest.NewFakeEngine(clock.NewMock()))

	p := &core.Principal{ID: "p", Role: core.RoleUser, Active: false}

	require.False(t, r.CanActOnProcess(p, "order-approval", core.ActionRead))
	require.False(t, r.CanActOnProcess(p, "order-approval", core.ActionStart))
}

func startTask(t *testing.T, e *enginetest.FakeEngine, node enginetest.TaskNode) *core.Task {
	t.Helper()

	e.RegisterDefinition(&enginetest.Definition{
		ID:        "def-1",
		Key:       "order-approval",
		Name:      "Order approval",
		TaskNodes: []enginetest.TaskNode{node},
	})

	instanceID, err := e.StartProcess(context.Background(), "order-approval", "bk-1", engine.Variables{})
	require.NoError(t, err)

	tasks, err := e.QueryTasks(context.Background(), engine.TaskFilter{ProcessInstanceID: instanceID})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	return tasks[0]
}

func Test_CanActOnTask_Assignee(t *testing.T) {
	e := enginetest.NewFakeEngine(clock.NewMock())
	r := NewResolver(e)

	task := startTask(t, e, enginetest.TaskNode{ActivityID: "review"})
	require.NoError(t, e.SetAssignee(context.Background(), task.ID, "u1"))

	p := &core.Principal{ID: "u1", Role: core.RoleUser, Active: true}

	ok, err := r.CanActOnTask(context.Background(), p, task.ID, core.ActionComplete)
	require.NoError(t, err)
	require.True(t, ok)
}

func Test_CanActOnTask_CandidateUser(t *testing.T) {
	e := enginetest.NewFakeEngine(clock.NewMock())
	r := NewResolver(e)

	task := startTask(t, e, enginetest.TaskNode{ActivityID: "review", CandidateUsers: []string{"u2"}})

	p := &core.Principal{ID: "u2", Role: core.RoleUser, Active: true}

	ok, err := r.CanActOnTask(context.Background(), p, task.ID, core.ActionComplete)
	require.NoError(t, err)
	require.True(t, ok)
}

func Test_CanActOnTask_CandidateGroup(t *testing.T) {
	e := enginetest.NewFakeEngine(clock.NewMock())
	r := NewResolver(e)

	task := startTask(t, e, enginetest.TaskNode{ActivityID: "review", CandidateGroups: []string{"DEPT_7"}})

	inDept := &core.Principal{ID: "u1", Role: core.RoleUser, DepartmentID: "7", Active: true}
	otherDept := &core.Principal{ID: "u2", Role: core.RoleUser, DepartmentID: "8", Active: true}

	ok, err := r.CanActOnTask(context.Background(), inDept, task.ID, core.ActionComplete)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.CanActOnTask(context.Background(), otherDept, task.ID, core.ActionComplete)
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_CanActOnTask_Inactive(t *testing.T) {
	e := enginetest.NewFakeEngine(clock.NewMock())
	r := NewResolver(e)

	task := startTask(t, e, enginetest.TaskNode{ActivityID: "review"})
	require.NoError(t, e.SetAssignee(context.Background(), task.ID, "u1"))

	p := &core.Principal{ID: "u1", Role: core.RoleUser, Active: false}

	ok, err := r.CanActOnTask(context.Background(), p, task.ID, core.ActionComplete)
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_CanActOnTask_Admin(t *testing.T) {
	e := enginetest.NewFakeEngine(clock.NewMock())
	r := NewResolver(e)

	// Admins do not even need the task to exist to be authorized.
	p := &core.Principal{ID: "root", Role: core.RoleAdmin, Active: true}

	ok, err := r.CanActOnTask(context.Background(), p, "missing", core.ActionComplete)
	require.NoError(t, err)
	require.True(t, ok)
}

func Test_CanActOnTask_NotFound(t *testing.T) {
	e := enginetest.NewFakeEngine(clock.NewMock())
	r := NewResolver(e)

	p := &core.Principal{ID: "u1", Role: core.RoleUser, Active: true}

	_, err := r.CanActOnTask(context.Background(), p, "missing", core.ActionComplete)
	require.ErrorIs(t, err, core.ErrTaskNotFound)
}
