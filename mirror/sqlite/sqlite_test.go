package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/mirror"
)

func newStore(t *testing.T) mirror.Store {
	t.Helper()

	s, err := NewInMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func instanceFixture(id string, status core.ProcessStatus) *core.ProcessInstance {
	return &core.ProcessInstance{
		ID:             id,
		DefinitionID:   "def-1",
		DefinitionKey:  "order-approval",
		DefinitionName: "Order approval",
		BusinessKey:    "bk-" + id,
		Status:         status,
		StarterID:      "u1",
		StartTime:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func taskFixture(id, instanceID, assignee string, status core.TaskStatus) *core.Task {
	return &core.Task{
		ID:                id,
		ProcessInstanceID: instanceID,
		DefinitionKey:     "review",
		Assignee:          assignee,
		Status:            status,
		Priority:          50,
		CreateTime:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func Test_Store_UpsertProcessInstance(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	instance := instanceFixture("p1", core.ProcessStatusActive)
	require.NoError(t, s.UpsertProcessInstance(ctx, instance))

	read, err := s.ProcessInstance(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, core.ProcessStatusActive, read.Status)
	require.Equal(t, "bk-p1", read.BusinessKey)
	require.Nil(t, read.EndTime)

	// Upserting again updates the mutable columns.
	end := instance.StartTime.Add(time.Hour)
	instance.Status = core.ProcessStatusCompleted
	instance.EndTime = &end
	require.NoError(t, s.UpsertProcessInstance(ctx, instance))

	read, err = s.ProcessInstance(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, core.ProcessStatusCompleted, read.Status)
	require.NotNil(t, read.EndTime)
}

func Test_Store_ProcessInstanceNotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.ProcessInstance(context.Background(), "missing")
	require.ErrorIs(t, err, core.ErrProcessInstanceNotFound)
}

func Test_Store_TaskNotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.Task(context.Background(), "missing")
	require.ErrorIs(t, err, core.ErrTaskNotFound)
}

func Test_Store_PendingAndCompletedTasks(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertProcessInstance(ctx, instanceFixture("p1", core.ProcessStatusActive)))

	require.NoError(t, s.UpsertTask(ctx, taskFixture("t1", "p1", "u1", core.TaskStatusAssigned)))
	require.NoError(t, s.UpsertTask(ctx, taskFixture("t2", "p1", "u1", core.TaskStatusCompleted)))
	require.NoError(t, s.UpsertTask(ctx, taskFixture("t3", "p1", "u2", core.TaskStatusAssigned)))

	pending, err := s.PendingTasks(ctx, "u1", mirror.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "t1", pending[0].Task.ID)
	require.Equal(t, "Order approval", pending[0].ProcessName)
	require.Equal(t, "bk-p1", pending[0].BusinessKey)

	completed, err := s.CompletedTasks(ctx, "u1", mirror.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, "t2", completed[0].Task.ID)
}

func Test_Store_PendingTasksPagination(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertProcessInstance(ctx, instanceFixture("p1", core.ProcessStatusActive)))

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, s.UpsertTask(ctx, taskFixture(id, "p1", "u1", core.TaskStatusAssigned)))
	}

	page1, err := s.PendingTasks(ctx, "u1", mirror.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page2, err := s.PendingTasks(ctx, "u1", mirror.Page{Offset: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
}

func Test_Store_RemoveFinishedInstances(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	old := instanceFixture("p1", core.ProcessStatusCompleted)
	oldEnd := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	old.EndTime = &oldEnd
	require.NoError(t, s.UpsertProcessInstance(ctx, old))
	require.NoError(t, s.UpsertTask(ctx, taskFixture("t1", "p1", "u1", core.TaskStatusCompleted)))

	recent := instanceFixture("p2", core.ProcessStatusCompleted)
	recentEnd := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	recent.EndTime = &recentEnd
	require.NoError(t, s.UpsertProcessInstance(ctx, recent))

	active := instanceFixture("p3", core.ProcessStatusActive)
	require.NoError(t, s.UpsertProcessInstance(ctx, active))

	removed, err := s.RemoveFinishedInstances(ctx, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = s.ProcessInstance(ctx, "p1")
	require.ErrorIs(t, err, core.ErrProcessInstanceNotFound)

	_, err = s.Task(ctx, "t1")
	require.ErrorIs(t, err, core.ErrTaskNotFound)

	_, err = s.ProcessInstance(ctx, "p2")
	require.NoError(t, err)

	_, err = s.ProcessInstance(ctx, "p3")
	require.NoError(t, err)
}
