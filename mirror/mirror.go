package mirror

import (
	"context"
	"time"

	"github.com/lucas-luzj/magic-crm/core"
)

// Page selects a window of a query result.
type Page struct {
	Offset int
	Limit  int
}

// TaskWithInstance is a mirrored task row joined with the name and business
// key of its owning process instance, for worklist queries.
type TaskWithInstance struct {
	Task core.Task

	ProcessName string
	BusinessKey string
}

// Store is the mirrored record store: a local, rebuildable projection of
// engine-authoritative process instance and task state. It is never
// authoritative; rows are written only after the corresponding engine
// mutation succeeded.
type Store interface {
	UpsertProcessInstance(ctx context.Context, instance *core.ProcessInstance) error

	UpsertTask(ctx context.Context, task *core.Task) error

	// ProcessInstance returns the mirrored instance row, or
	// core.ErrProcessInstanceNotFound.
	ProcessInstance(ctx context.Context, id string) (*core.ProcessInstance, error)

	// Task returns the mirrored task row, or core.ErrTaskNotFound.
	Task(ctx context.Context, id string) (*core.Task, error)

	// PendingTasks returns the principal's unfinished tasks, newest first.
	PendingTasks(ctx context.Context, assignee string, page Page) ([]*TaskWithInstance, error)

	// CompletedTasks returns the principal's completed tasks, newest first.
	CompletedTasks(ctx context.Context, assignee string, page Page) ([]*TaskWithInstance, error)

	// RemoveFinishedInstances deletes mirrored rows of terminated or
	// completed instances that finished before the given time, including
	// their task rows. It returns the number of instances removed.
	RemoveFinishedInstances(ctx context.Context, finishedBefore time.Time) (int, error)

	Close() error
}
