package engine

import (
	"context"
	"time"

	"github.com/lucas-luzj/magic-crm/core"
)

// TaskFilter selects tasks in QueryTasks. Zero-value fields are not applied.
type TaskFilter struct {
	ProcessInstanceID string

	Assignee string

	// CandidateUser selects tasks listing the principal as candidate user.
	CandidateUser string

	// CandidateGroups selects tasks listing any of the group keys as
	// candidate group.
	CandidateGroups []string

	Status core.TaskStatus
}

// Comment is an audit comment attached to a task.
type Comment struct {
	ID     string
	TaskID string
	Author string
	Text   string
	Time   time.Time
}

// Variables are process or task variables.
type Variables map[string]interface{}

// Engine is the capability contract this module requires from a process
// execution engine. The engine is the sole source of truth for task and
// process instance existence and primitive state.
//
// Completing a delegated task must resolve it back to its owner instead of
// advancing the process; engines without that primitive need it emulated
// behind this interface.
type Engine interface {
	StartProcess(ctx context.Context, definitionKey, businessKey string, variables Variables) (string, error)
	SuspendProcess(ctx context.Context, id string) error
	ActivateProcess(ctx context.Context, id string) error
	TerminateProcess(ctx context.Context, id, reason string) error

	// ProcessInstance returns the current state of the instance, or
	// core.ErrProcessInstanceNotFound.
	ProcessInstance(ctx context.Context, id string) (*core.ProcessInstance, error)

	// Task returns the current state of the task, or core.ErrTaskNotFound.
	Task(ctx context.Context, id string) (*core.Task, error)

	QueryTasks(ctx context.Context, filter TaskFilter) ([]*core.Task, error)

	SetAssignee(ctx context.Context, taskID, principalID string) error
	DelegateTask(ctx context.Context, taskID, principalID string) error
	CompleteTask(ctx context.Context, taskID string, variables Variables) error

	TaskVariables(ctx context.Context, taskID string) (Variables, error)
	SetTaskVariables(ctx context.Context, taskID string, variables Variables) error

	// MoveToken moves the execution token of the process instance from one
	// activity to another. Tasks at the source activity are cancelled and
	// tasks at the target activity are created.
	MoveToken(ctx context.Context, processInstanceID, fromActivityID, toActivityID string) error

	AddComment(ctx context.Context, taskID, author, text string) error
	ListComments(ctx context.Context, taskID string) ([]*Comment, error)

	// CompiledGraph returns the activity ids of all user-task nodes in the
	// compiled graph of the given process definition.
	CompiledGraph(ctx context.Context, processDefinitionID string) (map[string]struct{}, error)
}
