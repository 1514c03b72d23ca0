package lifecycle

import (
	"context"
	"time"

	"github.com/lucas-luzj/magic-crm/core"
)

type EventType string

const (
	EventProcessStarted       EventType = "process.started"
	EventProcessStatusChanged EventType = "process.status_changed"

	EventTaskAssigned  EventType = "task.assigned"
	EventTaskDelegated EventType = "task.delegated"
	EventTaskCompleted EventType = "task.completed"

	// EventTaskReturned is raised when completing a delegated task resolved
	// it back to its owner instead of advancing the process.
	EventTaskReturned EventType = "task.returned"

	EventTaskRolledBack EventType = "task.rolled_back"
)

// Event describes a lifecycle transition that succeeded against the engine
// and the mirrored store. Notification delivery is a collaborator concern;
// this module only raises the events.
type Event struct {
	Type EventType

	Time time.Time

	// Principal is the principal that triggered the transition.
	Principal string

	Task     *core.Task
	Instance *core.ProcessInstance
}

type Notifier interface {
	Notify(ctx context.Context, event *Event)
}

type noopNotifier struct {
}

func (*noopNotifier) Notify(ctx context.Context, event *Event) {
}
