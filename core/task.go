package core

import "time"

// TaskStatus is the lifecycle state of a task as reported by the execution
// engine. COMPLETED is terminal.
type TaskStatus string

const (
	TaskStatusCreated   TaskStatus = "CREATED"
	TaskStatusAssigned  TaskStatus = "ASSIGNED"
	TaskStatusDelegated TaskStatus = "DELEGATED"
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
)

func (s TaskStatus) Finished() bool {
	return s == TaskStatusCompleted
}

// Task is one unit of human work within a process instance. The execution
// engine owns task existence and primitive state; values of this type are
// snapshots.
type Task struct {
	ID string

	ProcessInstanceID string

	// DefinitionKey identifies the task node in the process definition.
	DefinitionKey string

	// Assignee is the principal currently holding the task, empty if
	// unassigned.
	Assignee string

	// Owner is set only while the task is delegated and names the principal
	// the task returns to once the delegatee completes it.
	Owner string

	CandidateUsers  []string
	CandidateGroups []string

	Status TaskStatus

	Priority int

	DueDate *time.Time

	// ParentTaskID links delegation chains, empty for top-level tasks.
	ParentTaskID string

	CreateTime time.Time
	EndTime    *time.Time
}

// HasCandidateUser reports whether the principal is listed as a candidate
// user of the task.
func (t *Task) HasCandidateUser(principalID string) bool {
	for _, id := range t.CandidateUsers {
		if id == principalID {
			return true
		}
	}

	return false
}

// HasCandidateGroup reports whether any of the given groups is listed as a
// candidate group of the task.
func (t *Task) HasCandidateGroup(groups []Group) bool {
	for _, key := range t.CandidateGroups {
		for _, g := range groups {
			if g.Key == key {
				return true
			}
		}
	}

	return false
}
