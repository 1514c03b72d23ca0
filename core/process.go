package core

import "time"

// ProcessStatus is the lifecycle state of a process instance. TERMINATED and
// COMPLETED are terminal; instances never leave them.
type ProcessStatus string

const (
	ProcessStatusActive     ProcessStatus = "ACTIVE"
	ProcessStatusSuspended  ProcessStatus = "SUSPENDED"
	ProcessStatusTerminated ProcessStatus = "TERMINATED"
	ProcessStatusCompleted  ProcessStatus = "COMPLETED"
)

func (s ProcessStatus) Finished() bool {
	return s == ProcessStatusTerminated || s == ProcessStatusCompleted
}

// ProcessInstance is one running execution of a process definition, as
// reported by the execution engine.
type ProcessInstance struct {
	ID string

	// DefinitionID identifies the deployed process definition version.
	DefinitionID string

	// DefinitionKey is the stable key of the process definition.
	DefinitionKey string

	// DefinitionName is the display name of the process definition.
	DefinitionName string

	BusinessKey string

	Status ProcessStatus

	// StarterID is the principal that started the instance.
	StarterID string

	StartTime time.Time
	EndTime   *time.Time

	// TerminationReason is set when the instance was terminated.
	TerminationReason string
}
