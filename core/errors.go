package core

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound            = errors.New("task not found")
	ErrProcessInstanceNotFound = errors.New("process instance not found")
	ErrPrincipalNotFound       = errors.New("principal not found")
	ErrDepartmentNotFound      = errors.New("department not found")
	ErrGroupNotFound           = errors.New("group not found")

	// ErrDepartmentCycle indicates the department parent chain loops. The
	// tree invariant is enforced elsewhere; walks here only have to fail
	// instead of spinning.
	ErrDepartmentCycle = errors.New("department parent chain contains a cycle")

	ErrPermissionDenied = errors.New("permission denied")

	// ErrPrincipalInactive indicates an operation named a deactivated
	// principal as assignee or delegatee.
	ErrPrincipalInactive = errors.New("principal is not active")

	// ErrInvalidTransition indicates an operation was requested on a task or
	// process instance whose current state does not permit it.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidRollbackTarget indicates the rollback target is not a task
	// node of the compiled process graph.
	ErrInvalidRollbackTarget = errors.New("invalid rollback target")
)

// EngineError wraps a failed execution engine call. The requested operation
// is aborted and no mirrored state is written.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine: %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// DirectoryError wraps a failed identity directory call. Reconciliation for
// the affected principal is aborted; a later run converges.
type DirectoryError struct {
	Op  string
	Err error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory: %s: %v", e.Op, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}
