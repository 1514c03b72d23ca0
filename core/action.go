package core

// Action is the closed set of actions a permission check can be asked about.
// Keeping this an enumeration instead of free-form strings makes permission
// rules exhaustive at compile time.
type Action int

const (
	ActionRead Action = iota
	ActionStart
	ActionManage
	ActionAssign
	ActionDelegate
	ActionTransfer
	ActionComplete
	ActionRollback
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionStart:
		return "start"
	case ActionManage:
		return "manage"
	case ActionAssign:
		return "assign"
	case ActionDelegate:
		return "delegate"
	case ActionTransfer:
		return "transfer"
	case ActionComplete:
		return "complete"
	case ActionRollback:
		return "rollback"
	}

	return "unknown"
}
