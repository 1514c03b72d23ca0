package log

const (
	NamespaceKey = "crm"

	PrincipalIDKey = NamespaceKey + ".principal.id"
	RoleKey        = NamespaceKey + ".principal.role"
	GroupKey       = NamespaceKey + ".group.key"

	TaskIDKey     = NamespaceKey + ".task.id"
	AssigneeKey   = NamespaceKey + ".task.assignee"
	TaskStatusKey = NamespaceKey + ".task.status"

	InstanceIDKey     = NamespaceKey + ".instance.id"
	DefinitionKeyKey  = NamespaceKey + ".definition.key"
	BusinessKeyKey    = NamespaceKey + ".business_key"
	ActivityIDKey     = NamespaceKey + ".activity.id"
	TargetActivityKey = NamespaceKey + ".activity.target"

	ActionKey = NamespaceKey + ".action"
	ReasonKey = NamespaceKey + ".reason"

	AttemptKey  = NamespaceKey + ".attempt"
	DurationKey = NamespaceKey + ".duration_ms"
	RemovedKey  = NamespaceKey + ".removed"
)
