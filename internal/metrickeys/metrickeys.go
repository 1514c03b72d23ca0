package metrickeys

const (
	Prefix = "crm."

	// Tasks
	TaskAssigned   = Prefix + "task.assigned"
	TaskDelegated  = Prefix + "task.delegated"
	TaskCompleted  = Prefix + "task.completed"
	TaskRolledBack = Prefix + "task.rolled_back"

	// Processes
	ProcessStarted = Prefix + "process.started"

	// Identity sync
	ReconcileProcessed = Prefix + "identity.reconcile.processed"
	ReconcileFailed    = Prefix + "identity.reconcile.failed"
	OutboxDepth        = Prefix + "identity.outbox.depth"

	// Mirrored record store
	MirrorRowsRemoved = Prefix + "mirror.rows_removed"

	// Compiled graph cache
	GraphCacheSize     = Prefix + "graph.cache.size"
	GraphCacheEviction = Prefix + "graph.cache.eviction"
)

// Tag names
const (
	// Outcome of an approve/reject completion
	Outcome = "outcome"

	// Reason for evicting an entry from the compiled graph cache
	EvictionReason = "reason"

	DefinitionKey = "definition"
)
