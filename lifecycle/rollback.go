package lifecycle

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/internal/log"
	"github.com/lucas-luzj/magic-crm/internal/metrickeys"
	"github.com/lucas-luzj/magic-crm/metrics"
)

// Rollback moves the owning process instance's execution token back to an
// earlier task node. The target is validated against the compiled process
// graph before any engine mutation; an audit comment records the reason.
func (c *Controller) Rollback(ctx context.Context, caller *core.Principal, taskID, targetActivityID, reason string) error {
	ctx, span := c.tracer().Start(ctx, "RollbackTask", trace.WithAttributes(
		attribute.String(log.PrincipalIDKey, caller.ID),
		attribute.String(log.TaskIDKey, taskID),
		attribute.String(log.TargetActivityKey, targetActivityID),
	))
	defer span.End()

	task, err := c.engine.Task(ctx, taskID)
	if err != nil {
		return engineError("task", err)
	}

	if task.Status.Finished() {
		return core.ErrInvalidTransition
	}

	instance, err := c.engine.ProcessInstance(ctx, task.ProcessInstanceID)
	if err != nil {
		return engineError("processInstance", err)
	}

	if !c.resolver.CanActOnProcess(caller, instance.DefinitionKey, core.ActionManage) {
		return core.ErrPermissionDenied
	}

	graph, err := c.graphs.get(ctx, instance.DefinitionID)
	if err != nil {
		return engineError("compiledGraph", err)
	}

	if _, ok := graph[targetActivityID]; !ok {
		return core.ErrInvalidRollbackTarget
	}

	if err := c.engine.MoveToken(ctx, instance.ID, task.DefinitionKey, targetActivityID); err != nil {
		return engineError("moveToken", err)
	}

	if err := c.engine.AddComment(ctx, taskID, caller.ID, reason); err != nil {
		return engineError("addComment", err)
	}

	if _, err := c.refreshTask(ctx, taskID); err != nil {
		return err
	}

	if err := c.refreshInstanceTasks(ctx, instance.ID); err != nil {
		return err
	}

	c.options.Logger.DebugContext(ctx, "Rolled back process instance",
		log.InstanceIDKey, instance.ID,
		log.TaskIDKey, taskID,
		log.TargetActivityKey, targetActivityID,
		log.ReasonKey, reason,
	)

	c.options.Metrics.Counter(metrickeys.TaskRolledBack, metrics.Tags{}, 1)

	c.notify(ctx, &Event{Type: EventTaskRolledBack, Principal: caller.ID, Task: task, Instance: instance})

	return nil
}

// RollbackTargets enumerates the task nodes of the owning process definition
// a rollback could target, excluding the task's own node.
func (c *Controller) RollbackTargets(ctx context.Context, caller *core.Principal, taskID string) ([]string, error) {
	task, err := c.engine.Task(ctx, taskID)
	if err != nil {
		return nil, engineError("task", err)
	}

	instance, err := c.engine.ProcessInstance(ctx, task.ProcessInstanceID)
	if err != nil {
		return nil, engineError("processInstance", err)
	}

	if !c.resolver.CanActOnProcess(caller, instance.DefinitionKey, core.ActionRead) {
		return nil, core.ErrPermissionDenied
	}

	graph, err := c.graphs.get(ctx, instance.DefinitionID)
	if err != nil {
		return nil, engineError("compiledGraph", err)
	}

	targets := make([]string, 0, len(graph))
	for id := range graph {
		if id != task.DefinitionKey {
			targets = append(targets, id)
		}
	}

	sort.Strings(targets)

	return targets, nil
}
