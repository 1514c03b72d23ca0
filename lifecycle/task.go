package lifecycle

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/engine"
	"github.com/lucas-luzj/magic-crm/internal/log"
	"github.com/lucas-luzj/magic-crm/internal/metrickeys"
	"github.com/lucas-luzj/magic-crm/metrics"
)

// Assign sets the assignee of a task. The caller must be allowed to manage
// the owning process and the assignee must be an active principal.
func (c *Controller) Assign(ctx context.Context, caller *core.Principal, taskID, assigneeID string) error {
	ctx, span := c.tracer().Start(ctx, "AssignTask", trace.WithAttributes(
		attribute.String(log.PrincipalIDKey, caller.ID),
		attribute.String(log.TaskIDKey, taskID),
		attribute.String(log.AssigneeKey, assigneeID),
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

	if err := c.requireActivePrincipal(ctx, assigneeID); err != nil {
		return err
	}

	if err := c.engine.SetAssignee(ctx, taskID, assigneeID); err != nil {
		return engineError("setAssignee", err)
	}

	task, err = c.refreshTask(ctx, taskID)
	if err != nil {
		return err
	}

	c.options.Metrics.Counter(metrickeys.TaskAssigned, metrics.Tags{}, 1)

	c.notify(ctx, &Event{Type: EventTaskAssigned, Principal: caller.ID, Task: task})

	return nil
}

// Delegate temporarily hands a task to another principal. The current
// assignee becomes the owner and regains the task once the delegatee
// completes it.
func (c *Controller) Delegate(ctx context.Context, caller *core.Principal, taskID, delegateeID string) error {
	ctx, span := c.tracer().Start(ctx, "DelegateTask", trace.WithAttributes(
		attribute.String(log.PrincipalIDKey, caller.ID),
		attribute.String(log.TaskIDKey, taskID),
		attribute.String(log.AssigneeKey, delegateeID),
	))
	defer span.End()

	task, err := c.engine.Task(ctx, taskID)
	if err != nil {
		return engineError("task", err)
	}

	if task.Status.Finished() {
		return core.ErrInvalidTransition
	}

	if err := c.requireTaskPermission(ctx, caller, taskID, core.ActionDelegate); err != nil {
		return err
	}

	if err := c.requireActivePrincipal(ctx, delegateeID); err != nil {
		return err
	}

	if err := c.engine.DelegateTask(ctx, taskID, delegateeID); err != nil {
		return engineError("delegateTask", err)
	}

	task, err = c.refreshTask(ctx, taskID)
	if err != nil {
		return err
	}

	c.options.Metrics.Counter(metrickeys.TaskDelegated, metrics.Tags{}, 1)

	c.notify(ctx, &Event{Type: EventTaskDelegated, Principal: caller.ID, Task: task})

	return nil
}

// Transfer permanently reassigns a task. Unlike Delegate the previous
// assignee keeps no claim on the task.
func (c *Controller) Transfer(ctx context.Context, caller *core.Principal, taskID, newAssigneeID string) error {
	ctx, span := c.tracer().Start(ctx, "TransferTask", trace.WithAttributes(
		attribute.String(log.PrincipalIDKey, caller.ID),
		attribute.String(log.TaskIDKey, taskID),
		attribute.String(log.AssigneeKey, newAssigneeID),
	))
	defer span.End()

	task, err := c.engine.Task(ctx, taskID)
	if err != nil {
		return engineError("task", err)
	}

	if task.Status.Finished() {
		return core.ErrInvalidTransition
	}

	if err := c.requireTaskPermission(ctx, caller, taskID, core.ActionTransfer); err != nil {
		return err
	}

	if err := c.requireActivePrincipal(ctx, newAssigneeID); err != nil {
		return err
	}

	// SetAssignee clears the owner, so a delegated task is transferred away
	// from its delegation chain.
	if err := c.engine.SetAssignee(ctx, taskID, newAssigneeID); err != nil {
		return engineError("setAssignee", err)
	}

	task, err = c.refreshTask(ctx, taskID)
	if err != nil {
		return err
	}

	c.options.Metrics.Counter(metrickeys.TaskAssigned, metrics.Tags{}, 1)

	c.notify(ctx, &Event{Type: EventTaskAssigned, Principal: caller.ID, Task: task})

	return nil
}

// Complete completes a task with the given variables. The caller must be the
// current assignee. Completing a delegated task resolves it back to its
// owner instead of advancing the process.
func (c *Controller) Complete(ctx context.Context, caller *core.Principal, taskID string, variables engine.Variables) error {
	ctx, span := c.tracer().Start(ctx, "CompleteTask", trace.WithAttributes(
		attribute.String(log.PrincipalIDKey, caller.ID),
		attribute.String(log.TaskIDKey, taskID),
	))
	defer span.End()

	task, err := c.engine.Task(ctx, taskID)
	if err != nil {
		return engineError("task", err)
	}

	if task.Status.Finished() {
		return core.ErrInvalidTransition
	}

	if task.Assignee != caller.ID {
		return core.ErrPermissionDenied
	}

	wasDelegated := task.Status == core.TaskStatusDelegated
	instanceID := task.ProcessInstanceID

	vars := engine.Variables{}
	for k, v := range variables {
		vars[k] = v
	}
	vars["completedBy"] = caller.ID
	vars["completedAt"] = c.options.Clock.Now()

	if err := c.engine.CompleteTask(ctx, taskID, vars); err != nil {
		return engineError("completeTask", err)
	}

	before := *task

	task, err = c.refreshTask(ctx, taskID)
	if err != nil {
		return err
	}

	if task == nil {
		// The engine dropped the completed task; mirror it as completed from
		// the last known snapshot.
		now := c.options.Clock.Now()
		before.Status = core.TaskStatusCompleted
		before.EndTime = &now

		if err := c.store.UpsertTask(ctx, &before); err != nil {
			return fmt.Errorf("mirroring task: %w", err)
		}

		task = &before
	}

	// Mirror whatever the completion caused: the next task of the instance,
	// or the instance itself finishing.
	if err := c.refreshInstanceTasks(ctx, instanceID); err != nil {
		return err
	}

	if _, err := c.refreshInstance(ctx, instanceID); err != nil {
		return err
	}

	c.options.Metrics.Counter(metrickeys.TaskCompleted, metrics.Tags{}, 1)

	if wasDelegated && task != nil && !task.Status.Finished() {
		// The engine resolved the task back to its owner.
		c.notify(ctx, &Event{Type: EventTaskReturned, Principal: caller.ID, Task: task})

		return nil
	}

	c.notify(ctx, &Event{Type: EventTaskCompleted, Principal: caller.ID, Task: task})

	return nil
}

// Approve completes a task with an approved outcome, attaching an audit
// comment first when one is supplied.
func (c *Controller) Approve(ctx context.Context, caller *core.Principal, taskID, comment string, variables engine.Variables) error {
	return c.completeWithOutcome(ctx, caller, taskID, comment, variables, true)
}

// Reject completes a task with a rejected outcome, attaching an audit
// comment first when one is supplied.
func (c *Controller) Reject(ctx context.Context, caller *core.Principal, taskID, comment string, variables engine.Variables) error {
	return c.completeWithOutcome(ctx, caller, taskID, comment, variables, false)
}

func (c *Controller) completeWithOutcome(ctx context.Context, caller *core.Principal, taskID, comment string, variables engine.Variables, approved bool) error {
	task, err := c.engine.Task(ctx, taskID)
	if err != nil {
		return engineError("task", err)
	}

	// Validate before the comment write so a failed outcome leaves no
	// partial state behind.
	if task.Status.Finished() {
		return core.ErrInvalidTransition
	}

	if task.Assignee != caller.ID {
		return core.ErrPermissionDenied
	}

	if comment != "" {
		if err := c.engine.AddComment(ctx, taskID, caller.ID, comment); err != nil {
			return engineError("addComment", err)
		}
	}

	vars := engine.Variables{}
	for k, v := range variables {
		vars[k] = v
	}
	vars["approved"] = approved

	return c.Complete(ctx, caller, taskID, vars)
}

// BatchComplete completes tasks one by one and aborts on the first failure,
// leaving the remaining tasks untouched. The returned error names the
// failing task.
func (c *Controller) BatchComplete(ctx context.Context, caller *core.Principal, taskIDs []string, variables engine.Variables) error {
	for _, id := range taskIDs {
		if err := c.Complete(ctx, caller, id, variables); err != nil {
			return fmt.Errorf("completing task %s: %w", id, err)
		}
	}

	return nil
}

// BatchAssign assigns tasks one by one and aborts on the first failure.
func (c *Controller) BatchAssign(ctx context.Context, caller *core.Principal, taskIDs []string, assigneeID string) error {
	for _, id := range taskIDs {
		if err := c.Assign(ctx, caller, id, assigneeID); err != nil {
			return fmt.Errorf("assigning task %s: %w", id, err)
		}
	}

	return nil
}

// requireTaskPermission returns ErrPermissionDenied unless the resolver
// authorizes the caller for the task.
func (c *Controller) requireTaskPermission(ctx context.Context, caller *core.Principal, taskID string, action core.Action) error {
	ok, err := c.resolver.CanActOnTask(ctx, caller, taskID, action)
	if err != nil {
		return err
	}

	if !ok {
		return core.ErrPermissionDenied
	}

	return nil
}

// requireActivePrincipal validates that the principal exists and is active.
func (c *Controller) requireActivePrincipal(ctx context.Context, principalID string) error {
	p, err := c.principals.Principal(ctx, principalID)
	if err != nil {
		return fmt.Errorf("reading principal %s: %w", principalID, err)
	}

	if !p.Active {
		return fmt.Errorf("principal %s: %w", principalID, core.ErrPrincipalInactive)
	}

	return nil
}
