package lifecycle

import (
	"context"
	"fmt"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/engine"
	"github.com/lucas-luzj/magic-crm/mirror"
)

// PendingTasks returns the principal's unfinished tasks from the mirrored
// store, joined with the owning process name and business key.
func (c *Controller) PendingTasks(ctx context.Context, principalID string, page mirror.Page) ([]*mirror.TaskWithInstance, error) {
	tasks, err := c.store.PendingTasks(ctx, principalID, page)
	if err != nil {
		return nil, fmt.Errorf("querying pending tasks: %w", err)
	}

	return tasks, nil
}

// CompletedTasks returns the principal's completed-task history from the
// mirrored store.
func (c *Controller) CompletedTasks(ctx context.Context, principalID string, page mirror.Page) ([]*mirror.TaskWithInstance, error) {
	tasks, err := c.store.CompletedTasks(ctx, principalID, page)
	if err != nil {
		return nil, fmt.Errorf("querying completed tasks: %w", err)
	}

	return tasks, nil
}

// TaskVariables reads the task's variables from the engine.
func (c *Controller) TaskVariables(ctx context.Context, caller *core.Principal, taskID string) (engine.Variables, error) {
	if err := c.requireTaskPermission(ctx, caller, taskID, core.ActionRead); err != nil {
		return nil, err
	}

	vars, err := c.engine.TaskVariables(ctx, taskID)
	if err != nil {
		return nil, engineError("taskVariables", err)
	}

	return vars, nil
}

// SetTaskVariables writes task variables to the engine.
func (c *Controller) SetTaskVariables(ctx context.Context, caller *core.Principal, taskID string, variables engine.Variables) error {
	if err := c.requireTaskPermission(ctx, caller, taskID, core.ActionComplete); err != nil {
		return err
	}

	if err := c.engine.SetTaskVariables(ctx, taskID, variables); err != nil {
		return engineError("setTaskVariables", err)
	}

	return nil
}

// Comments returns the task's audit comments.
func (c *Controller) Comments(ctx context.Context, caller *core.Principal, taskID string) ([]*engine.Comment, error) {
	if err := c.requireTaskPermission(ctx, caller, taskID, core.ActionRead); err != nil {
		return nil, err
	}

	comments, err := c.engine.ListComments(ctx, taskID)
	if err != nil {
		return nil, engineError("listComments", err)
	}

	return comments, nil
}

// AddComment appends an audit comment to the task.
func (c *Controller) AddComment(ctx context.Context, caller *core.Principal, taskID, text string) error {
	if err := c.requireTaskPermission(ctx, caller, taskID, core.ActionRead); err != nil {
		return err
	}

	if err := c.engine.AddComment(ctx, taskID, caller.ID, text); err != nil {
		return engineError("addComment", err)
	}

	return nil
}
