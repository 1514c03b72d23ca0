// Package lifecycle orchestrates task and process transitions. Every
// mutating operation validates the transition, consults the permission
// resolver, writes through to the execution engine and only then updates the
// mirrored record store. Engine failures abort the operation with no
// mirrored write.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/engine"
	"github.com/lucas-luzj/magic-crm/identity"
	"github.com/lucas-luzj/magic-crm/internal/log"
	"github.com/lucas-luzj/magic-crm/internal/metrickeys"
	"github.com/lucas-luzj/magic-crm/metrics"
	"github.com/lucas-luzj/magic-crm/mirror"
	"github.com/lucas-luzj/magic-crm/permission"
)

type Controller struct {
	engine     engine.Engine
	store      mirror.Store
	resolver   *permission.Resolver
	principals identity.PrincipalSource

	graphs *graphCache

	options Options
}

func NewController(
	e engine.Engine,
	store mirror.Store,
	resolver *permission.Resolver,
	principals identity.PrincipalSource,
	opts ...Option,
) *Controller {
	options := ApplyOptions(opts...)

	return &Controller{
		engine:     e,
		store:      store,
		resolver:   resolver,
		principals: principals,
		graphs:     newGraphCache(e, options.Metrics, options.GraphCacheSize, options.GraphCacheTTL),
		options:    options,
	}
}

func (c *Controller) tracer() trace.Tracer {
	return c.options.TracerProvider.Tracer(TracerName)
}

// StartProcess starts a new instance of the given process definition.
func (c *Controller) StartProcess(ctx context.Context, caller *core.Principal, definitionKey, businessKey string, variables engine.Variables) (*core.ProcessInstance, error) {
	ctx, span := c.tracer().Start(ctx, fmt.Sprintf("StartProcess: %s", definitionKey), trace.WithAttributes(
		attribute.String(log.PrincipalIDKey, caller.ID),
		attribute.String(log.DefinitionKeyKey, definitionKey),
	))
	defer span.End()

	if !c.resolver.CanActOnProcess(caller, definitionKey, core.ActionStart) {
		return nil, core.ErrPermissionDenied
	}

	vars := engine.Variables{}
	for k, v := range variables {
		vars[k] = v
	}
	vars["starter"] = caller.ID

	id, err := c.engine.StartProcess(ctx, definitionKey, businessKey, vars)
	if err != nil {
		return nil, engineError("startProcess", err)
	}

	instance, err := c.refreshInstance(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.refreshInstanceTasks(ctx, id); err != nil {
		return nil, err
	}

	c.options.Logger.DebugContext(ctx, "Started process instance",
		log.InstanceIDKey, instance.ID,
		log.DefinitionKeyKey, definitionKey,
		log.BusinessKeyKey, businessKey,
	)

	c.options.Metrics.Counter(metrickeys.ProcessStarted, metrics.Tags{metrickeys.DefinitionKey: definitionKey}, 1)

	c.notify(ctx, &Event{Type: EventProcessStarted, Principal: caller.ID, Instance: instance})

	return instance, nil
}

// SuspendProcess suspends an active process instance.
func (c *Controller) SuspendProcess(ctx context.Context, caller *core.Principal, instanceID string) error {
	return c.changeProcessState(ctx, caller, instanceID, "SuspendProcess", func(ctx context.Context) error {
		return c.engine.SuspendProcess(ctx, instanceID)
	})
}

// ActivateProcess re-activates a suspended process instance.
func (c *Controller) ActivateProcess(ctx context.Context, caller *core.Principal, instanceID string) error {
	return c.changeProcessState(ctx, caller, instanceID, "ActivateProcess", func(ctx context.Context) error {
		return c.engine.ActivateProcess(ctx, instanceID)
	})
}

// TerminateProcess terminates a process instance with a reason. Terminated
// instances are immutable.
func (c *Controller) TerminateProcess(ctx context.Context, caller *core.Principal, instanceID, reason string) error {
	return c.changeProcessState(ctx, caller, instanceID, "TerminateProcess", func(ctx context.Context) error {
		return c.engine.TerminateProcess(ctx, instanceID, reason)
	})
}

func (c *Controller) changeProcessState(ctx context.Context, caller *core.Principal, instanceID, op string, mutate func(context.Context) error) error {
	ctx, span := c.tracer().Start(ctx, op, trace.WithAttributes(
		attribute.String(log.PrincipalIDKey, caller.ID),
		attribute.String(log.InstanceIDKey, instanceID),
	))
	defer span.End()

	instance, err := c.engine.ProcessInstance(ctx, instanceID)
	if err != nil {
		return engineError("processInstance", err)
	}

	if instance.Status.Finished() {
		return core.ErrInvalidTransition
	}

	if !c.resolver.CanActOnProcess(caller, instance.DefinitionKey, core.ActionManage) {
		return core.ErrPermissionDenied
	}

	if err := mutate(ctx); err != nil {
		return engineError(op, err)
	}

	instance, err = c.refreshInstance(ctx, instanceID)
	if err != nil {
		return err
	}

	c.notify(ctx, &Event{Type: EventProcessStatusChanged, Principal: caller.ID, Instance: instance})

	return nil
}

// refreshInstance reads the instance from the engine and writes the mirrored
// row.
func (c *Controller) refreshInstance(ctx context.Context, instanceID string) (*core.ProcessInstance, error) {
	instance, err := c.engine.ProcessInstance(ctx, instanceID)
	if err != nil {
		return nil, engineError("processInstance", err)
	}

	if err := c.store.UpsertProcessInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("mirroring process instance: %w", err)
	}

	return instance, nil
}

// refreshTask reads the task from the engine and writes the mirrored row. A
// task the engine no longer knows is left alone; the retention sweep removes
// its row eventually.
func (c *Controller) refreshTask(ctx context.Context, taskID string) (*core.Task, error) {
	task, err := c.engine.Task(ctx, taskID)
	if err != nil {
		if errors.Is(err, core.ErrTaskNotFound) {
			return nil, nil
		}

		return nil, engineError("task", err)
	}

	if err := c.store.UpsertTask(ctx, task); err != nil {
		return nil, fmt.Errorf("mirroring task: %w", err)
	}

	return task, nil
}

// refreshInstanceTasks mirrors all tasks the engine currently reports for
// the instance, picking up tasks the engine created as a side effect of a
// completion or token move.
func (c *Controller) refreshInstanceTasks(ctx context.Context, instanceID string) error {
	tasks, err := c.engine.QueryTasks(ctx, engine.TaskFilter{ProcessInstanceID: instanceID})
	if err != nil {
		return engineError("queryTasks", err)
	}

	for _, t := range tasks {
		if err := c.store.UpsertTask(ctx, t); err != nil {
			return fmt.Errorf("mirroring task: %w", err)
		}
	}

	return nil
}

func (c *Controller) notify(ctx context.Context, event *Event) {
	event.Time = c.options.Clock.Now()

	c.options.Notifier.Notify(ctx, event)
}

// engineError passes through errors of the shared taxonomy and wraps
// everything else as an engine failure.
func engineError(op string, err error) error {
	switch {
	case errors.Is(err, core.ErrTaskNotFound),
		errors.Is(err, core.ErrProcessInstanceNotFound),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrInvalidRollbackTarget):
		return err
	}

	return &core.EngineError{Op: op, Err: err}
}
