// Package enginetest provides an in-memory Engine implementation for tests.
// It models the delegation semantics of the real engine: completing a
// delegated task resolves it back to its owner instead of advancing the
// process.
package enginetest

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/engine"
)

// TaskNode is a user-task node of a registered definition.
type TaskNode struct {
	ActivityID      string
	CandidateUsers  []string
	CandidateGroups []string
}

// Definition is a process definition registered with the fake engine. Task
// nodes execute sequentially.
type Definition struct {
	ID   string
	Key  string
	Name string

	TaskNodes []TaskNode
}

type FakeEngine struct {
	mu sync.Mutex

	clock clock.Clock

	definitions map[string]*Definition
	instances   map[string]*core.ProcessInstance
	tasks       map[string]*core.Task
	variables   map[string]engine.Variables
	comments    map[string][]*engine.Comment

	// position tracks the index of the current task node per instance.
	position map[string]int
}

var _ engine.Engine = (*FakeEngine)(nil)

func NewFakeEngine(clock clock.Clock) *FakeEngine {
	return &FakeEngine{
		clock:       clock,
		definitions: map[string]*Definition{},
		instances:   map[string]*core.ProcessInstance{},
		tasks:       map[string]*core.Task{},
		variables:   map[string]engine.Variables{},
		comments:    map[string][]*engine.Comment{},
		position:    map[string]int{},
	}
}

func (e *FakeEngine) RegisterDefinition(def *Definition) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.definitions[def.Key] = def
}

func (e *FakeEngine) StartProcess(ctx context.Context, definitionKey, businessKey string, variables engine.Variables) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	def, ok := e.definitions[definitionKey]
	if !ok {
		return "", core.ErrProcessInstanceNotFound
	}

	instance := &core.ProcessInstance{
		ID:             uuid.NewString(),
		DefinitionID:   def.ID,
		DefinitionKey:  def.Key,
		DefinitionName: def.Name,
		BusinessKey:    businessKey,
		Status:         core.ProcessStatusActive,
		StartTime:      e.clock.Now(),
	}

	if starter, ok := variables["starter"].(string); ok {
		instance.StarterID = starter
	}

	e.instances[instance.ID] = instance
	e.position[instance.ID] = 0

	if len(def.TaskNodes) > 0 {
		e.createTask(instance, def.TaskNodes[0])
	}

	return instance.ID, nil
}

func (e *FakeEngine) createTask(instance *core.ProcessInstance, node TaskNode) *core.Task {
	t := &core.Task{
		ID:                uuid.NewString(),
		ProcessInstanceID: instance.ID,
		DefinitionKey:     node.ActivityID,
		CandidateUsers:    append([]string{}, node.CandidateUsers...),
		CandidateGroups:   append([]string{}, node.CandidateGroups...),
		Status:            core.TaskStatusCreated,
		CreateTime:        e.clock.Now(),
	}

	e.tasks[t.ID] = t

	return t
}

func (e *FakeEngine) SuspendProcess(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	instance, ok := e.instances[id]
	if !ok {
		return core.ErrProcessInstanceNotFound
	}

	if instance.Status != core.ProcessStatusActive {
		return core.ErrInvalidTransition
	}

	instance.Status = core.ProcessStatusSuspended

	return nil
}

func (e *FakeEngine) ActivateProcess(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	instance, ok := e.instances[id]
	if !ok {
		return core.ErrProcessInstanceNotFound
	}

	if instance.Status != core.ProcessStatusSuspended {
		return core.ErrInvalidTransition
	}

	instance.Status = core.ProcessStatusActive

	return nil
}

func (e *FakeEngine) TerminateProcess(ctx context.Context, id, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	instance, ok := e.instances[id]
	if !ok {
		return core.ErrProcessInstanceNotFound
	}

	if instance.Status.Finished() {
		return core.ErrInvalidTransition
	}

	now := e.clock.Now()
	instance.Status = core.ProcessStatusTerminated
	instance.TerminationReason = reason
	instance.EndTime = &now

	return nil
}

func (e *FakeEngine) ProcessInstance(ctx context.Context, id string) (*core.ProcessInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	instance, ok := e.instances[id]
	if !ok {
		return nil, core.ErrProcessInstanceNotFound
	}

	c := *instance

	return &c, nil
}

func (e *FakeEngine) Task(ctx context.Context, id string) (*core.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[id]
	if !ok {
		return nil, core.ErrTaskNotFound
	}

	c := *t

	return &c, nil
}

func (e *FakeEngine) QueryTasks(ctx context.Context, filter engine.TaskFilter) ([]*core.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result []*core.Task

	for _, t := range e.tasks {
		if filter.ProcessInstanceID != "" && t.ProcessInstanceID != filter.ProcessInstanceID {
			continue
		}

		if filter.Assignee != "" && t.Assignee != filter.Assignee {
			continue
		}

		if filter.CandidateUser != "" && !t.HasCandidateUser(filter.CandidateUser) {
			continue
		}

		if len(filter.CandidateGroups) > 0 {
			match := false
			for _, key := range filter.CandidateGroups {
				for _, g := range t.CandidateGroups {
					if g == key {
						match = true
					}
				}
			}
			if !match {
				continue
			}
		}

		if filter.Status != "" && t.Status != filter.Status {
			continue
		}

		c := *t
		result = append(result, &c)
	}

	return result, nil
}

func (e *FakeEngine) SetAssignee(ctx context.Context, taskID, principalID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return core.ErrTaskNotFound
	}

	if t.Status.Finished() {
		return core.ErrInvalidTransition
	}

	t.Assignee = principalID
	t.Owner = ""
	t.Status = core.TaskStatusAssigned

	return nil
}

func (e *FakeEngine) DelegateTask(ctx context.Context, taskID, principalID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return core.ErrTaskNotFound
	}

	if t.Status.Finished() {
		return core.ErrInvalidTransition
	}

	t.Owner = t.Assignee
	t.Assignee = principalID
	t.Status = core.TaskStatusDelegated

	return nil
}

func (e *FakeEngine) CompleteTask(ctx context.Context, taskID string, variables engine.Variables) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return core.ErrTaskNotFound
	}

	if t.Status.Finished() {
		return core.ErrInvalidTransition
	}

	vars := e.variables[taskID]
	if vars == nil {
		vars = engine.Variables{}
	}
	for k, v := range variables {
		vars[k] = v
	}
	e.variables[taskID] = vars

	if t.Status == core.TaskStatusDelegated {
		// Resolve back to the owner instead of advancing the process.
		t.Assignee = t.Owner
		t.Owner = ""
		t.Status = core.TaskStatusAssigned

		return nil
	}

	now := e.clock.Now()
	t.Status = core.TaskStatusCompleted
	t.EndTime = &now

	e.advance(t)

	return nil
}

// advance moves the instance to the next task node, completing the instance
// when the completed task was the last one.
func (e *FakeEngine) advance(t *core.Task) {
	instance, ok := e.instances[t.ProcessInstanceID]
	if !ok {
		return
	}

	def, ok := e.definitions[instance.DefinitionKey]
	if !ok {
		return
	}

	next := e.position[instance.ID] + 1
	e.position[instance.ID] = next

	if next < len(def.TaskNodes) {
		e.createTask(instance, def.TaskNodes[next])
		return
	}

	now := e.clock.Now()
	instance.Status = core.ProcessStatusCompleted
	instance.EndTime = &now
}

func (e *FakeEngine) TaskVariables(ctx context.Context, taskID string) (engine.Variables, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tasks[taskID]; !ok {
		return nil, core.ErrTaskNotFound
	}

	vars := engine.Variables{}
	for k, v := range e.variables[taskID] {
		vars[k] = v
	}

	return vars, nil
}

func (e *FakeEngine) SetTaskVariables(ctx context.Context, taskID string, variables engine.Variables) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tasks[taskID]; !ok {
		return core.ErrTaskNotFound
	}

	vars := e.variables[taskID]
	if vars == nil {
		vars = engine.Variables{}
	}
	for k, v := range variables {
		vars[k] = v
	}
	e.variables[taskID] = vars

	return nil
}

func (e *FakeEngine) MoveToken(ctx context.Context, processInstanceID, fromActivityID, toActivityID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	instance, ok := e.instances[processInstanceID]
	if !ok {
		return core.ErrProcessInstanceNotFound
	}

	if instance.Status != core.ProcessStatusActive {
		return core.ErrInvalidTransition
	}

	def, ok := e.definitions[instance.DefinitionKey]
	if !ok {
		return core.ErrProcessInstanceNotFound
	}

	target := -1
	for i, node := range def.TaskNodes {
		if node.ActivityID == toActivityID {
			target = i
		}
	}
	if target < 0 {
		return core.ErrInvalidRollbackTarget
	}

	// Cancel open tasks at the source activity.
	now := e.clock.Now()
	for _, t := range e.tasks {
		if t.ProcessInstanceID == processInstanceID && t.DefinitionKey == fromActivityID && !t.Status.Finished() {
			t.Status = core.TaskStatusCompleted
			t.EndTime = &now
		}
	}

	e.position[processInstanceID] = target
	e.createTask(instance, def.TaskNodes[target])

	return nil
}

func (e *FakeEngine) AddComment(ctx context.Context, taskID, author, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tasks[taskID]; !ok {
		return core.ErrTaskNotFound
	}

	e.comments[taskID] = append(e.comments[taskID], &engine.Comment{
		ID:     uuid.NewString(),
		TaskID: taskID,
		Author: author,
		Text:   text,
		Time:   e.clock.Now(),
	})

	return nil
}

func (e *FakeEngine) ListComments(ctx context.Context, taskID string) ([]*engine.Comment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tasks[taskID]; !ok {
		return nil, core.ErrTaskNotFound
	}

	return append([]*engine.Comment{}, e.comments[taskID]...), nil
}

func (e *FakeEngine) CompiledGraph(ctx context.Context, processDefinitionID string) (map[string]struct{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, def := range e.definitions {
		if def.ID == processDefinitionID {
			nodes := map[string]struct{}{}
			for _, node := range def.TaskNodes {
				nodes[node.ActivityID] = struct{}{}
			}

			return nodes, nil
		}
	}

	return nil, core.ErrProcessInstanceNotFound
}
