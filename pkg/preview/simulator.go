// Package preview implements the workflow execution preview simulator: a
// timer-paced state machine that walks a definition graph step by step,
// evaluating branch conditions and producing an ordered event log.
package preview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loopwork/flowstudio/pkg/models"
)

// StepState is the lifecycle state of one step within a simulation run.
type StepState string

const (
	StepPending   StepState = "pending"
	StepActive    StepState = "active"
	StepCompleted StepState = "completed"
	StepRejected  StepState = "rejected"
	StepSkipped   StepState = "skipped"
)

// RunState is the overall state of a simulation run.
type RunState string

const (
	RunIdle     RunState = "idle"
	RunRunning  RunState = "running"
	RunComplete RunState = "complete"
)

// Speed paces the artificial delay between auto-advancing steps. The delay
// is cosmetic, not correctness-bearing; tests run with a zero delay.
type Speed string

const (
	SpeedSlow   Speed = "slow"
	SpeedNormal Speed = "normal"
	SpeedFast   Speed = "fast"
)

func (s Speed) delay() time.Duration {
	switch s {
	case SpeedSlow:
		return 1500 * time.Millisecond
	case SpeedFast:
		return 300 * time.Millisecond
	default:
		return 800 * time.Millisecond
	}
}

// EventType classifies entries in the simulation event log.
type EventType string

const (
	EventStepEntered        EventType = "step_entered"
	EventStepCompleted      EventType = "step_completed"
	EventStepRejected       EventType = "step_rejected"
	EventStepSkipped        EventType = "step_skipped"
	EventConditionEvaluated EventType = "condition_evaluated"
	EventWorkflowComplete   EventType = "workflow_complete"
)

// Event is one append-only entry in the simulation log. Events are immutable
// once appended; their order is emission order and is never rewritten.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	StepID    string    `json:"step_id,omitempty"`
	StepName  string    `json:"step_name,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// StepStatus is the externally visible state of one step in the current run.
type StepStatus struct {
	StepID      string         `json:"step_id"`
	Name        string         `json:"name"`
	Type        models.StepType `json:"type"`
	State       StepState      `json:"state"`
	EnteredAt   *time.Time     `json:"entered_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Decision    string         `json:"decision,omitempty"`
	FormValues  map[string]any `json:"form_values,omitempty"`
}

// ApproverResolver annotates approval steps with the approver the running
// definition would assign. Satisfied by lookup.Resolver; optional.
type ApproverResolver interface {
	ResolveApprover(ctx context.Context, step *models.Step, values map[string]any) (string, error)
}

type stepRun struct {
	step        *models.Step
	state       StepState
	enteredAt   *time.Time
	completedAt *time.Time
	decision    string
	formValues  map[string]any
}

// Simulator plays a workflow definition without persisting anything. All
// state lives behind one mutex; public methods lock, internal transitions
// assume the lock is held. Delayed auto-advance callbacks capture the run
// generation and re-check it at fire time, so a Reset mid-run turns every
// pending timer into a no-op.
type Simulator struct {
	mu sync.Mutex

	logger   *slog.Logger
	resolver ApproverResolver

	definition   *models.Definition
	steps        map[string]*stepRun
	events       []Event
	values       map[string]any
	processed    map[string]bool
	activeStepID string
	state        RunState
	generation   int
	delay        time.Duration
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSpeed sets the pacing delay from a named speed.
func WithSpeed(speed Speed) Option {
	return func(s *Simulator) {
		s.delay = speed.delay()
	}
}

// WithDelay sets the pacing delay directly. A zero or negative delay makes
// auto-advance synchronous, which is what tests want.
func WithDelay(delay time.Duration) Option {
	return func(s *Simulator) {
		s.delay = delay
	}
}

// WithApproverResolver makes the simulator annotate approval steps with the
// approver the definition would assign.
func WithApproverResolver(resolver ApproverResolver) Option {
	return func(s *Simulator) {
		s.resolver = resolver
	}
}

// NewSimulator creates an idle simulator for the given definition.
func NewSimulator(logger *slog.Logger, definition *models.Definition, opts ...Option) *Simulator {
	if definition == nil {
		definition = &models.Definition{}
	}

	simulator := &Simulator{
		logger: logger,
		delay:  SpeedNormal.delay(),
	}

	for _, opt := range opts {
		opt(simulator)
	}

	simulator.mu.Lock()
	simulator.reset(definition)
	simulator.mu.Unlock()

	return simulator
}

// Reset rebuilds every step as pending, clears the event log, the form
// value scratch space and the processed tracking, and returns the run to
// idle. Callable at any time, including mid-run: bumping the generation
// abandons the effects of every in-flight timer.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset(s.definition)
}

func (s *Simulator) reset(definition *models.Definition) {
	s.generation++
	s.definition = definition
	s.steps = make(map[string]*stepRun, len(definition.Steps))

	for _, step := range definition.Steps {
		s.steps[step.ID] = &stepRun{step: step, state: StepPending}
	}

	s.events = make([]Event, 0)
	s.values = make(map[string]any)
	s.processed = make(map[string]bool)
	s.activeStepID = ""
	s.state = RunIdle
}

// Start begins a run by activating the start step. A definition without a
// start step makes Start a no-op: this is a design-time preview tool, and a
// half-built graph should not crash it.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != RunIdle || s.definition.StartStepID == "" {
		return
	}

	s.state = RunRunning
	s.activateStep(ctx, s.definition.StartStepID)
}

// SetValue stores one form value for condition evaluation. Keys may be
// written mid-run; conditions always read the values current at evaluation
// time.
func (s *Simulator) SetValue(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
}

// SetValues merges a batch of form values.
func (s *Simulator) SetValues(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range values {
		s.values[key] = value
	}
}

// SetSpeed changes the pacing delay for subsequent auto-advances.
func (s *Simulator) SetSpeed(speed Speed) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delay = speed.delay()
}

// State returns the overall run state.
func (s *Simulator) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// ActiveStepID returns the step currently awaiting action, if any.
func (s *Simulator) ActiveStepID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.activeStepID
}

// Events returns a copy of the event log in emission order.
func (s *Simulator) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Event(nil), s.events...)
}

// Steps returns the per-step status in definition order.
func (s *Simulator) Steps() []StepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]StepStatus, 0, len(s.definition.Steps))

	for _, step := range s.definition.Steps {
		run := s.steps[step.ID]
		statuses = append(statuses, StepStatus{
			StepID:      step.ID,
			Name:        step.Name,
			Type:        step.Type,
			State:       run.state,
			EnteredAt:   run.enteredAt,
			CompletedAt: run.completedAt,
			Decision:    run.decision,
			FormValues:  run.formValues,
		})
	}

	return statuses
}

// CompleteCurrentStep completes the active step with an optional decision.
// Only valid while a step is active, the run is not complete and the active
// step has not been processed yet; anything else (including a double
// submit) is silently ignored.
func (s *Simulator) CompleteCurrentStep(ctx context.Context, decision string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != RunRunning || s.activeStepID == "" {
		return
	}

	run, exists := s.steps[s.activeStepID]
	if !exists || s.processed[s.activeStepID] {
		return
	}

	step := run.step
	s.processed[step.ID] = true

	now := time.Now()
	run.completedAt = &now
	run.decision = decision
	run.formValues = copyValues(s.values)

	rejected := decision == "rejected"
	if rejected {
		run.state = StepRejected
		s.appendEvent(EventStepRejected, step, fmt.Sprintf("%q was rejected", step.Name))

		next := s.selectTransition(step, models.EventReject)
		if next == nil {
			s.markWorkflowComplete("Rejection path ended")

			return
		}

		s.scheduleActivation(next.ToStepID)

		return
	}

	run.state = StepCompleted

	details := fmt.Sprintf("%q completed", step.Name)
	if decision != "" {
		details = fmt.Sprintf("%q completed with decision %q", step.Name, decision)
	}

	s.appendEvent(EventStepCompleted, step, details)

	next := s.selectTransition(step, step.TriggerEvent())
	if next == nil {
		if step.IsTerminal {
			s.markWorkflowComplete("Workflow completed successfully")
		} else {
			s.markWorkflowComplete("No more steps")
		}

		return
	}

	s.scheduleActivation(next.ToStepID)
}

// activateStep enters a step. Guards, in order: a completed run ignores the
// activation; a step already processed in this run force-completes the
// workflow with a diagnostic instead of re-entering, which is the only loop
// breaker for definitions with cycles.
func (s *Simulator) activateStep(ctx context.Context, stepID string) {
	if s.state == RunComplete {
		return
	}

	if s.processed[stepID] {
		s.markWorkflowComplete(fmt.Sprintf("Stopped: step %q was already processed (cycle in definition)", stepID))

		return
	}

	run, exists := s.steps[stepID]
	if !exists {
		// Dangling transition target. Force-complete with a diagnostic so
		// designers see the broken edge instead of a stalled preview.
		s.markWorkflowComplete(fmt.Sprintf("Stopped: transition target %q is not in the definition", stepID))

		return
	}

	step := run.step
	now := time.Now()
	run.state = StepActive
	run.enteredAt = &now
	s.activeStepID = stepID

	details := fmt.Sprintf("Entered %q", step.Name)

	if step.Type == models.StepTypeApproval && s.resolver != nil {
		if approver, err := s.resolver.ResolveApprover(ctx, step, s.values); err == nil && approver != "" {
			details = fmt.Sprintf("Entered %q, waiting for approval by %s", step.Name, approver)
		} else if err != nil {
			s.logger.Warn("approver resolution failed during preview",
				"step_id", step.ID, "error", err)
		}
	}

	s.appendEvent(EventStepEntered, step, details)

	if step.AutoAdvances() {
		s.schedule(func() {
			s.autoCompleteStep(step.ID)
		})
	}
}

// autoCompleteStep finishes an auto-advancing step after its pacing delay
// and chains into the next activation using the fixed complete_task event.
func (s *Simulator) autoCompleteStep(stepID string) {
	if s.state == RunComplete || s.processed[stepID] {
		return
	}

	run, exists := s.steps[stepID]
	if !exists {
		return
	}

	step := run.step
	s.processed[stepID] = true

	if s.activeStepID == stepID {
		s.activeStepID = ""
	}

	now := time.Now()
	run.state = StepCompleted
	run.completedAt = &now
	s.appendEvent(EventStepCompleted, step, fmt.Sprintf("%q completed automatically", step.Name))

	if step.IsTerminal {
		s.markWorkflowComplete("Workflow completed successfully")

		return
	}

	next := s.selectTransition(step, models.EventCompleteTask)
	if next == nil {
		s.markWorkflowComplete("No more steps")

		return
	}

	s.scheduleActivation(next.ToStepID)
}

// selectTransition picks the transition to follow out of a step: discard
// candidates whose condition evaluates false, then take the highest
// priority among the rest (ties go to the first encountered). Targets of
// discarded candidates are marked skipped while the run lasts.
func (s *Simulator) selectTransition(step *models.Step, event models.TriggerEvent) *models.Transition {
	candidates := s.definition.TransitionsFrom(step.ID, event)
	if len(candidates) == 0 {
		return nil
	}

	var chosen *models.Transition

	discarded := make([]*models.Transition, 0)

	for _, candidate := range candidates {
		if !candidate.Condition.Evaluate(s.values) {
			discarded = append(discarded, candidate)

			continue
		}

		if chosen == nil || candidate.Priority > chosen.Priority {
			chosen = candidate
		}
	}

	for _, transition := range discarded {
		s.markSkipped(transition.ToStepID)
	}

	if chosen != nil && !chosen.Condition.IsTrivial() {
		target := s.definition.StepByID(chosen.ToStepID)
		targetName := chosen.ToStepID

		if target != nil {
			targetName = target.Name
		}

		s.appendEvent(EventConditionEvaluated, step,
			fmt.Sprintf("Condition matched, branching to %q", targetName))
	}

	return chosen
}

// markSkipped flags a pending branch target whose guarding condition lost.
func (s *Simulator) markSkipped(stepID string) {
	run, exists := s.steps[stepID]
	if !exists || run.state != StepPending {
		return
	}

	run.state = StepSkipped
	s.appendEvent(EventStepSkipped, run.step, fmt.Sprintf("Skipped %q: branch condition not met", run.step.Name))
}

// markWorkflowComplete is the idempotent terminal transition: it fires at
// most once per run.
func (s *Simulator) markWorkflowComplete(message string) {
	if s.state == RunComplete {
		return
	}

	s.state = RunComplete
	s.activeStepID = ""
	s.events = append(s.events, Event{
		Timestamp: time.Now(),
		Type:      EventWorkflowComplete,
		Details:   message,
	})
}

func (s *Simulator) scheduleActivation(stepID string) {
	s.schedule(func() {
		s.activateStep(context.Background(), stepID)
	})
}

// schedule runs fn after the pacing delay. The callback re-reads the run
// generation under the lock at fire time, not when it was scheduled: a
// Reset between scheduling and firing must make the callback a no-op.
func (s *Simulator) schedule(fn func()) {
	if s.delay <= 0 {
		fn()

		return
	}

	generation := s.generation

	time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.generation != generation {
			return
		}

		fn()
	})
}

func (s *Simulator) appendEvent(eventType EventType, step *models.Step, details string) {
	s.events = append(s.events, Event{
		Timestamp: time.Now(),
		Type:      eventType,
		StepID:    step.ID,
		StepName:  step.Name,
		Details:   details,
	})
}

func copyValues(values map[string]any) map[string]any {
	copied := make(map[string]any, len(values))
	for key, value := range values {
		copied[key] = value
	}

	return copied
}
