// Package models defines the core domain models for the workflow studio:
// definition graphs, branch conditions, published versions and lookup tables.
package models

// StepType classifies what kind of human or automatic action a step requires.
type StepType string

const (
	StepTypeForm        StepType = "form"         // User fills a form and submits
	StepTypeApproval    StepType = "approval"     // Approver approves or rejects
	StepTypeTask        StepType = "task"         // Assignee marks a task done
	StepTypeNotify      StepType = "notify"       // Auto-advance: send notification
	StepTypeFork        StepType = "fork"         // Auto-advance: open parallel branches
	StepTypeJoin        StepType = "join"         // Auto-advance: merge parallel branches
	StepTypeSubWorkflow StepType = "sub_workflow" // Auto-advance: delegate to another workflow
)

// Label returns the display label used in diff descriptions and the UI.
func (t StepType) Label() string {
	switch t {
	case StepTypeForm:
		return "Form"
	case StepTypeApproval:
		return "Approval"
	case StepTypeTask:
		return "Task"
	case StepTypeNotify:
		return "Notification"
	case StepTypeFork:
		return "Fork"
	case StepTypeJoin:
		return "Join"
	case StepTypeSubWorkflow:
		return "Sub-workflow"
	default:
		return string(t)
	}
}

// TriggerEvent names the event that fires a transition out of a step.
type TriggerEvent string

const (
	EventSubmitForm   TriggerEvent = "submit_form"
	EventApprove      TriggerEvent = "approve"
	EventReject       TriggerEvent = "reject"
	EventCompleteTask TriggerEvent = "complete_task"
)

// ApproverStrategy selects how an approval step resolves its approver.
type ApproverStrategy string

const (
	ApproverStrategySpecific         ApproverStrategy = "specific"          // Fixed approver identity
	ApproverStrategyLookup           ApproverStrategy = "lookup"            // Resolved from a lookup table row
	ApproverStrategyInitiatorManager ApproverStrategy = "initiator_manager" // Manager of the form-value initiator
)

// FormField describes a single input on a form step.
type FormField struct {
	ID       string `json:"id"       validate:"required"`
	Label    string `json:"label"    validate:"required"`
	Type     string `json:"type"     validate:"required"`
	Required bool   `json:"required"`
}

// Step is one node in a workflow's directed graph. The ID is stable across
// versions and is the join key when two versions of a workflow are compared.
type Step struct {
	ID          string   `json:"id"          validate:"required"`
	Name        string   `json:"name"        validate:"required,min=1"`
	Type        StepType `json:"type"        validate:"required"`
	Description string   `json:"description,omitempty"`
	Order       int      `json:"order"`
	IsStart     bool     `json:"is_start"`
	IsTerminal  bool     `json:"is_terminal"`

	// Type-specific payload. Only the fields matching Type are meaningful;
	// the rest stay at their zero value.
	FormFields       []FormField      `json:"form_fields,omitempty"`
	ApproverStrategy ApproverStrategy `json:"approver_strategy,omitempty"`
	ApproverID       string           `json:"approver_id,omitempty"`
	LookupTableID    string           `json:"lookup_table_id,omitempty"`
	LookupKeyField   string           `json:"lookup_key_field,omitempty"`
	Instructions     string           `json:"instructions,omitempty"`
	Recipients       []string         `json:"recipients,omitempty"`
	ForkBranches     []string         `json:"fork_branches,omitempty"`
	JoinMode         string           `json:"join_mode,omitempty"`
	SubWorkflowID    string           `json:"sub_workflow_id,omitempty"`
}

// AutoAdvances reports whether the step completes itself without human action.
func (s *Step) AutoAdvances() bool {
	switch s.Type {
	case StepTypeNotify, StepTypeFork, StepTypeJoin, StepTypeSubWorkflow:
		return true
	default:
		return false
	}
}

// TriggerEvent returns the event that advances this step when it completes
// without a rejection decision.
func (s *Step) TriggerEvent() TriggerEvent {
	switch s.Type {
	case StepTypeForm:
		return EventSubmitForm
	case StepTypeApproval:
		return EventApprove
	default:
		return EventCompleteTask
	}
}

// Transition is a directed, conditionally guarded edge between two steps.
// Multiple transitions may share (from_step_id, on_event); at most one fires
// per advance, chosen by condition result and then priority.
type Transition struct {
	ID         string          `json:"id"`
	FromStepID string          `json:"from_step_id" validate:"required"`
	ToStepID   string          `json:"to_step_id"   validate:"required"`
	OnEvent    TriggerEvent    `json:"on_event"     validate:"required"`
	Condition  *ConditionGroup `json:"condition,omitempty"`
	Priority   int             `json:"priority"`
}

// Definition is one immutable snapshot of a workflow's step/transition graph.
type Definition struct {
	StartStepID string        `json:"start_step_id"`
	Steps       []*Step       `json:"steps"`
	Transitions []*Transition `json:"transitions"`
}

// StepByID returns the step with the given ID, or nil.
func (d *Definition) StepByID(id string) *Step {
	for _, step := range d.Steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}

// StepIndex builds a lookup map keyed by step ID.
func (d *Definition) StepIndex() map[string]*Step {
	index := make(map[string]*Step, len(d.Steps))
	for _, step := range d.Steps {
		index[step.ID] = step
	}

	return index
}

// TransitionsFrom returns, in declaration order, the transitions leaving the
// given step on the given event.
func (d *Definition) TransitionsFrom(stepID string, event TriggerEvent) []*Transition {
	matches := make([]*Transition, 0)

	for _, transition := range d.Transitions {
		if transition.FromStepID == stepID && transition.OnEvent == event {
			matches = append(matches, transition)
		}
	}

	return matches
}

// Clone creates a deep copy of the definition. Publishing snapshots a draft
// through this so later edits cannot reach into a published version.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}

	clone := &Definition{
		StartStepID: d.StartStepID,
		Steps:       make([]*Step, len(d.Steps)),
		Transitions: make([]*Transition, len(d.Transitions)),
	}

	for i, step := range d.Steps {
		copied := *step
		copied.FormFields = append([]FormField(nil), step.FormFields...)
		copied.Recipients = append([]string(nil), step.Recipients...)
		copied.ForkBranches = append([]string(nil), step.ForkBranches...)
		clone.Steps[i] = &copied
	}

	for i, transition := range d.Transitions {
		copied := *transition
		if transition.Condition != nil {
			group := *transition.Condition
			group.Conditions = append([]Condition(nil), transition.Condition.Conditions...)
			copied.Condition = &group
		}

		clone.Transitions[i] = &copied
	}

	return clone
}
