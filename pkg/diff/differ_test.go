package diff

import (
	"testing"

	"github.com/loopwork/flowstudio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(id, name string, stepType models.StepType) *models.Step {
	return &models.Step{ID: id, Name: name, Type: stepType}
}

func definition(steps ...*models.Step) *models.Definition {
	return &models.Definition{Steps: steps}
}

func TestCompare_AddedAndRemoved(t *testing.T) {
	older := definition(
		step("s1", "Request", models.StepTypeForm),
		step("s2", "Legacy review", models.StepTypeApproval),
	)
	newer := definition(
		step("s1", "Request", models.StepTypeForm),
		step("s3", "Manager review", models.StepTypeApproval),
	)

	changes := Compare(older, newer)
	require.Len(t, changes, 2)

	assert.Equal(t, ChangeAdded, changes[0].Type)
	assert.Equal(t, `Added step "Manager review" (Approval)`, changes[0].Description)

	assert.Equal(t, ChangeRemoved, changes[1].Type)
	assert.Equal(t, `Removed step "Legacy review" (Approval)`, changes[1].Description)
}

func TestCompare_IdenticalStepsYieldNoChanges(t *testing.T) {
	build := func() *models.Definition {
		return definition(
			&models.Step{
				ID:         "s1",
				Name:       "Request",
				Type:       models.StepTypeForm,
				IsStart:    true,
				FormFields: []models.FormField{{ID: "f1", Label: "Amount", Type: "number"}},
			},
		)
	}

	assert.Empty(t, Compare(build(), build()))
}

func TestCompare_Rename(t *testing.T) {
	older := definition(step("s1", "Draft", models.StepTypeForm))
	newer := definition(step("s1", "Final", models.StepTypeForm))

	changes := Compare(older, newer)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeModified, changes[0].Type)
	assert.Equal(t, `Renamed from "Draft" to "Final"`, changes[0].Description)
}

func TestCompare_FormFieldCountDelta(t *testing.T) {
	f1 := models.FormField{ID: "f1", Label: "Amount", Type: "number"}
	f2 := models.FormField{ID: "f2", Label: "Reason", Type: "text"}

	older := definition(&models.Step{ID: "s1", Name: "Review", Type: models.StepTypeForm, FormFields: []models.FormField{f1}})
	newer := definition(&models.Step{ID: "s1", Name: "Review", Type: models.StepTypeForm, FormFields: []models.FormField{f1, f2}})

	changes := Compare(older, newer)
	require.Len(t, changes, 1)
	assert.Equal(t, `Added 1 form field to "Review"`, changes[0].Description)

	changes = Compare(newer, older)
	require.Len(t, changes, 1)
	assert.Equal(t, `Removed 1 form field from "Review"`, changes[0].Description)
}

func TestCompare_FormFieldSameCountDeepMismatch(t *testing.T) {
	older := definition(&models.Step{
		ID: "s1", Name: "Review", Type: models.StepTypeForm,
		FormFields: []models.FormField{{ID: "f1", Label: "Amount", Type: "number"}},
	})
	newer := definition(&models.Step{
		ID: "s1", Name: "Review", Type: models.StepTypeForm,
		FormFields: []models.FormField{{ID: "f1", Label: "Total amount", Type: "number"}},
	})

	changes := Compare(older, newer)
	require.Len(t, changes, 1)
	assert.Equal(t, `Modified form fields in "Review"`, changes[0].Description)
}

func TestCompare_FixedFieldOrderWithinStep(t *testing.T) {
	older := definition(&models.Step{
		ID:          "s1",
		Name:        "Review",
		Type:        models.StepTypeApproval,
		Description: "old",
		ApproverID:  "alice",
	})
	newer := definition(&models.Step{
		ID:          "s1",
		Name:        "Final review",
		Type:        models.StepTypeApproval,
		Description: "new",
		ApproverID:  "bob",
		IsTerminal:  true,
	})

	changes := Compare(older, newer)
	require.Len(t, changes, 4)

	assert.Contains(t, changes[0].Description, "Renamed")
	assert.Contains(t, changes[1].Description, "description")
	assert.Contains(t, changes[2].Description, "approver")
	assert.Contains(t, changes[3].Description, "terminal")
}

func TestCompare_PayloadFields(t *testing.T) {
	tests := []struct {
		name     string
		before   *models.Step
		after    *models.Step
		expected string
	}{
		{
			name:     "description added",
			before:   &models.Step{ID: "s", Name: "X", Type: models.StepTypeTask},
			after:    &models.Step{ID: "s", Name: "X", Type: models.StepTypeTask, Description: "now documented"},
			expected: `Added a description to "X"`,
		},
		{
			name:     "description removed",
			before:   &models.Step{ID: "s", Name: "X", Type: models.StepTypeTask, Description: "was documented"},
			after:    &models.Step{ID: "s", Name: "X", Type: models.StepTypeTask},
			expected: `Removed the description from "X"`,
		},
		{
			name:     "approver strategy",
			before:   &models.Step{ID: "s", Name: "X", Type: models.StepTypeApproval, ApproverStrategy: models.ApproverStrategySpecific},
			after:    &models.Step{ID: "s", Name: "X", Type: models.StepTypeApproval, ApproverStrategy: models.ApproverStrategyLookup},
			expected: `Changed approver strategy of "X" from "specific" to "lookup"`,
		},
		{
			name:     "instructions",
			before:   &models.Step{ID: "s", Name: "X", Type: models.StepTypeTask, Instructions: "do it"},
			after:    &models.Step{ID: "s", Name: "X", Type: models.StepTypeTask, Instructions: "do it carefully"},
			expected: `Changed task instructions of "X"`,
		},
		{
			name:     "recipients",
			before:   &models.Step{ID: "s", Name: "X", Type: models.StepTypeNotify, Recipients: []string{"a", "b"}},
			after:    &models.Step{ID: "s", Name: "X", Type: models.StepTypeNotify, Recipients: []string{"a"}},
			expected: `Changed notification recipients of "X"`,
		},
		{
			name:     "fork branches",
			before:   &models.Step{ID: "s", Name: "X", Type: models.StepTypeFork, ForkBranches: []string{"b1", "b2"}},
			after:    &models.Step{ID: "s", Name: "X", Type: models.StepTypeFork, ForkBranches: []string{"b1", "b2", "b3"}},
			expected: `Changed fork branches of "X" from 2 to 3`,
		},
		{
			name:     "join mode",
			before:   &models.Step{ID: "s", Name: "X", Type: models.StepTypeJoin, JoinMode: "all"},
			after:    &models.Step{ID: "s", Name: "X", Type: models.StepTypeJoin, JoinMode: "any"},
			expected: `Changed join mode of "X" from "all" to "any"`,
		},
		{
			name:     "start flag",
			before:   &models.Step{ID: "s", Name: "X", Type: models.StepTypeForm},
			after:    &models.Step{ID: "s", Name: "X", Type: models.StepTypeForm, IsStart: true},
			expected: `"X" is now the start step`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := Compare(definition(tt.before), definition(tt.after))
			require.Len(t, changes, 1)
			assert.Equal(t, tt.expected, changes[0].Description)
		})
	}
}

func TestCompare_NilDefinitions(t *testing.T) {
	assert.Empty(t, Compare(nil, nil))

	changes := Compare(nil, definition(step("s1", "New", models.StepTypeForm)))
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeAdded, changes[0].Type)
}

func TestSummarize(t *testing.T) {
	changes := []ChangeItem{
		{Type: ChangeAdded},
		{Type: ChangeAdded},
		{Type: ChangeRemoved},
		{Type: ChangeModified},
		{Type: ChangeModified},
		{Type: ChangeModified},
	}

	summary := Summarize(changes)
	assert.Equal(t, Summary{Added: 2, Removed: 1, Modified: 3}, summary)
}
