// Package diff computes human-readable change sets between two published
// versions of a workflow definition graph.
package diff

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/loopwork/flowstudio/pkg/models"
)

// ChangeType classifies a single change item.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// ChangeItem is one human-readable difference between two versions. Items
// are ephemeral: recomputed on every comparison request, never persisted.
type ChangeItem struct {
	Type        ChangeType `json:"type"`
	StepName    string     `json:"step_name"`
	StepType    string     `json:"step_type"`
	Description string     `json:"description"`
}

// Summary aggregates a change list by type for the comparison header.
type Summary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
}

// Compare diffs two versions of the same workflow graph, joining steps by
// their stable step ID. Output order is emission order, not significance:
// all additions (newer declaration order), then all removals (older
// declaration order), then per-step modifications in older declaration
// order with each step's own changes in a fixed field order.
func Compare(older, newer *models.Definition) []ChangeItem {
	if older == nil {
		older = &models.Definition{}
	}

	if newer == nil {
		newer = &models.Definition{}
	}

	olderIndex := older.StepIndex()
	newerIndex := newer.StepIndex()

	changes := make([]ChangeItem, 0)

	for _, step := range newer.Steps {
		if _, exists := olderIndex[step.ID]; !exists {
			changes = append(changes, ChangeItem{
				Type:        ChangeAdded,
				StepName:    step.Name,
				StepType:    step.Type.Label(),
				Description: fmt.Sprintf("Added step %q (%s)", step.Name, step.Type.Label()),
			})
		}
	}

	for _, step := range older.Steps {
		if _, exists := newerIndex[step.ID]; !exists {
			changes = append(changes, ChangeItem{
				Type:        ChangeRemoved,
				StepName:    step.Name,
				StepType:    step.Type.Label(),
				Description: fmt.Sprintf("Removed step %q (%s)", step.Name, step.Type.Label()),
			})
		}
	}

	for _, before := range older.Steps {
		after, exists := newerIndex[before.ID]
		if !exists {
			continue
		}

		changes = append(changes, compareStep(before, after)...)
	}

	return changes
}

// Summarize counts a change list by type.
func Summarize(changes []ChangeItem) Summary {
	var summary Summary

	for _, change := range changes {
		switch change.Type {
		case ChangeAdded:
			summary.Added++
		case ChangeRemoved:
			summary.Removed++
		case ChangeModified:
			summary.Modified++
		}
	}

	return summary
}

// compareStep emits zero or more modified items for a step present in both
// versions. The field order is fixed; consumers rely on it being stable.
// A step that changed type under the same ID is not called out as such: it
// falls through the per-field comparisons like any other edit.
func compareStep(before, after *models.Step) []ChangeItem {
	items := make([]ChangeItem, 0)

	emit := func(description string) {
		items = append(items, ChangeItem{
			Type:        ChangeModified,
			StepName:    after.Name,
			StepType:    after.Type.Label(),
			Description: description,
		})
	}

	if before.Name != after.Name {
		emit(fmt.Sprintf("Renamed from %q to %q", before.Name, after.Name))
	}

	switch {
	case before.Description == "" && after.Description != "":
		emit(fmt.Sprintf("Added a description to %q", after.Name))
	case before.Description != "" && after.Description == "":
		emit(fmt.Sprintf("Removed the description from %q", after.Name))
	case before.Description != after.Description:
		emit(fmt.Sprintf("Changed the description of %q", after.Name))
	}

	if delta := len(after.FormFields) - len(before.FormFields); delta > 0 {
		emit(fmt.Sprintf("Added %d form %s to %q", delta, pluralize("field", delta), after.Name))
	} else if delta < 0 {
		emit(fmt.Sprintf("Removed %d form %s from %q", -delta, pluralize("field", -delta), after.Name))
	} else if !formFieldsEqual(before.FormFields, after.FormFields) {
		emit(fmt.Sprintf("Modified form fields in %q", after.Name))
	}

	if before.ApproverStrategy != after.ApproverStrategy {
		emit(fmt.Sprintf("Changed approver strategy of %q from %q to %q",
			after.Name, before.ApproverStrategy, after.ApproverStrategy))
	}

	if before.ApproverID != after.ApproverID {
		emit(fmt.Sprintf("Changed approver of %q from %q to %q",
			after.Name, before.ApproverID, after.ApproverID))
	}

	if before.Instructions != after.Instructions {
		emit(fmt.Sprintf("Changed task instructions of %q", after.Name))
	}

	if strings.Join(before.Recipients, ",") != strings.Join(after.Recipients, ",") {
		emit(fmt.Sprintf("Changed notification recipients of %q", after.Name))
	}

	if len(before.ForkBranches) != len(after.ForkBranches) {
		emit(fmt.Sprintf("Changed fork branches of %q from %d to %d",
			after.Name, len(before.ForkBranches), len(after.ForkBranches)))
	}

	if before.JoinMode != after.JoinMode {
		emit(fmt.Sprintf("Changed join mode of %q from %q to %q",
			after.Name, before.JoinMode, after.JoinMode))
	}

	if before.IsStart != after.IsStart {
		if after.IsStart {
			emit(fmt.Sprintf("%q is now the start step", after.Name))
		} else {
			emit(fmt.Sprintf("%q is no longer the start step", after.Name))
		}
	}

	if before.IsTerminal != after.IsTerminal {
		if after.IsTerminal {
			emit(fmt.Sprintf("%q is now a terminal step", after.Name))
		} else {
			emit(fmt.Sprintf("%q is no longer a terminal step", after.Name))
		}
	}

	return items
}

// formFieldsEqual treats nil and empty slices as equal so an absent payload
// compares as its default value.
func formFieldsEqual(a, b []models.FormField) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}

	return reflect.DeepEqual(a, b)
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}

	return word + "s"
}
