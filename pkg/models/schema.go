package models

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// definitionSchema is the JSON Schema a raw definition document must satisfy
// before import turns it into a draft. Structural graph rules (exactly one
// start step, resolvable transition targets) are checked later at publish
// time; the schema only guards shape and enums.
const definitionSchema = `{
	"type": "object",
	"required": ["steps", "transitions"],
	"properties": {
		"start_step_id": {"type": "string"},
		"steps": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name", "type"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"type": {
						"type": "string",
						"enum": ["form", "approval", "task", "notify", "fork", "join", "sub_workflow"]
					},
					"order": {"type": "integer"},
					"is_start": {"type": "boolean"},
					"is_terminal": {"type": "boolean"},
					"form_fields": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["id", "label", "type"],
							"properties": {
								"id": {"type": "string"},
								"label": {"type": "string"},
								"type": {"type": "string"},
								"required": {"type": "boolean"}
							}
						}
					},
					"recipients": {"type": "array", "items": {"type": "string"}},
					"fork_branches": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"transitions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["from_step_id", "to_step_id", "on_event"],
				"properties": {
					"from_step_id": {"type": "string", "minLength": 1},
					"to_step_id": {"type": "string", "minLength": 1},
					"on_event": {
						"type": "string",
						"enum": ["submit_form", "approve", "reject", "complete_task"]
					},
					"priority": {"type": "integer"},
					"condition": {
						"type": "object",
						"properties": {
							"logic": {"type": "string", "enum": ["and", "or"]},
							"conditions": {
								"type": "array",
								"items": {
									"type": "object",
									"required": ["field", "operator"],
									"properties": {
										"field": {"type": "string"},
										"operator": {"type": "string"}
									}
								}
							}
						}
					}
				}
			}
		}
	}
}`

// ValidateDefinitionJSON validates a raw definition document against the
// definition schema, returning one error summarizing every violation.
func ValidateDefinitionJSON(raw []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(definitionSchema)
	dataLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("definition is not valid JSON: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("definition schema violations: %s", strings.Join(details, "; "))
	}

	return nil
}
