// Package steps implements the per-step contract: completeness, validation and read-only checks.
package steps

import (
	"fmt"

	"github.com/minerva-erp/osflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// Rule is a step-local check that cannot be expressed in the data schema.
type Rule func(data map[string]any, result *ValidationResult)

// Step is the data contract of a single workflow step. It has no side effects
// and holds no mutable state, so one instance is shared by every order.
type Step struct {
	Label       string
	Responsible models.ResponsibleRole

	fields []Field
	rules  []Rule
	doc    map[string]any
	schema *gojsonschema.Schema
}

// New compiles the data schema of a step from its fields.
func New(label string, responsible models.ResponsibleRole, fields []Field, rules ...Rule) (*Step, error) {
	properties := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))

	for _, field := range fields {
		properties[field.Name] = field.Schema

		if field.Required {
			required = append(required, field.Name)
		}
	}

	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		doc["required"] = required
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("invalid data schema for step %q: %w", label, err)
	}

	return &Step{
		Label:       label,
		Responsible: responsible,
		fields:      fields,
		rules:       rules,
		doc:         doc,
		schema:      schema,
	}, nil
}

// MustNew is New for statically declared registries.
func MustNew(label string, responsible models.ResponsibleRole, fields []Field, rules ...Rule) *Step {
	step, err := New(label, responsible, fields, rules...)
	if err != nil {
		panic(err)
	}

	return step
}

// Schema returns the JSON Schema document of the step data.
func (s *Step) Schema() map[string]any {
	return s.doc
}

// Validate reports every field-level problem with data.
func (s *Step) Validate(data map[string]any) ValidationResult {
	result := ValidationResult{}

	if data == nil {
		data = map[string]any{}
	}

	res, err := s.schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		result.Add("", fmt.Sprintf("step data is not a valid document: %v", err))

		return result
	}

	for _, resultErr := range res.Errors() {
		result.Add(fieldOf(resultErr), resultErr.Description())
	}

	for _, rule := range s.rules {
		rule(data, &result)
	}

	return result
}

// IsComplete reports whether data satisfies the step. An incomplete step
// always yields at least one error from Validate.
func (s *Step) IsComplete(data map[string]any) bool {
	return s.Validate(data).Valid()
}

// CanEdit reports whether the actor may fill in the step: a delegate can, and
// members of the responsible sector can. Executives only edit within their own
// sector.
func (s *Step) CanEdit(rc models.RoleContext, delegatedTo string) bool {
	if delegatedTo != "" && rc.UserID == delegatedTo {
		return true
	}

	return rc.BelongsTo(s.Responsible.Sector())
}

// IsReadOnly reports whether the step is read-only for the actor given the
// step and order status.
func (s *Step) IsReadOnly(rc models.RoleContext, status models.StepStatus, orderStatus models.OrderStatus) bool {
	return s.IsReadOnlyRecord(rc, &models.StepRecord{Status: status}, orderStatus)
}

// IsReadOnlyRecord is IsReadOnly taking delegation and pending approvals into account.
func (s *Step) IsReadOnlyRecord(rc models.RoleContext, record *models.StepRecord, orderStatus models.OrderStatus) bool {
	if record == nil || orderStatus.Terminal() {
		return true
	}

	if record.Status != models.StepStatusActive || record.AwaitingApproval {
		return true
	}

	return !s.CanEdit(rc, record.DelegatedTo)
}

// AttachmentIDs extracts the attachment references held by attachment fields.
func (s *Step) AttachmentIDs(data map[string]any) []string {
	var ids []string

	for _, field := range s.fields {
		if !field.Attachment {
			continue
		}

		switch entries := data[field.Name].(type) {
		case []any:
			for _, entry := range entries {
				ids = appendAttachmentID(ids, entry)
			}
		case []string:
			ids = append(ids, entries...)
		case []map[string]any:
			for _, entry := range entries {
				ids = appendAttachmentID(ids, entry)
			}
		}
	}

	return ids
}

func appendAttachmentID(ids []string, entry any) []string {
	switch v := entry.(type) {
	case string:
		return append(ids, v)
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return append(ids, id)
		}
	}

	return ids
}

func fieldOf(resultErr gojsonschema.ResultError) string {
	if resultErr.Type() == "required" {
		if property, ok := resultErr.Details()["property"].(string); ok {
			return property
		}
	}

	field := resultErr.Field()
	if field == gojsonschema.STRING_CONTEXT_ROOT {
		return ""
	}

	return field
}
