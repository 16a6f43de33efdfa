package web_test

import (
	"encoding/json"
	"testing"

	"github.com/minerva-erp/osflow/pkg/steps"
	"github.com/minerva-erp/osflow/pkg/web"
	"github.com/moogar0880/problems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationProblem_JSON(t *testing.T) {
	t.Parallel()

	validation := web.ValidationProblem{
		Problem: problems.NewStatusProblem(422).
			WithType("validation_error").
			WithDetail("step 1 is incomplete"),
		Errors: []steps.FieldError{{Field: "nomeCompleto", Message: "is required"}},
	}

	payload, err := json.Marshal(validation)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(payload, &body))

	assert.Equal(t, "validation_error", body["type"])
	assert.Equal(t, float64(422), body["status"])
	assert.Equal(t, "step 1 is incomplete", body["detail"])
	assert.Equal(t, []any{map[string]any{"field": "nomeCompleto", "message": "is required"}}, body["errors"])
}
