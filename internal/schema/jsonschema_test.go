package schema

import (
	"bytes"
	"encoding/json"
	"testing"

	jsValidator "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileExport(t *testing.T, s *Schema) *jsValidator.Schema {
	t.Helper()
	raw, err := MarshalJSONSchema(s)
	require.NoError(t, err)

	doc, err := jsValidator.UnmarshalJSON(bytes.NewReader(raw))
	require.NoError(t, err)

	c := jsValidator.NewCompiler()
	require.NoError(t, c.AddResource("export.json", doc))
	compiled, err := c.Compile("export.json")
	require.NoError(t, err)
	return compiled
}

func asInstance(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	inst, err := jsValidator.UnmarshalJSON(bytes.NewReader(b))
	require.NoError(t, err)
	return inst
}

// The exported document and the validator must agree on canonical values.
func TestJSONSchema_AgreesWithValidator(t *testing.T) {
	compiled := compileExport(t, quizOutput())

	good := map[string]any{"questions": []any{question("A", "B", "C", "D")}}
	rec, err := Validate(quizOutput(), good)
	require.NoError(t, err)
	assert.NoError(t, compiled.Validate(asInstance(t, rec)))

	bad := map[string]any{"questions": []any{question("A", "B", "C")}}
	_, err = Validate(quizOutput(), bad)
	require.Error(t, err)
	assert.Error(t, compiled.Validate(asInstance(t, bad)))

	assert.Error(t, compiled.Validate(asInstance(t, map[string]any{})))
}

func TestJSONSchema_InputDocument(t *testing.T) {
	compiled := compileExport(t, testPaperInput())

	in := map[string]any{
		"topics":            "Trigonometry",
		"difficulty":        "hard",
		"numberOfQuestions": 12,
		"documentDataUri":   "data:application/pdf;base64,JVBERi0=",
	}
	assert.NoError(t, compiled.Validate(asInstance(t, in)))

	in["documentDataUri"] = "not-a-data-uri"
	assert.Error(t, compiled.Validate(asInstance(t, in)))
}

func TestJSONSchema_Shape(t *testing.T) {
	doc := JSONSchema(testPaperInput())

	assert.Equal(t, JSONSchemaDialect, doc["$schema"])
	assert.Equal(t, "object", doc["type"])
	assert.ElementsMatch(t, []string{"topics", "difficulty", "numberOfQuestions"}, doc["required"])

	props := doc["properties"].(map[string]any)
	difficulty := props["difficulty"].(map[string]any)
	assert.Equal(t, []string{"easy", "medium", "hard"}, difficulty["enum"])
	language := props["language"].(map[string]any)
	assert.Equal(t, "English", language["default"])
}
