package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"edugenius/backend/internal/schema"
)

// Coerce turns a raw backend answer into a record of out. Text-mode schemas take the
// raw text as their single field; every other schema expects a JSON object. The result
// is validated with the same rules as flow input and is never partially filled.
func Coerce(raw string, out *schema.Schema) (schema.Record, error) {
	if f, ok := out.TextField(); ok {
		return schema.Validate(out, map[string]any{f.Name: raw})
	}

	body := stripCodeFence(raw)
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, &schema.FieldError{Reason: fmt.Sprintf("response is not valid JSON: %v", err)}
	}
	if dec.More() {
		return nil, &schema.FieldError{Reason: "response has trailing data after the JSON object"}
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, &schema.FieldError{Reason: "response is not a JSON object"}
	}
	return schema.Validate(out, obj)
}

// stripCodeFence removes a surrounding ```json ... ``` block, which chat models add
// even in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return s
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// CountBinding requires the output array Output to hold exactly as many items as the
// input integer Input asked for.
type CountBinding struct {
	Output string `yaml:"output"`
	Input  string `yaml:"input"`
}

func checkCounts(bindings []CountBinding, in, out schema.Record) error {
	for _, b := range bindings {
		want, ok := in[b.Input].(int64)
		if !ok {
			continue
		}
		items, _ := out[b.Output].([]any)
		if int64(len(items)) != want {
			return &schema.FieldError{
				Path:   b.Output,
				Reason: fmt.Sprintf("must have exactly %d items (%s), got %d", want, b.Input, len(items)),
			}
		}
	}
	return nil
}

func fieldPath(err error) string {
	var fe *schema.FieldError
	if errors.As(err, &fe) {
		return fe.Path
	}
	return ""
}
