package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"edugenius/backend/internal/schema"
)

// Attachment is a binary part sent next to the prompt text rather than inside it.
type Attachment struct {
	Field    string
	MIMEType string
	Data     []byte
}

// Rendered is the output of Render: prompt text plus its attachments in schema order.
type Rendered struct {
	Text        string
	Attachments []Attachment
}

// RenderError means a template referenced a value the request did not carry. With a
// compiled template and a validated request it indicates a configuration bug.
type RenderError struct {
	Field  string
	Reason string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %q: %s", e.Field, e.Reason)
}

// Render substitutes req into t. The output is a pure function of (t, req).
func Render(t *Template, req schema.Record) (*Rendered, error) {
	r := &renderer{t: t, req: req, index: map[string]int{}}
	if err := r.walk(t.nodes); err != nil {
		return nil, err
	}
	// Attachments the template never placed still travel with the prompt.
	if f, ok := t.schema.AttachmentField(); ok {
		if _, done := r.index[f.Name]; !done {
			if v, present := req[f.Name]; present && !schema.IsBlank(v) {
				if _, err := r.attach(f.Name, v); err != nil {
					return nil, err
				}
			}
		}
	}
	return &Rendered{Text: strings.TrimSpace(r.sb.String()), Attachments: r.attachments}, nil
}

type renderer struct {
	t           *Template
	req         schema.Record
	sb          strings.Builder
	attachments []Attachment
	index       map[string]int
}

func (r *renderer) walk(nodes []node) error {
	for _, n := range nodes {
		switch n.kind {
		case nodeText:
			r.sb.WriteString(n.text)
		case nodeVar:
			v, ok := r.req[n.field]
			if !ok {
				return &RenderError{Field: n.field, Reason: "no value in request"}
			}
			f, _ := r.t.schema.Field(n.field)
			r.sb.WriteString(formatValue(f, v, ""))
		case nodeIf:
			if v, ok := r.req[n.field]; ok && !schema.IsBlank(v) {
				if err := r.walk(n.body); err != nil {
					return err
				}
			}
		case nodeMedia:
			v, ok := r.req[n.field]
			if !ok {
				return &RenderError{Field: n.field, Reason: "no attachment in request"}
			}
			idx, err := r.attach(n.field, v)
			if err != nil {
				return err
			}
			a := r.attachments[idx]
			fmt.Fprintf(&r.sb, "[attachment %d: %s]", idx+1, a.MIMEType)
		}
	}
	return nil
}

func (r *renderer) attach(field string, v any) (int, error) {
	if idx, ok := r.index[field]; ok {
		return idx, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, &RenderError{Field: field, Reason: "attachment is not a string"}
	}
	uri, err := schema.ParseDataURI(s)
	if err != nil {
		return 0, &RenderError{Field: field, Reason: err.Error()}
	}
	r.attachments = append(r.attachments, Attachment{Field: field, MIMEType: uri.MIMEType, Data: uri.Data})
	idx := len(r.attachments) - 1
	r.index[field] = idx
	return idx, nil
}

// formatValue converts v to prompt text. Arrays of scalars join with ", ", records
// become "name: value" lines in declaration order and arrays of records become
// numbered sections.
func formatValue(f *schema.Field, v any, indent string) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		var items *schema.Field
		if f != nil {
			items = f.Items
		}
		if items != nil && items.Kind == schema.KindRecord {
			var sb strings.Builder
			for i, item := range t {
				if i > 0 {
					sb.WriteString("\n")
				}
				fmt.Fprintf(&sb, "%s%d.\n", indent, i+1)
				sb.WriteString(formatValue(items, item, indent+"  "))
			}
			return sb.String()
		}
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = formatValue(items, item, indent)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if f == nil {
			return fmt.Sprint(t)
		}
		var sb strings.Builder
		for i := range f.Fields {
			sub := &f.Fields[i]
			val, ok := t[sub.Name]
			if !ok {
				continue
			}
			if sub.Kind == schema.KindRecord || (sub.Kind == schema.KindArray && sub.Items != nil && sub.Items.Kind == schema.KindRecord) {
				fmt.Fprintf(&sb, "%s%s:\n%s\n", indent, sub.Name, formatValue(sub, val, indent+"  "))
				continue
			}
			fmt.Fprintf(&sb, "%s%s: %s\n", indent, sub.Name, formatValue(sub, val, indent))
		}
		return strings.TrimRight(sb.String(), "\n")
	default:
		return fmt.Sprint(t)
	}
}
