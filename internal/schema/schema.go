// Package schema describes record shapes and validates untyped input against them.
//
// The same rule set validates caller input before a flow runs and model output after it
// returns, so a record accepted once is always accepted again.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the primitive kind of a field.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindEnum    Kind = "enum"
	KindArray   Kind = "array"
	KindRecord  Kind = "record"
)

// Format is an additional string constraint.
type Format string

const (
	FormatNone    Format = ""
	FormatDataURI Format = "data-uri"
	FormatEmail   Format = "email"
)

// Record is a validated instance of a Schema. Integers are int64, arrays are []any and
// nested records are map[string]any.
type Record = map[string]any

// Field declares one named value of a record.
type Field struct {
	Name        string `yaml:"name"`
	Kind        Kind   `yaml:"type"`
	Description string `yaml:"description"`
	Optional    bool   `yaml:"optional"`
	Default     any    `yaml:"default"`

	// MinLength/MaxLength bound string length in characters, or array length in items.
	MinLength *int `yaml:"min_length"`
	MaxLength *int `yaml:"max_length"`

	Min *int64 `yaml:"min"`
	Max *int64 `yaml:"max"`

	Enum      []string `yaml:"enum"`
	Format    Format   `yaml:"format"`
	MIMETypes []string `yaml:"mime_types"`

	Items  *Field  `yaml:"items"`
	Fields []Field `yaml:"fields"`
}

// Schema is a named record shape.
type Schema struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Fields      []Field `yaml:"fields"`

	// Text marks a schema whose single string field is filled with the raw backend text
	// instead of parsed JSON.
	Text bool `yaml:"text"`
}

// Field returns the top-level field with the given name.
func (s *Schema) Field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Required reports whether a value must be supplied for f.
func (f *Field) Required() bool {
	return !f.Optional && f.Default == nil
}

// IsAttachment reports whether f carries a data-URI payload.
func (f *Field) IsAttachment() bool {
	return f.Kind == KindString && f.Format == FormatDataURI
}

// AttachmentField returns the schema's attachment field, if any.
func (s *Schema) AttachmentField() (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].IsAttachment() {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// TextField returns the field filled by raw text for text-mode schemas.
func (s *Schema) TextField() (*Field, bool) {
	if !s.Text || len(s.Fields) != 1 || s.Fields[0].Kind != KindString {
		return nil, false
	}
	return &s.Fields[0], true
}

// Check verifies the definition-time invariants of s.
func (s *Schema) Check() error {
	if s == nil {
		return errors.New("schema is nil")
	}
	if s.Text {
		if _, ok := s.TextField(); !ok {
			return fmt.Errorf("schema %q: text mode requires exactly one string field", s.Name)
		}
	}
	if err := checkFields(s.Fields, ""); err != nil {
		return fmt.Errorf("schema %q: %w", s.Name, err)
	}
	attachments := 0
	for i := range s.Fields {
		if s.Fields[i].IsAttachment() {
			attachments++
		}
	}
	if attachments > 1 {
		return fmt.Errorf("schema %q: at most one attachment field is allowed, found %d", s.Name, attachments)
	}
	return nil
}

func checkFields(fields []Field, prefix string) error {
	seen := make(map[string]struct{}, len(fields))
	for i := range fields {
		f := &fields[i]
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%sfield %d has no name", prefix, i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", joinPath(prefix, f.Name))
		}
		seen[f.Name] = struct{}{}
		if err := checkField(f, joinPath(prefix, f.Name)); err != nil {
			return err
		}
	}
	return nil
}

func checkField(f *Field, path string) error {
	switch f.Kind {
	case KindString:
		if f.Format != FormatNone && f.Format != FormatDataURI && f.Format != FormatEmail {
			return fmt.Errorf("field %q: unknown format %q", path, f.Format)
		}
	case KindInteger:
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return fmt.Errorf("field %q: min %d exceeds max %d", path, *f.Min, *f.Max)
		}
	case KindEnum:
		if len(f.Enum) == 0 {
			return fmt.Errorf("field %q: enum has no values", path)
		}
	case KindArray:
		if f.Items == nil {
			return fmt.Errorf("field %q: array has no item field", path)
		}
		if err := checkField(f.Items, path+"[]"); err != nil {
			return err
		}
	case KindRecord:
		if len(f.Fields) == 0 {
			return fmt.Errorf("field %q: record has no fields", path)
		}
		if err := checkFields(f.Fields, path+"."); err != nil {
			return err
		}
	default:
		return fmt.Errorf("field %q: unknown kind %q", path, f.Kind)
	}
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
		return fmt.Errorf("field %q: min_length %d exceeds max_length %d", path, *f.MinLength, *f.MaxLength)
	}
	if f.Default != nil {
		if _, err := validateValue(f, f.Default, path); err != nil {
			return fmt.Errorf("field %q: default does not conform: %w", path, err)
		}
	}
	return nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if strings.HasSuffix(prefix, ".") {
		return prefix + name
	}
	return prefix + "." + name
}
