package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FieldError reports the first field that violated its declaration.
type FieldError struct {
	Path   string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("field %q %s", e.Path, e.Reason)
}

func fieldErr(path, format string, args ...any) *FieldError {
	return &FieldError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks raw against s and returns the normalized record. Unknown keys are
// dropped, defaults are filled in and compatible scalars are coerced. Validation stops
// at the first violation.
func Validate(s *Schema, raw map[string]any) (Record, error) {
	if s == nil {
		return nil, &FieldError{Reason: "no schema"}
	}
	return validateFields(s.Fields, raw, "")
}

func validateFields(fields []Field, raw map[string]any, prefix string) (Record, error) {
	out := make(Record, len(fields))
	for i := range fields {
		f := &fields[i]
		path := joinPath(prefix, f.Name)

		v, present := raw[f.Name]
		if present && isBlankOptional(f, v) {
			present = false
		}
		if !present || v == nil {
			switch {
			case f.Default != nil:
				dv, err := validateValue(f, f.Default, path)
				if err != nil {
					return nil, err
				}
				out[f.Name] = dv
			case f.Optional:
			default:
				return nil, fieldErr(path, "is required")
			}
			continue
		}

		nv, err := validateValue(f, v, path)
		if err != nil {
			return nil, err
		}
		out[f.Name] = nv
	}
	return out, nil
}

// isBlankOptional treats an empty string for a non-required field as absent.
func isBlankOptional(f *Field, v any) bool {
	if f.Required() {
		return false
	}
	s, ok := v.(string)
	return ok && s == ""
}

func validateValue(f *Field, v any, path string) (any, error) {
	switch f.Kind {
	case KindString:
		return validateString(f, v, path)
	case KindInteger:
		return validateInteger(f, v, path)
	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, fieldErr(path, "must be one of %s", strings.Join(f.Enum, ", "))
		}
		if !slices.Contains(f.Enum, s) {
			return nil, fieldErr(path, "value %q is not one of %s", s, strings.Join(f.Enum, ", "))
		}
		return s, nil
	case KindArray:
		return validateArray(f, v, path)
	case KindRecord:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fieldErr(path, "must be an object")
		}
		return validateFields(f.Fields, m, path+".")
	default:
		return nil, fieldErr(path, "has unknown kind %q", f.Kind)
	}
}

func validateString(f *Field, v any, path string) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fieldErr(path, "must be a string")
	}
	n := utf8.RuneCountInString(s)
	if f.MinLength != nil && n < *f.MinLength {
		return nil, fieldErr(path, "must be at least %d characters", *f.MinLength)
	}
	if f.MaxLength != nil && n > *f.MaxLength {
		return nil, fieldErr(path, "must be at most %d characters", *f.MaxLength)
	}
	switch f.Format {
	case FormatDataURI:
		uri, err := ParseDataURI(s)
		if err != nil {
			return nil, fieldErr(path, "%v", err)
		}
		if len(f.MIMETypes) > 0 && !MatchMIMEType(f.MIMETypes, uri.MIMEType) {
			return nil, fieldErr(path, "has unsupported media type %q", uri.MIMEType)
		}
	case FormatEmail:
		addr, err := mail.ParseAddress(s)
		if err != nil || addr.Address != s {
			return nil, fieldErr(path, "must be a valid email address")
		}
	}
	return s, nil
}

func validateInteger(f *Field, v any, path string) (any, error) {
	n, ok := toInt64(v)
	if !ok {
		return nil, fieldErr(path, "must be an integer")
	}
	if f.Min != nil && n < *f.Min {
		return nil, fieldErr(path, "must be at least %d", *f.Min)
	}
	if f.Max != nil && n > *f.Max {
		return nil, fieldErr(path, "must be at most %d", *f.Max)
	}
	return n, nil
}

// toInt64 accepts Go integers, integral floats, json.Number and numeric strings.
// Form inputs frequently deliver numbers as text.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if fl, err := n.Float64(); err == nil {
			return floatToInt64(fl)
		}
		return 0, false
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

func validateArray(f *Field, v any, path string) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fieldErr(path, "must be an array")
	}
	n := rv.Len()
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength == *f.MaxLength && n != *f.MinLength {
		return nil, fieldErr(path, "must have exactly %d items, got %d", *f.MinLength, n)
	}
	if f.MinLength != nil && n < *f.MinLength {
		return nil, fieldErr(path, "must have at least %d items, got %d", *f.MinLength, n)
	}
	if f.MaxLength != nil && n > *f.MaxLength {
		return nil, fieldErr(path, "must have at most %d items, got %d", *f.MaxLength, n)
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		item := rv.Index(i).Interface()
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if item == nil {
			return nil, fieldErr(itemPath, "must not be null")
		}
		nv, err := validateValue(f.Items, item, itemPath)
		if err != nil {
			return nil, err
		}
		out[i] = nv
	}
	return out, nil
}

// IsBlank reports whether v carries no usable content: nil, a whitespace-only string or
// an empty array.
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map {
		return rv.Len() == 0
	}
	return false
}
