package records

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Mode selects create or update validation
type Mode int

const (
	// ModeCreate applies defaults and enforces required fields.
	ModeCreate Mode = iota
	// ModeUpdate validates only the fields present in the payload.
	ModeUpdate
)

// ValidationError reports per-field problems with a payload
type ValidationError struct {
	Fields map[string]string
}

// Error returns a string representation of the validation error
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid data"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid data: " + strings.Join(parts, ", ")
}

// Add records a problem with field, keeping the first reason reported.
func (e *ValidationError) Add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = reason
	}
}

// OrNil returns e when it holds errors, otherwise nil.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validate checks input against the schema's writable fields and returns the
// coerced values. Unknown keys and server-managed keys (id, stamps, generated
// fields) are ignored.
func (s *Schema) Validate(input map[string]interface{}, mode Mode) (Values, error) {
	out := make(Values, len(s.Fields))
	verr := &ValidationError{}

	for _, f := range s.Fields {
		raw, present := input[f.Name]
		if !present {
			if mode == ModeCreate {
				if f.Required {
					verr.Add(f.Name, "is required")
					continue
				}
				out[f.Name] = f.Default
			}
			continue
		}

		val, reason := coerce(f, raw)
		if reason != "" {
			verr.Add(f.Name, reason)
			continue
		}
		out[f.Name] = val
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func coerce(f Field, raw interface{}) (interface{}, string) {
	if raw == nil {
		if f.Required {
			return nil, "is required"
		}
		if f.Type == TypeBool {
			return nil, "must be a boolean"
		}
		return nil, ""
	}

	switch f.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, "must be a string"
		}
		if f.Required && strings.TrimSpace(s) == "" {
			return nil, "is required"
		}
		return s, ""

	case TypeInt:
		n, ok := toInt(raw)
		if !ok {
			return nil, "must be an integer"
		}
		if f.Ref != "" && n <= 0 {
			return nil, "must be a positive id"
		}
		return n, ""

	case TypeBool:
		b, ok := toBool(raw)
		if !ok {
			return nil, "must be a boolean"
		}
		return b, ""
	}

	return nil, fmt.Sprintf("unsupported type %s", f.Type)
}

// toInt accepts JSON numbers with no fractional part and numeric strings.
func toInt(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(v)
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// float64(math.MaxInt64) is 2^63, so the upper bound is exclusive.
func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f >= 1<<63 || f < -(1<<63) {
		return 0, false
	}
	return int64(f), true
}

// toBool accepts JSON booleans and the strings "true" and "false".
func toBool(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}
