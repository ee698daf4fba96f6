// Package schema provides a small type system for validating tool arguments.
//
// A Schema maps parameter names to field specs (kind, required, enum).
// Validation happens at the executor boundary, before any argument reaches
// the record store.
package schema

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the expected value type of a field.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
)

// Field describes constraints for a single parameter.
type Field struct {
	Kind     Kind
	Required bool
	// Enum restricts string fields to a closed value set. Empty means any value.
	Enum []string
}

// Schema maps parameter names to their field specs.
type Schema map[string]Field

// ValidationError reports a single field failure.
type ValidationError struct {
	Key    string
	Reason string
	Value  any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s (got %v)", e.Key, e.Reason, e.Value)
}

// String returns a required string field spec.
func String() Field { return Field{Kind: KindString, Required: true} }

// StringEnum returns a required string field restricted to the given values.
func StringEnum(values ...string) Field {
	return Field{Kind: KindString, Required: true, Enum: values}
}

// Int returns a required integer field spec.
func Int() Field { return Field{Kind: KindInt, Required: true} }

// Optional returns a copy of f with the required constraint removed.
func Optional(f Field) Field {
	f.Required = false
	return f
}

// Validate checks args against the schema. Unknown keys are rejected so a
// reasoning engine cannot smuggle extra parameters past the descriptor.
func (s Schema) Validate(args map[string]any) error {
	for key := range args {
		if _, ok := s[key]; !ok {
			return &ValidationError{Key: key, Reason: "unknown parameter", Value: args[key]}
		}
	}

	for key, field := range s {
		val, ok := args[key]
		if !ok {
			if field.Required {
				return &ValidationError{Key: key, Reason: "missing required parameter"}
			}
			continue
		}
		if err := field.check(key, val); err != nil {
			return err
		}
	}
	return nil
}

func (f Field) check(key string, val any) error {
	switch f.Kind {
	case KindString:
		str, ok := val.(string)
		if !ok {
			return &ValidationError{Key: key, Reason: "expected string", Value: val}
		}
		if len(f.Enum) > 0 {
			for _, allowed := range f.Enum {
				if str == allowed {
					return nil
				}
			}
			return &ValidationError{Key: key, Reason: fmt.Sprintf("must be one of %v", f.Enum), Value: val}
		}
	case KindInt:
		switch v := val.(type) {
		case int, int32, int64:
			// ok
		case json.Number:
			if _, err := v.Int64(); err != nil {
				return &ValidationError{Key: key, Reason: "expected integer", Value: val}
			}
		case float64:
			if v != float64(int64(v)) {
				return &ValidationError{Key: key, Reason: "expected integer", Value: val}
			}
		default:
			return &ValidationError{Key: key, Reason: "expected integer", Value: val}
		}
	default:
		return &ValidationError{Key: key, Reason: fmt.Sprintf("unknown kind %q", f.Kind), Value: val}
	}
	return nil
}
