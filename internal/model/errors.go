package model

import (
	"strconv"
	"strings"
)

// FieldError describes one field that failed validation
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError is returned when a record cannot be stored because one or more of its fields
// are invalid
type ValidationError struct {
	Fields []FieldError
}

func (v *ValidationError) Error() string {
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		parts[i] = f.Field + " " + f.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Names returns the names of the invalid fields
func (v *ValidationError) Names() []string {
	r := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		r[i] = f.Field
	}
	return r
}

func (v *ValidationError) add(field, reason string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Reason: reason})
}

// err returns nil (not a nil *ValidationError) if there were no problems
func (v *ValidationError) err() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}

func itoa(i int) string { return strconv.Itoa(i) }

// Has returns true if the field is one of the invalid fields
func (v *ValidationError) Has(field string) bool {
	for _, f := range v.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
