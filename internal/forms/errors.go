package forms

import (
	"sort"
	"strings"
)

// NonField collects errors that do not belong to a single input.
const NonField = "__all__"

// Errors maps a form field name to its validation messages.
type Errors map[string][]string

// Add appends a message for field.
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// For returns the messages recorded for field.
func (e Errors) For(field string) []string {
	return e[field]
}

// Merge copies every message from other into e.
func (e Errors) Merge(other Errors) {
	for field, messages := range other {
		e[field] = append(e[field], messages...)
	}
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e[field], " "))
	}
	return "invalid form: " + strings.Join(parts, "; ")
}
