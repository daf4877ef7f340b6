package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoTasks is returned by Compile for a diagram without any task shape.
var ErrNoTasks = errors.New("diagram has no task shapes")

// ValidationKind identifies the class of a ValidationError.
type ValidationKind string

const (
	KindMissingStartNode     ValidationKind = "missing_start_node"
	KindUnresolvedSuccessor  ValidationKind = "unresolved_successor"
	KindUnresolvedAutomation ValidationKind = "unresolved_automation"
	KindDuplicateTask        ValidationKind = "duplicate_task"
	KindSchema               ValidationKind = "schema"
)

// ValidationError describes one problem found in a diagram or template document.
// Path names the offending element, either "<template>" or "<template>\<task>".
type ValidationError struct {
	Kind ValidationKind `json:"kind"`
	Path string         `json:"path"`
	Msg  string         `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Msg)
}

// TaskPath builds the path of a task inside a template.
func TaskPath(template, task string) string {
	return template + `\` + task
}

// ValidationErrors is a non-empty list of validation problems.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Strings renders every entry for API responses.
func (v ValidationErrors) Strings() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.Error()
	}
	return out
}

// Err returns nil when the list is empty.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// AsValidationErrors flattens every ValidationError / ValidationErrors found in err,
// including inside errors.Join trees.
func AsValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case ValidationErrors:
		return e
	case *ValidationError:
		return ValidationErrors{e}
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out ValidationErrors
		for _, inner := range joined.Unwrap() {
			out = append(out, AsValidationErrors(inner)...)
		}
		return out
	}
	var many ValidationErrors
	if errors.As(err, &many) {
		return many
	}
	var single *ValidationError
	if errors.As(err, &single) {
		return ValidationErrors{single}
	}
	return nil
}
