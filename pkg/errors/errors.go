package errors

import (
	"fmt"
	"strings"
)

// DependencyCycleError reports a cycle in the declared part dependencies.
// Parts lists the cycle members in traversal order.
type DependencyCycleError struct {
	Parts []string
}

// NewDependencyCycleError constructs a DependencyCycleError.
func NewDependencyCycleError(parts []string) error {
	return &DependencyCycleError{Parts: parts}
}

func (e *DependencyCycleError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Parts, " -> "))
}

// UnknownPartError reports a reference to a part that is not declared in the
// project.
type UnknownPartError struct {
	Part string
}

// NewUnknownPartError constructs an UnknownPartError.
func NewUnknownPartError(part string) error {
	return &UnknownPartError{Part: part}
}

func (e *UnknownPartError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("unknown part %q", e.Part)
}

// InvalidPartDefinitionError reports a part declaration the engine cannot
// work with.
type InvalidPartDefinitionError struct {
	Part    string
	Message string
	Err     error
}

// NewInvalidPartDefinitionError constructs an InvalidPartDefinitionError.
func NewInvalidPartDefinitionError(part, message string, err error) error {
	return &InvalidPartDefinitionError{Part: part, Message: message, Err: err}
}

func (e *InvalidPartDefinitionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid definition for part %q: %s", e.Part, e.Message)
}

// Unwrap exposes the underlying error.
func (e *InvalidPartDefinitionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SchemaValidationError captures a project file validation issue.
type SchemaValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewSchemaValidationError constructs a SchemaValidationError.
func NewSchemaValidationError(field, message string, err error) error {
	return &SchemaValidationError{Field: field, Message: message, Err: err}
}

func (e *SchemaValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *SchemaValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SourceRetrievalError reports a failure obtaining or identifying a part's
// source.
type SourceRetrievalError struct {
	Part   string
	Source string
	Err    error
}

// NewSourceRetrievalError constructs a SourceRetrievalError.
func NewSourceRetrievalError(part, source string, err error) error {
	return &SourceRetrievalError{Part: part, Source: source, Err: err}
}

func (e *SourceRetrievalError) Error() string {
	if e == nil {
		return ""
	}
	message := ""
	if e.Err != nil {
		message = ": " + e.Err.Error()
	}
	return fmt.Sprintf("part %q: cannot retrieve source %q%s", e.Part, e.Source, message)
}

// Unwrap exposes the underlying error.
func (e *SourceRetrievalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BackendBuildError represents a runtime failure while a backend was
// executing a lifecycle step.
type BackendBuildError struct {
	Part    string
	Step    string
	Backend string
	Err     error
}

// NewBackendBuildError constructs a BackendBuildError.
func NewBackendBuildError(part, step, backend string, err error) error {
	return &BackendBuildError{Part: part, Step: step, Backend: backend, Err: err}
}

func (e *BackendBuildError) Error() string {
	if e == nil {
		return ""
	}
	message := ""
	if e.Err != nil {
		message = ": " + e.Err.Error()
	}
	return fmt.Sprintf("part %q: %s step failed (backend %q)%s", e.Part, e.Step, e.Backend, message)
}

// Unwrap exposes the underlying error.
func (e *BackendBuildError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ScriptletRunError represents a failure in a user-supplied override
// scriptlet or lifecycle hook.
type ScriptletRunError struct {
	Part string
	Step string
	Err  error
}

// NewScriptletRunError constructs a ScriptletRunError.
func NewScriptletRunError(part, step string, err error) error {
	return &ScriptletRunError{Part: part, Step: step, Err: err}
}

func (e *ScriptletRunError) Error() string {
	if e == nil {
		return ""
	}
	message := ""
	if e.Err != nil {
		message = ": " + e.Err.Error()
	}
	return fmt.Sprintf("part %q: %s scriptlet failed%s", e.Part, e.Step, message)
}

// Unwrap exposes the underlying error.
func (e *ScriptletRunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InternalError reports a state the engine should never reach. Seeing one is
// a bug in sequencing or execution, not in the project definition.
type InternalError struct {
	Message string
}

// NewInternalError constructs an InternalError from a format string.
func NewInternalError(format string, args ...any) error {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}

func (e *InternalError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("internal error: %s", e.Message)
}
