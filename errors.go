package sqm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/sqm/query/mutation"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a query expecting one row returns none.
	ErrNotFound = errors.New("sqm: entity not found")

	// ErrNotSingular is returned when a query that expects exactly one result
	// returns multiple results.
	ErrNotSingular = errors.New("sqm: entity not singular")

	// ErrInvalidQuery is matched by every QueryError: the text could not be
	// parsed, does not resolve against the mapping or has wrong bindings.
	ErrInvalidQuery = errors.New("sqm: invalid query")

	// ErrSessionClosed is returned when a closed session, or a query created
	// by one, is used.
	ErrSessionClosed = errors.New("sqm: session closed")

	// ErrFactoryClosed is returned by OpenSession after Close.
	ErrFactoryClosed = errors.New("sqm: session factory closed")

	// ErrUnsupportedConfiguration is returned when a strategy or a setup
	// option cannot be honored by the dialect.
	ErrUnsupportedConfiguration = mutation.ErrUnsupportedConfiguration

	// ErrUnsupportedOperation is returned for operations that are not
	// supported, such as statements a strategy cannot express.
	ErrUnsupportedOperation = mutation.ErrUnsupportedOperation
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the ID that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("sqm: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("sqm: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError represents an error when a query expects a singular result
// but receives multiple results.
type NotSingularError struct {
	label string
	count int // Number of results returned (-1 if unknown)
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	if e.count >= 0 {
		return fmt.Sprintf("sqm: %s not singular (got %d results, expected 1)", e.label, e.count)
	}
	return fmt.Sprintf("sqm: %s not singular", e.label)
}

// Is reports whether the target error matches NotSingularError.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// Label returns the entity label.
func (e *NotSingularError) Label() string {
	return e.label
}

// Count returns the number of results, or -1 if unknown.
func (e *NotSingularError) Count() int {
	return e.count
}

// NewNotSingularError returns a new NotSingularError for the given entity type.
func NewNotSingularError(label string) *NotSingularError {
	return &NotSingularError{label: label, count: -1}
}

// NewNotSingularErrorWithCount returns a new NotSingularError with the result count.
func NewNotSingularErrorWithCount(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular returns true if the error is a NotSingularError.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// ConfigurationError is returned at setup for a mapping, named query,
// filter or strategy that cannot be used.
type ConfigurationError struct {
	Name string // What was configured, e.g. `named query "byName"`
	Err  error  // Underlying error
}

// Error returns the error string.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("sqm: configuration of %s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError returns a new ConfigurationError.
func NewConfigurationError(name string, err error) *ConfigurationError {
	return &ConfigurationError{Name: name, Err: err}
}

// IsConfigurationError returns true if the error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigurationError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("sqm: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "sqm: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("sqm: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

// QueryError is returned for a query that cannot be run as written.
type QueryError struct {
	Query string // Query text
	Op    string // Operation (e.g., "translate", "bind", "list")
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("sqm: query %q (%s): %v", e.Query, e.Op, e.Err)
	}
	return fmt.Sprintf("sqm: query %q: %v", e.Query, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is reports whether the target is ErrInvalidQuery.
func (e *QueryError) Is(err error) bool {
	return err == ErrInvalidQuery
}

// NewQueryError returns a new QueryError.
func NewQueryError(query, op string, err error) *QueryError {
	return &QueryError{Query: query, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps the failure of an update or delete with the entity
// and the operation. Database errors stay reachable with errors.As.
type MutationError struct {
	Entity string // Entity type being mutated
	Op     string // Operation ("update" or "delete")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("sqm: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}
