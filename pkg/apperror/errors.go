// Package apperror defines the application error model: typed codes,
// severity levels, structured details and HTTP status mapping.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of application failure.
type ErrorCode string

const (
	// Validation
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeInvalidLocation   ErrorCode = "INVALID_LOCATION"
	CodeInvalidVehicle    ErrorCode = "INVALID_VEHICLE"
	CodeInvalidDelivery   ErrorCode = "INVALID_DELIVERY"
	CodeDuplicateID       ErrorCode = "DUPLICATE_ID"
	CodeUnknownLocation   ErrorCode = "UNKNOWN_LOCATION"
	CodeInvalidTimeWindow ErrorCode = "INVALID_TIME_WINDOW"
	CodeInvalidMatrix     ErrorCode = "INVALID_MATRIX"
	CodeNilInput          ErrorCode = "NIL_INPUT"

	// Graph
	CodeInvalidGraph   ErrorCode = "INVALID_GRAPH"
	CodeNegativeWeight ErrorCode = "NEGATIVE_WEIGHT"
	CodeNoPath         ErrorCode = "NO_PATH"

	// Solver
	CodeNoSolution    ErrorCode = "NO_SOLUTION"
	CodeNoVehicles    ErrorCode = "NO_VEHICLES"
	CodeSolverTimeout ErrorCode = "SOLVER_TIMEOUT"
	CodeSolverBusy    ErrorCode = "SOLVER_BUSY"

	// External providers
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	CodeProviderResponse    ErrorCode = "PROVIDER_RESPONSE"

	// Storage
	CodeCacheError    ErrorCode = "CACHE_ERROR"
	CodeDatabaseError ErrorCode = "DATABASE_ERROR"

	// General
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	CodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	CodePermissionDenied  ErrorCode = "PERMISSION_DENIED"
	CodeRateLimited       ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInvalidPagination ErrorCode = "INVALID_PAGINATION"
	CodeUnimplemented     ErrorCode = "UNIMPLEMENTED"
)

// Severity grades how serious an error is.
type Severity int

const (
	// SeverityWarning marks an issue the caller may proceed past.
	SeverityWarning Severity = iota
	// SeverityError marks a failure of the requested operation.
	SeverityError
	// SeverityCritical marks a failure that needs operator attention.
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error carries a code, a human-readable message, the input field that
// triggered it (when known), structured details and an optional cause.
type Error struct {
	Code     ErrorCode
	Message  string
	Field    string
	Details  map[string]any
	Cause    error
	Severity Severity
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to an HTTP status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidInput, CodeInvalidLocation, CodeInvalidVehicle, CodeInvalidDelivery,
		CodeDuplicateID, CodeUnknownLocation, CodeInvalidTimeWindow, CodeInvalidMatrix,
		CodeInvalidGraph, CodeNegativeWeight, CodeInvalidArgument, CodeNilInput,
		CodeInvalidPagination:
		return http.StatusBadRequest

	case CodeNoSolution, CodeNoVehicles, CodeNoPath:
		return http.StatusUnprocessableEntity

	case CodeNotFound:
		return http.StatusNotFound

	case CodeSolverTimeout:
		return http.StatusGatewayTimeout

	case CodeUnauthenticated:
		return http.StatusUnauthorized

	case CodePermissionDenied:
		return http.StatusForbidden

	case CodeRateLimited, CodeSolverBusy:
		return http.StatusTooManyRequests

	case CodeProviderUnavailable, CodeProviderResponse:
		return http.StatusBadGateway

	case CodeUnimplemented:
		return http.StatusNotImplemented

	default:
		return http.StatusInternalServerError
	}
}

func newError(code ErrorCode, message string, severity Severity) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Details:  make(map[string]any),
		Severity: severity,
	}
}

// New builds an error with SeverityError.
func New(code ErrorCode, message string) *Error {
	return newError(code, message, SeverityError)
}

// NewWithField builds an error bound to a specific input field.
func NewWithField(code ErrorCode, message, field string) *Error {
	e := newError(code, message, SeverityError)
	e.Field = field
	return e
}

// NewWarning builds an error with SeverityWarning.
func NewWarning(code ErrorCode, message string) *Error {
	return newError(code, message, SeverityWarning)
}

// NewCritical builds an error with SeverityCritical.
func NewCritical(code ErrorCode, message string) *Error {
	return newError(code, message, SeverityCritical)
}

// Wrap annotates an underlying error with a code and message.
func Wrap(cause error, code ErrorCode, message string) *Error {
	e := newError(code, message, SeverityError)
	e.Cause = cause
	return e
}

// WithDetails stores a key-value pair in the details map.
func (e *Error) WithDetails(key string, value any) *Error {
	e.Details[key] = value
	return e
}

// WithField binds the error to an input field.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithSeverity overrides the severity.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code returns the error's code, or CodeInternal for foreign errors.
func Code(err error) ErrorCode {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus returns the HTTP status for any error value.
// Foreign errors map to 500.
func HTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// IsWarning reports whether err is an application error with SeverityWarning.
func IsWarning(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityWarning
	}
	return false
}

// IsCritical reports whether err is an application error with SeverityCritical.
func IsCritical(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityCritical
	}
	return false
}

// Sentinel errors for the most common failure modes.
var (
	ErrNoLocations         = New(CodeInvalidInput, "at least one location is required")
	ErrNoVehicles          = New(CodeNoVehicles, "no vehicles available for assignment")
	ErrNoSolution          = New(CodeNoSolution, "no feasible route assignment found")
	ErrSolverTimeout       = New(CodeSolverTimeout, "solver exceeded its time limit")
	ErrNegativeWeight      = New(CodeNegativeWeight, "graph contains a negative edge weight")
	ErrProviderUnavailable = New(CodeProviderUnavailable, "distance provider is unavailable")
	ErrNotFound            = New(CodeNotFound, "resource not found")
	ErrNilInput            = New(CodeNilInput, "input is nil")
)

// ValidationErrors accumulates errors and warnings across a multi-step
// validation pass so the caller gets every problem at once.
type ValidationErrors struct {
	Errors   []*Error
	Warnings []*Error
}

// NewValidationErrors returns an empty collection.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors:   make([]*Error, 0),
		Warnings: make([]*Error, 0),
	}
}

// Add routes the error into Errors or Warnings by its severity.
func (v *ValidationErrors) Add(err *Error) {
	if err.Severity == SeverityWarning {
		v.Warnings = append(v.Warnings, err)
	} else {
		v.Errors = append(v.Errors, err)
	}
}

// AddError records a SeverityError entry.
func (v *ValidationErrors) AddError(code ErrorCode, message string) {
	v.Errors = append(v.Errors, New(code, message))
}

// AddWarning records a SeverityWarning entry.
func (v *ValidationErrors) AddWarning(code ErrorCode, message string) {
	v.Warnings = append(v.Warnings, NewWarning(code, message))
}

// AddErrorWithField records an error bound to an input field.
func (v *ValidationErrors) AddErrorWithField(code ErrorCode, message, field string) {
	v.Errors = append(v.Errors, NewWithField(code, message, field))
}

// HasErrors reports whether any non-warning entries were collected.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// HasWarnings reports whether any warnings were collected.
func (v *ValidationErrors) HasWarnings() bool {
	return len(v.Warnings) > 0
}

// IsValid is true when no errors were collected; warnings don't count.
func (v *ValidationErrors) IsValid() bool {
	return !v.HasErrors()
}

// Merge appends everything from other into this collection.
func (v *ValidationErrors) Merge(other *ValidationErrors) {
	if other == nil {
		return
	}
	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
}

// ErrorMessages renders each collected error as a string.
func (v *ValidationErrors) ErrorMessages() []string {
	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Error()
	}
	return messages
}

// ToError collapses the collection into a single *Error suitable for
// returning to callers. Returns nil when the collection holds no errors.
// A single collected error is returned as-is; multiple errors are joined
// into one CodeInvalidInput error.
func (v *ValidationErrors) ToError() error {
	if !v.HasErrors() {
		return nil
	}
	if len(v.Errors) == 1 {
		return v.Errors[0]
	}
	msg := v.Errors[0].Message
	for _, e := range v.Errors[1:] {
		msg += "; " + e.Message
	}
	return New(CodeInvalidInput, msg)
}

// WarningMessages renders each collected warning's message.
func (v *ValidationErrors) WarningMessages() []string {
	messages := make([]string, len(v.Warnings))
	for i, warn := range v.Warnings {
		messages[i] = warn.Message
	}
	return messages
}
