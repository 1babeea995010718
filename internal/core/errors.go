package core

// errors.go defines the typed failure taxonomy shared by the core and its
// collaborators. Every outcome that used to be an exception in older intake
// tools is an explicit error kind here, so callers branch on Kind instead of
// matching message text.

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a domain failure.
type Kind int

const (
	// KindUnknown is the zero value; it never classifies a constructed Error.
	KindUnknown Kind = iota

	// KindNotFound: project, schema, submission, or artifact absent.
	KindNotFound

	// KindConflict: duplicate project name.
	KindConflict

	// KindInvalidStructure: malformed schema definition.
	KindInvalidStructure

	// KindPreconditionFailed: no schema configured for the project.
	KindPreconditionFailed

	// KindSensitiveData: upload carries denylisted column names.
	KindSensitiveData

	// KindValidationFailed: dataset failed schema validation.
	KindValidationFailed

	// KindParse: upload content could not be parsed into a dataset.
	KindParse

	// KindAuthorization: wrong download password.
	KindAuthorization

	// KindNoData: export requested with zero validated submissions.
	KindNoData

	// KindPersistence: storage failure; entity state is unchanged.
	KindPersistence
)

// String returns the stable code for a kind, used in API error bodies.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindInvalidStructure:
		return "INVALID_STRUCTURE"
	case KindPreconditionFailed:
		return "PRECONDITION_FAILED"
	case KindSensitiveData:
		return "SENSITIVE_DATA_REJECTED"
	case KindValidationFailed:
		return "VALIDATION_FAILED"
	case KindParse:
		return "PARSE_ERROR"
	case KindAuthorization:
		return "AUTHORIZATION_ERROR"
	case KindNoData:
		return "NO_DATA"
	case KindPersistence:
		return "PERSISTENCE_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Error is the typed domain failure. Columns is set for sensitive-data
// rejections and Report for validation failures, giving transports enough
// structure to render a precise message.
type Error struct {
	Kind    Kind
	Msg     string
	Columns []string
	Report  *ValidationReport
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two domain errors by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the domain kind from an error chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }

// Errf builds a typed error with a formatted message.
func Errf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// WrapPersistence wraps a storage failure, preserving the cause for logs.
func WrapPersistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Msg: op, Err: err}
}

// SensitiveDataError builds the guard rejection carrying the flagged names.
func SensitiveDataError(columns []string) *Error {
	return &Error{
		Kind:    KindSensitiveData,
		Msg:     fmt.Sprintf("upload rejected: sensitive columns detected (%s); remove them and retry", strings.Join(columns, ", ")),
		Columns: columns,
	}
}

// ValidationFailedError builds the rejection carrying the full report.
func ValidationFailedError(report ValidationReport) *Error {
	return &Error{
		Kind:   KindValidationFailed,
		Msg:    "data validation failed:\n" + strings.Join(report.Errors, "\n"),
		Report: &report,
	}
}
