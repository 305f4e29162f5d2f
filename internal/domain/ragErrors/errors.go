// Package ragErrors holds the error kinds the pipeline reports: validation, provider, store and not-found.
package ragErrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnsupportedSchema = errors.New("unsupported schema version")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ValidationError names the offending field; it is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ProviderUnavailable is returned when an embedding or generation provider
// kept failing. FailedIndices are positions in the caller's input. Refused holds,
// for the inputs among them that the provider rejected with a non-retryable error,
// the reason it gave.
type ProviderUnavailable struct {
	Provider      string
	FailedIndices []int
	Refused       map[int]string
	Cause         error
}

func (e *ProviderUnavailable) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" unavailable")
	if len(e.FailedIndices) > 0 {
		fmt.Fprintf(&b, " (%d inputs not processed)", len(e.FailedIndices))
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ProviderUnavailable) Unwrap() error { return e.Cause }

// StoreError wraps vector store or ledger failures. Op is for logs only.
type StoreError struct {
	Store string
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Store, e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

func Store(store, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &StoreError{Store: store, Op: op, Cause: cause}
}

type NotFoundError struct {
	Kind string
	Id   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Id)
}

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, Id: id}
}

// HTTPStatus maps an error onto a status code and a message that is safe to show.
// Provider and store internals never leak out.
func HTTPStatus(err error) (int, string, bool) {
	var v *ValidationError
	var nf *NotFoundError
	var pu *ProviderUnavailable
	switch {
	case err == nil:
		return http.StatusOK, "", false
	case errors.As(err, &v):
		return http.StatusBadRequest, v.Error(), false
	case errors.Is(err, ErrUnsupportedSchema):
		return http.StatusBadRequest, err.Error(), false
	case errors.As(err, &nf):
		return http.StatusNotFound, nf.Error(), false
	case errors.As(err, &pu):
		return http.StatusServiceUnavailable, "temporarily unavailable, retry later", true
	default:
		return http.StatusInternalServerError, "Internal Server Error", true
	}
}
