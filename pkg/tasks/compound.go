package tasks

import (
	"fmt"
	"strings"
)

// CompoundError reports the triaged outcome of a task batch. Together with
// the succeeded tasks returned by Execute, the buckets partition the input:
// every task appears in exactly one of succeeded, Failed, Unknown, Skipped.
type CompoundError[T any] struct {
	// Failed holds tasks the server definitively rejected (4xx). They
	// were not applied and can be corrected and resubmitted.
	Failed []T

	// Unknown holds tasks whose outcome could not be determined (5xx,
	// network failures, cancellation). They may or may not have been
	// applied; resubmitting requires idempotent operations.
	Unknown []T

	// Skipped holds tasks never attempted because FailFast stopped the
	// batch.
	Skipped []T

	// Errors holds the underlying error of every failed or unknown task.
	Errors []error
}

func (e *CompoundError[T]) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d task(s) failed, %d unknown", len(e.Failed), len(e.Unknown))
	if len(e.Skipped) > 0 {
		fmt.Fprintf(&b, ", %d skipped", len(e.Skipped))
	}
	if len(e.Errors) > 0 {
		fmt.Fprintf(&b, ": %v", e.Errors[0])
	}
	return b.String()
}

// Unwrap exposes the underlying task errors to errors.Is and errors.As.
func (e *CompoundError[T]) Unwrap() []error {
	return e.Errors
}
