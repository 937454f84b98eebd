// Package errs defines the error taxonomy shared across the ingestion
// pipeline. Every error the Coordinator has to make a retry/skip/abort
// decision on is one of these kinds; nothing else should escape a
// component boundary unwrapped.
package errs

import "fmt"

// Kind identifies which of the seven error categories an error belongs to.
type Kind string

const (
	KindFeedUnavailable    Kind = "feed_unavailable"
	KindFeedCorrupt        Kind = "feed_corrupt"
	KindRecordInvalid      Kind = "record_invalid"
	KindPersistenceTrans   Kind = "persistence_transient"
	KindPersistenceFatal   Kind = "persistence_fatal"
	KindConfigurationError Kind = "configuration_error"
	KindDetectorError      Kind = "detector_error"
)

// Error wraps an underlying cause with a taxonomy Kind. The Coordinator
// type-switches on Kind, never on the wrapped error's concrete type.
type Error struct {
	kind Kind
	op   string
	err  error
}

func New(kind Kind, op string, err error) *Error {
	return &Error{kind: kind, op: op, err: err}
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.op, e.kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.op, e.kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Kind() Kind { return e.kind }

// FeedUnavailable wraps a transient feed-fetch failure (timeout, network,
// non-2xx upstream). Retryable by the Coordinator with backoff.
func FeedUnavailable(op string, err error) *Error {
	return New(KindFeedUnavailable, op, err)
}

// FeedCorrupt wraps a structurally invalid top-level payload. Not
// retryable; the cycle that produced it is skipped.
func FeedCorrupt(op string, err error) *Error {
	return New(KindFeedCorrupt, op, err)
}

// RecordInvalid wraps a single-record type/range violation. The batch
// continues without the offending record.
func RecordInvalid(op string, err error) *Error {
	return New(KindRecordInvalid, op, err)
}

// PersistenceTransient wraps a retryable store failure (lock contention,
// statement timeout, pool exhaustion).
func PersistenceTransient(op string, err error) *Error {
	return New(KindPersistenceTrans, op, err)
}

// PersistenceFatal wraps a non-retryable store failure (schema mismatch,
// auth failure). The process should exit 2.
func PersistenceFatal(op string, err error) *Error {
	return New(KindPersistenceFatal, op, err)
}

// ConfigurationError wraps a startup-time configuration defect. The
// process should exit 1.
func ConfigurationError(op string, err error) *Error {
	return New(KindConfigurationError, op, err)
}

// DetectorError wraps a failure inside one of the C7-C10 detectors. The
// cycle continues; only the affected detection is skipped this round.
func DetectorError(op string, err error) *Error {
	return New(KindDetectorError, op, err)
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.kind == kind
}
