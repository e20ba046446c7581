package raftlog

import "fmt"

// ErrorKind classifies a storage-level failure. ApplicationError is
// deliberately not represented here: per the determinism requirement, a
// rejected command is a value inside Response, never an error returned
// from ApplyEntryToStateMachine.
type ErrorKind string

const (
	// InconsistentLog means the runtime asked for a log entry that must
	// exist (e.g. the term of a to-be-compacted index) but does not.
	InconsistentLog ErrorKind = "inconsistent_log"
	// TransactionFailure means the underlying key/value store rejected a
	// commit or read.
	TransactionFailure ErrorKind = "transaction_failure"
	// IO covers filesystem errors on snapshot create/rename/unpack/open.
	IO ErrorKind = "io"
	// DeserializationError means a command payload failed to parse; this
	// indicates a cluster-wide protocol break, not an application-level
	// rejection, so it propagates as a storage failure.
	DeserializationError ErrorKind = "deserialization_error"
)

// Error is the error type every Facade method returns for infrastructure
// failures.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("raftlog: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

const inconsistentLogMsg = "a query was received which was expecting data to be in place which does not exist in the log"
