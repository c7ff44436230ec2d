// Package errors provides coded domain errors with i18n and gRPC mapping.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage errors
	CodeNotFound          Code = "NOT_FOUND"
	CodeRetriableConflict Code = "RETRIABLE_CONFLICT"

	// Realm tree errors
	CodeRealmInvalidSegment        Code = "REALM_INVALID_SEGMENT"
	CodeRealmNoSuchParent          Code = "REALM_NO_SUCH_PARENT"
	CodeRealmCyclicMove            Code = "REALM_CYCLIC_MOVE"
	CodeRealmRootImmutable         Code = "REALM_ROOT_IMMUTABLE"
	CodeRealmDerivedFieldViolation Code = "REALM_DERIVED_FIELD_VIOLATION"
	CodeRealmUniqueConflict        Code = "REALM_UNIQUE_CONFLICT"
	CodeRealmPathTaken             Code = "REALM_PATH_TAKEN"
	CodeRealmInvalidName           Code = "REALM_INVALID_NAME"
	CodeRealmInvalidOrder          Code = "REALM_INVALID_ORDER"
	CodeContentInvalidReference    Code = "CONTENT_INVALID_REFERENCE"
	CodeContentTitleEmpty          Code = "CONTENT_TITLE_EMPTY"
	CodeQueueInvalidLimit          Code = "QUEUE_INVALID_LIMIT"
	CodeRealmNameSourceConflict    Code = "REALM_NAME_SOURCE_CONFLICT"
	CodeRealmNameBlockOutsideRealm Code = "REALM_NAME_BLOCK_OUTSIDE_REALM"
	CodeRealmNameBlockUntitled     Code = "REALM_NAME_BLOCK_UNTITLED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeRealmInvalidSegment,
		CodeRealmInvalidName,
		CodeRealmInvalidOrder,
		CodeRealmNameSourceConflict,
		CodeRealmNameBlockOutsideRealm,
		CodeRealmNameBlockUntitled,
		CodeContentInvalidReference,
		CodeContentTitleEmpty,
		CodeQueueInvalidLimit:
		return codes.InvalidArgument

	// FailedPrecondition - tree shape doesn't allow the operation
	case CodeRealmNoSuchParent,
		CodeRealmCyclicMove:
		return codes.FailedPrecondition

	case CodeNotFound:
		return codes.NotFound

	case CodeRealmPathTaken:
		return codes.AlreadyExists

	// Aborted - safe to retry the whole operation
	case CodeRetriableConflict:
		return codes.Aborted

	// Internal - programming errors in the caller or a broken invariant
	case CodeRealmRootImmutable,
		CodeRealmDerivedFieldViolation,
		CodeRealmUniqueConflict:
		return codes.Internal

	default:
		return codes.Internal
	}
}

// Fatal reports whether the code signals a programming error that callers
// must surface loudly rather than handle.
func (c Code) Fatal() bool {
	switch c {
	case CodeRealmRootImmutable, CodeRealmDerivedFieldViolation, CodeRealmUniqueConflict:
		return true
	default:
		return false
	}
}
