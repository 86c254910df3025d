package ir

import (
	"errors"
	"fmt"
)

// Error is the typed error surfaced by the memory graph, regions and the
// persistence boundary. Callers distinguish kinds by Code, usually through
// the IsXxx helpers, which see through wrapping.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Subject names the offending id, region or record, if any.
	Subject string
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	// ErrCodeMissingParent indicates an append referenced a parent absent from the store.
	ErrCodeMissingParent ErrorCode = "MISSING_PARENT"

	// ErrCodeUnknownRegion indicates a region name not present in the collection.
	ErrCodeUnknownRegion ErrorCode = "UNKNOWN_REGION"

	// ErrCodeDuplicateRegion indicates a region name is already taken.
	ErrCodeDuplicateRegion ErrorCode = "DUPLICATE_REGION"

	// ErrCodeCorruptState indicates persisted regions or events are structurally invalid.
	ErrCodeCorruptState ErrorCode = "CORRUPT_PERSISTED_STATE"

	// ErrCodeDigestCollision indicates two different payloads hashed to the same id.
	ErrCodeDigestCollision ErrorCode = "DIGEST_COLLISION_SUSPECTED"

	// ErrCodeStoreMismatch indicates an operation combined regions of different stores.
	ErrCodeStoreMismatch ErrorCode = "STORE_MISMATCH"

	// ErrCodeInvalidPayload indicates an event field that cannot be hashed, such as invalid UTF-8.
	ErrCodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Subject)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewMissingParentError reports a parent id that is not in the store.
func NewMissingParentError(parent string) *Error {
	return &Error{Code: ErrCodeMissingParent, Message: "parent event not found in store", Subject: parent}
}

// NewUnknownRegionError reports a region name that is not in the collection.
func NewUnknownRegionError(name string) *Error {
	return &Error{Code: ErrCodeUnknownRegion, Message: "region not found", Subject: name}
}

// NewDuplicateRegionError reports a region name that already exists.
func NewDuplicateRegionError(name string) *Error {
	return &Error{Code: ErrCodeDuplicateRegion, Message: "region already exists", Subject: name}
}

// NewCorruptStateError reports an invalid persisted record.
func NewCorruptStateError(subject, format string, args ...any) *Error {
	return &Error{Code: ErrCodeCorruptState, Message: fmt.Sprintf(format, args...), Subject: subject}
}

// NewDigestCollisionError reports an id shared by two different payloads.
func NewDigestCollisionError(id string) *Error {
	return &Error{Code: ErrCodeDigestCollision, Message: "different payload already stored under this id", Subject: id}
}

// NewStoreMismatchError reports regions that point into different stores.
func NewStoreMismatchError(a, b string) *Error {
	return &Error{Code: ErrCodeStoreMismatch, Message: "regions belong to different stores", Subject: a + ", " + b}
}

// NewInvalidPayloadError reports an event field that cannot be hashed.
func NewInvalidPayloadError(field, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidPayload, Message: fmt.Sprintf(format, args...), Subject: field}
}

// CodeOf returns the code of an *Error anywhere in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsMissingParent returns true if err is a missing parent error.
func IsMissingParent(err error) bool { return CodeOf(err) == ErrCodeMissingParent }

// IsUnknownRegion returns true if err is an unknown region error.
func IsUnknownRegion(err error) bool { return CodeOf(err) == ErrCodeUnknownRegion }

// IsDuplicateRegion returns true if err is a duplicate region error.
func IsDuplicateRegion(err error) bool { return CodeOf(err) == ErrCodeDuplicateRegion }

// IsCorruptState returns true if err is a corrupt persisted state error.
func IsCorruptState(err error) bool { return CodeOf(err) == ErrCodeCorruptState }

// IsDigestCollision returns true if err is a suspected digest collision.
func IsDigestCollision(err error) bool { return CodeOf(err) == ErrCodeDigestCollision }

// IsStoreMismatch returns true if err is a store mismatch error.
func IsStoreMismatch(err error) bool { return CodeOf(err) == ErrCodeStoreMismatch }

// IsInvalidPayload returns true if err is an invalid payload error.
func IsInvalidPayload(err error) bool { return CodeOf(err) == ErrCodeInvalidPayload }
