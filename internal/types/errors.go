package types

import "errors"

// Sentinel errors for farekeeper operations.
// Wrapped with fmt.Errorf("%w: ...") at the failure site; match with errors.Is.
var (
	// ErrInvalidInput indicates a malformed or out-of-range distance, range, or collection.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPolicy indicates a policy violates its numeric invariants.
	ErrInvalidPolicy = errors.New("invalid policy")

	// ErrCorruptStore indicates persisted policy content failed to parse.
	ErrCorruptStore = errors.New("corrupt policy store")

	// ErrWriteFailed indicates staging, verification, or commit of a save failed.
	ErrWriteFailed = errors.New("policy store write failed")

	// ErrPolicyNotFound indicates no saved policy carries the requested name.
	ErrPolicyNotFound = errors.New("policy not found")
)
