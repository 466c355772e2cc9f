package crdt

import "errors"

// Document errors
var (
	// ErrMalformedDelta indicates that a delta could not be decoded or is structurally invalid
	ErrMalformedDelta = errors.New("malformed delta")

	// ErrIndexOutOfRange indicates that a local insert position is outside the visible list
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrExpressionNotFound indicates that no live expression has the given id
	ErrExpressionNotFound = errors.New("expression not found")

	// ErrDuplicateExpression indicates that a live expression with the same id already exists
	ErrDuplicateExpression = errors.New("expression already exists")

	// ErrInvalidExpression indicates that an expression has no id
	ErrInvalidExpression = errors.New("invalid expression")

	// ErrEmptyPatch indicates that an update changes nothing
	ErrEmptyPatch = errors.New("patch is empty")
)
