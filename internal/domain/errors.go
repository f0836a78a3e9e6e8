package domain

import "errors"

// Error taxonomy shared by every layer. Services wrap these with %w and
// context; the transport maps them to status codes.
var (
	ErrValidation        = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrReferenced        = errors.New("still referenced")
	ErrUnauthorized      = errors.New("unauthorized")
)
