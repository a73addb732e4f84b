package database

import "errors"

// State-predicate violations surfaced by conditional writes. Handlers map
// these onto client-visible outcomes instead of generic errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyClaimed  = errors.New("task already claimed")
	ErrAlreadyResolved = errors.New("request already resolved")
	ErrNotAuthorized   = errors.New("identity not authorized for operation")
)
