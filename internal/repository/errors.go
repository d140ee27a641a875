package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict indicates a uniqueness violation, such as a duplicate email.
var ErrConflict = errors.New("repository: conflict")

// ErrInvalidArgument indicates the requested state transition did not apply.
var ErrInvalidArgument = errors.New("repository: invalid argument")
