package store

import "errors"

// ErrConflict is returned when a compare-and-set status transition finds the
// record no longer in the expected status.
var ErrConflict = errors.New("status conflict")

// ErrNotFound is returned when an operation targets a record that does not
// exist.
var ErrNotFound = errors.New("record not found")

// ErrSchemaMismatch indicates a database created by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")
