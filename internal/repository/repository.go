package repository

import "errors"

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (postgres, memory) inside this directory.

var (
	// ErrNotFound is returned when a keyed lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrStaleWrite is returned when a conditional write's precondition no
	// longer holds (row gone, or a newer value already stored).
	ErrStaleWrite = errors.New("stale write rejected")
)

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	ProjectID string
	Limit     int
	Offset    int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
