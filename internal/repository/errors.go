// Package repository defines error types that are reused across the
// data access layer. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver-specific errors.
package repository

import "errors"

// ErrNotFound is returned when a user has no score records for the
// requested query. Handlers should translate this into an HTTP 404
// response with a context-specific detail message.
var ErrNotFound = errors.New("no health data found")

// ErrStorageUnavailable wraps any failure of the underlying database
// (connection refused, locked file, failed statement). Handlers should
// translate this into an HTTP 500 response without further detail.
var ErrStorageUnavailable = errors.New("storage unavailable")
