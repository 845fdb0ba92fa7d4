// Package blob is the entry point to the report archive. It re-exports the
// store contract from blob/core and opens the configured backend; no other
// package imports the backends directly.
package blob

import "pidcheck/internal/blob/core"

type (
	// Driver identifies a blob backend.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes a stored blob.
	Info = core.Info
	// Store is implemented by every backend.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	// ErrNotFound reports a missing key.
	ErrNotFound = core.ErrNotFound
	// ErrExists reports a write over an existing key.
	ErrExists = core.ErrExists
)
