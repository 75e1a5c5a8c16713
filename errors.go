package dtools

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DiskError is the error type returned by every operation in this module. The
// set of root errors is closed; each failure a core operation can report maps
// onto exactly one of the sentinel values below, so callers can dispatch with
// errors.Is.
type DiskError interface {
	error
	WithMessage(message string) DiskError
	Wrap(err error) DiskError
}

type baseDiskError string

const rootError = baseDiskError("")

// ErrIOFailed indicates that a read or write on the image's backing store
// failed.
var ErrIOFailed = rootError.WithMessage("input/output error")

// ErrInvalidImageSize indicates a buffer or track count matching neither of
// the two supported disk geometries.
var ErrInvalidImageSize = rootError.WithMessage("invalid disk image size")

// ErrInvalidTrackSector indicates an out-of-range sector address or a
// malformed fixed-width text field.
var ErrInvalidTrackSector = rootError.WithMessage("invalid track or sector")

// ErrFileNotFound indicates the directory chain was exhausted without finding
// the requested file name.
var ErrFileNotFound = rootError.WithMessage("file not found")

// ErrDiskFull indicates there is no free sector on any track, or no empty
// slot left in the directory chain.
var ErrDiskFull = rootError.WithMessage("disk full")

// ErrCorruptedChain indicates a sector chain that cycles or continues to a
// sector it may not legally continue to.
var ErrCorruptedChain = rootError.WithMessage("corrupted sector chain")

func (e baseDiskError) Error() string {
	return string(e)
}

func (e baseDiskError) WithMessage(message string) DiskError {
	return customDiskError{
		message:       message,
		originalError: e,
	}
}

func (e baseDiskError) Wrap(err error) DiskError {
	return customDiskError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customDiskError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a
// string describing the error.
func (e customDiskError) Error() string {
	return e.message
}

func (e customDiskError) WithMessage(message string) DiskError {
	return customDiskError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customDiskError) Wrap(err error) DiskError {
	return customDiskError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customDiskError) Unwrap() error {
	return e.originalError
}
