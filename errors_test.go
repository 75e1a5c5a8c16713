package dtools_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vschwaberow/dtools"
)

func TestDiskErrorWithMessage(t *testing.T) {
	newErr := dtools.ErrInvalidTrackSector.WithMessage("track 99, sector 7")
	assert.Equal(
		t, "invalid track or sector: track 99, sector 7", newErr.Error(),
		"error message is wrong")
	assert.ErrorIs(t, newErr, dtools.ErrInvalidTrackSector)
}

func TestDiskErrorWrap(t *testing.T) {
	originalErr := errors.New("original error")
	newErr := dtools.ErrIOFailed.Wrap(originalErr)
	expectedMessage := "input/output error: original error"

	assert.EqualValues(t, expectedMessage, newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, dtools.ErrIOFailed, "sentinel not set as parent")
}

func TestDiskErrorSentinelsAreDistinct(t *testing.T) {
	sentinels := []dtools.DiskError{
		dtools.ErrIOFailed,
		dtools.ErrInvalidImageSize,
		dtools.ErrInvalidTrackSector,
		dtools.ErrFileNotFound,
		dtools.ErrDiskFull,
		dtools.ErrCorruptedChain,
	}
	for i, left := range sentinels {
		for j, right := range sentinels {
			if i == j {
				continue
			}
			assert.NotErrorIs(t, left, right, "sentinels %d and %d overlap", i, j)
		}
	}
}
