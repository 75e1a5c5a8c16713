// Package testing provides helpers shared by the dtools test suites.
package testing

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/vschwaberow/dtools/d64"
)

// FormattedImage creates and formats an image, failing the test on any error.
func FormattedImage(t *testing.T, tracks byte, name, id string) *d64.Image {
	t.Helper()

	img, err := d64.New(tracks)
	require.NoError(t, err, "creating image")
	require.NoError(t, img.Format(name, id), "formatting image")
	return img
}

// Reload round-trips an image through an in-memory read/write-seekable
// backing store and returns the reloaded copy. Tests use it to verify that
// state survives the same persist/load cycle the CLI performs.
func Reload(t *testing.T, img *d64.Image) *d64.Image {
	t.Helper()

	stream := bytesextra.NewReadWriteSeeker(make([]byte, img.Size()))
	require.NoError(t, img.Save(stream), "saving image to stream")

	_, err := stream.Seek(0, io.SeekStart)
	require.NoError(t, err, "rewinding stream")

	reloaded, err := d64.LoadStream(stream)
	require.NoError(t, err, "reloading image from stream")
	return reloaded
}
