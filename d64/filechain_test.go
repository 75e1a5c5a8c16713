package d64_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vschwaberow/dtools"
	"github.com/vschwaberow/dtools/d64"
	dtoolstesting "github.com/vschwaberow/dtools/testing"
)

func TestInsertListExtract(t *testing.T) {
	img := dtoolstesting.FormattedImage(t, 35, "TEST DISK", "2A")
	content := []byte("Hello, World!")
	require.NoError(t, img.InsertFile("TEST FILE", content))

	// Reload to prove everything landed in the image bytes themselves.
	img = dtoolstesting.Reload(t, img)

	files, err := img.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"TEST FILE"}, files)

	extracted, err := img.ExtractFile("TEST FILE")
	require.NoError(t, err)
	assert.Equal(t, content, extracted)
	assert.Len(t, extracted, 13)

	bam, err := img.ReadBAM()
	require.NoError(t, err)
	assert.Equal(t, "TEST DISK", bam.DiskName())
	assert.Equal(t, "2A", bam.DiskID())
}

func TestInsertTwoFiles(t *testing.T) {
	img := dtoolstesting.FormattedImage(t, 35, "TEST DISK", "2A")

	first := bytes.Repeat([]byte{0xAB}, 300) // two sectors
	require.NoError(t, img.InsertFile("FIRST FILE", first))
	require.NoError(t, img.InsertFile("SECOND FILE", []byte("0123456789")))

	files, err := img.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"FIRST FILE", "SECOND FILE"}, files,
		"names must come back in insertion order")

	trace, err := img.TraceFile("FIRST FILE")
	require.NoError(t, err)
	require.NotEmpty(t, trace)

	start, err := img.FindFile("FIRST FILE")
	require.NoError(t, err)
	assert.Equal(t, start, trace[0], "trace must begin at the directory-pointed start")
	assert.Equal(t, []d64.TrackSector{{Track: 1, Sector: 0}, {Track: 1, Sector: 1}}, trace)

	// The second file must have been placed past the first one's sectors.
	trace, err = img.TraceFile("SECOND FILE")
	require.NoError(t, err)
	assert.Equal(t, []d64.TrackSector{{Track: 1, Sector: 2}}, trace)

	extracted, err := img.ExtractFile("FIRST FILE")
	require.NoError(t, err)
	assert.Equal(t, first, extracted)
}

func TestInsertMarksSectorsAllocated(t *testing.T) {
	img := dtoolstesting.FormattedImage(t, 35, "TEST DISK", "2A")

	// 700 bytes spans three sectors: 254 + 254 + 192.
	content := bytes.Repeat([]byte{0x55}, 700)
	require.NoError(t, img.InsertFile("BIG FILE", content))

	bam, err := img.ReadBAM()
	require.NoError(t, err)
	free, err := bam.FreeSectorCount(1)
	require.NoError(t, err)
	assert.EqualValues(t, 21-3, free)

	terminal, err := img.ReadSector(1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 0, terminal[0], "terminal link track")
	assert.EqualValues(t, 192, terminal[1], "terminal payload count")

	extracted, err := img.ExtractFile("BIG FILE")
	require.NoError(t, err)
	assert.Equal(t, content, extracted)

	trace, err := img.TraceFile("BIG FILE")
	require.NoError(t, err)
	assert.Len(t, trace, 3)
}

func TestInsertEmptyContent(t *testing.T) {
	img := dtoolstesting.FormattedImage(t, 35, "TEST DISK", "2A")
	require.NoError(t, img.InsertFile("EMPTY", nil))

	trace, err := img.TraceFile("EMPTY")
	require.NoError(t, err)
	assert.Len(t, trace, 1, "empty content still claims one terminal sector")

	extracted, err := img.ExtractFile("EMPTY")
	require.NoError(t, err)
	assert.Empty(t, extracted)

	bam, err := img.ReadBAM()
	require.NoError(t, err)
	free, err := bam.FreeSectorCount(1)
	require.NoError(t, err)
	assert.EqualValues(t, 20, free)
}

// A 35-track image has 664 free sectors after formatting (683 total minus the
// 19 reserved on track 18).
func TestInsertFillsTheDisk(t *testing.T) {
	img := dtoolstesting.FormattedImage(t, 35, "TEST DISK", "2A")

	content := bytes.Repeat([]byte{0x77}, 664*d64.DataBytesPerSector)
	require.NoError(t, img.InsertFile("WHOLE DISK", content))

	trace, err := img.TraceFile("WHOLE DISK")
	require.NoError(t, err)
	assert.Len(t, trace, 664)

	_, err = img.FindFreeSector()
	assert.ErrorIs(t, err, dtools.ErrDiskFull)

	assert.ErrorIs(t, img.InsertFile("EXTRA", []byte{1}), dtools.ErrDiskFull)
}

// An oversized insert must fail up front and leave the image untouched.
func TestInsertTooLargeLeavesImageUnchanged(t *testing.T) {
	img := dtoolstesting.FormattedImage(t, 35, "TEST DISK", "2A")

	content := bytes.Repeat([]byte{0x11}, 664*d64.DataBytesPerSector+1)
	assert.ErrorIs(t, img.InsertFile("TOO BIG", content), dtools.ErrDiskFull)

	files, err := img.ListFiles()
	require.NoError(t, err)
	assert.Empty(t, files)

	bam, err := img.ReadBAM()
	require.NoError(t, err)
	free, err := bam.FreeSectorCount(1)
	require.NoError(t, err)
	assert.EqualValues(t, 21, free, "failed insert must not allocate anything")
}

// The ninth single-sector file exceeds the single directory sector written by
// format; the insert must fail with the capacity error, not corrupt anything.
func TestInsertDirectoryCapacity(t *testing.T) {
	img := dtoolstesting.FormattedImage(t, 35, "TEST DISK", "2A")

	for i := 0; i < 8; i++ {
		require.NoError(t, img.InsertFile(fmt.Sprintf("FILE %d", i+1), []byte{byte(i)}))
	}
	assert.ErrorIs(t, img.InsertFile("FILE 9", []byte{9}), dtools.ErrDiskFull)

	files, err := img.ListFiles()
	require.NoError(t, err)
	assert.Len(t, files, 8)
}

func TestExtractUnknownFile(t *testing.T) {
	img := dtoolstesting.FormattedImage(t, 35, "TEST DISK", "2A")

	_, err := img.ExtractFile("NOPE")
	assert.ErrorIs(t, err, dtools.ErrFileNotFound)
	_, err = img.TraceFile("NOPE")
	assert.ErrorIs(t, err, dtools.ErrFileNotFound)
}

func TestCorruptFileChains(t *testing.T) {
	addEntry := func(t *testing.T, img *d64.Image, name string, start d64.TrackSector) {
		entry, err := d64.NewDirEntry(name, start)
		require.NoError(t, err)
		require.NoError(t, img.AppendDirEntry(entry))
	}

	t.Run("cycle", func(t *testing.T) {
		img := dtoolstesting.FormattedImage(t, 35, "TEST DISK", "2A")
		addEntry(t, img, "LOOPY", d64.TrackSector{Track: 1, Sector: 0})

		sector := make([]byte, d64.SectorSize)
		sector[0], sector[1] = 1, 1
		require.NoError(t, img.WriteSector(1, 0, sector))
		sector[0], sector[1] = 1, 0
		require.NoError(t, img.WriteSector(1, 1, sector))

		_, err := img.TraceFile("LOOPY")
		assert.ErrorIs(t, err, dtools.ErrCorruptedChain)
		_, err = img.ExtractFile("LOOPY")
		assert.ErrorIs(t, err, dtools.ErrCorruptedChain)
	})

	t.Run("link outside the image", func(t *testing.T) {
		img := dtoolstesting.FormattedImage(t, 35, "TEST DISK", "2A")
		addEntry(t, img, "DANGLING", d64.TrackSector{Track: 1, Sector: 0})

		sector := make([]byte, d64.SectorSize)
		sector[0], sector[1] = 99, 0
		require.NoError(t, img.WriteSector(1, 0, sector))

		_, err := img.ExtractFile("DANGLING")
		assert.ErrorIs(t, err, dtools.ErrCorruptedChain)
	})

	t.Run("terminal length out of range", func(t *testing.T) {
		img := dtoolstesting.FormattedImage(t, 35, "TEST DISK", "2A")
		addEntry(t, img, "OVERLONG", d64.TrackSector{Track: 1, Sector: 0})

		sector := make([]byte, d64.SectorSize)
		sector[0], sector[1] = 0, 255
		require.NoError(t, img.WriteSector(1, 0, sector))

		_, err := img.ExtractFile("OVERLONG")
		assert.ErrorIs(t, err, dtools.ErrCorruptedChain)
	})
}
