package d64

import (
	"fmt"
	"io"

	"github.com/vschwaberow/dtools"
)

// Image owns the raw byte buffer of a disk image together with the track
// count it was built or loaded with. All other operations in this package are
// defined against an Image; the caller owns it exclusively and persists it
// explicitly through Save.
type Image struct {
	data   []byte
	tracks byte
}

// New creates a zero-filled image. The track count must be 35 or 40.
func New(tracks byte) (*Image, error) {
	size := imageSize(tracks)
	if size == 0 {
		return nil, dtools.ErrInvalidImageSize.WithMessage(
			fmt.Sprintf("track count must be 35 or 40, got %d", tracks))
	}
	return &Image{data: make([]byte, size), tracks: tracks}, nil
}

// Load builds an image around previously persisted bytes. The track count is
// inferred from the exact buffer length; any other length is an error. The
// image takes ownership of the slice.
func Load(data []byte) (*Image, error) {
	var tracks byte
	switch len(data) {
	case Size35Tracks:
		tracks = 35
	case Size40Tracks:
		tracks = 40
	default:
		return nil, dtools.ErrInvalidImageSize.WithMessage(
			fmt.Sprintf("expected %d or %d bytes, got %d",
				Size35Tracks, Size40Tracks, len(data)))
	}
	return &Image{data: data, tracks: tracks}, nil
}

// LoadStream reads an entire image from r and loads it.
func LoadStream(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, dtools.ErrIOFailed.Wrap(err)
	}
	return Load(data)
}

// Save writes the raw image bytes to w.
func (img *Image) Save(w io.Writer) error {
	if _, err := w.Write(img.data); err != nil {
		return dtools.ErrIOFailed.Wrap(err)
	}
	return nil
}

// Tracks returns the track count the image was built with.
func (img *Image) Tracks() byte {
	return img.tracks
}

// Size returns the image size in bytes.
func (img *Image) Size() int {
	return len(img.data)
}

// Bytes returns the image's backing buffer. The slice aliases the image;
// mutating it bypasses every invariant this package maintains.
func (img *Image) Bytes() []byte {
	return img.data
}

// ReadSector returns a copy of the 256-byte sector at the given address.
func (img *Image) ReadSector(track, sector byte) ([]byte, error) {
	offset, err := SectorOffset(track, sector, img.tracks)
	if err != nil {
		return nil, err
	}
	data := make([]byte, SectorSize)
	copy(data, img.data[offset:offset+SectorSize])
	return data, nil
}

// WriteSector overwrites the sector at the given address. data must be
// exactly 256 bytes.
func (img *Image) WriteSector(track, sector byte, data []byte) error {
	if len(data) != SectorSize {
		return dtools.ErrInvalidTrackSector.WithMessage(
			fmt.Sprintf("sector data must be %d bytes, got %d",
				SectorSize, len(data)))
	}
	offset, err := SectorOffset(track, sector, img.tracks)
	if err != nil {
		return err
	}
	copy(img.data[offset:offset+SectorSize], data)
	return nil
}

// Format wipes the image and lays down a fresh file system: a BAM marking
// every sector free except the reserved directory track, the given disk name
// and id, and a single terminal directory sector holding no entries.
func (img *Image) Format(diskName, diskID string) error {
	bam := NewBAM(img.tracks)
	if err := bam.SetDiskName(diskName); err != nil {
		return err
	}
	if err := bam.SetDiskID(diskID); err != nil {
		return err
	}

	for i := range img.data {
		img.data[i] = 0
	}
	if err := img.WriteBAM(bam); err != nil {
		return err
	}

	dir := make([]byte, SectorSize)
	dir[0] = 0
	dir[1] = 0xFF // terminal link
	return img.WriteSector(DirTrack, DirSector, dir)
}
