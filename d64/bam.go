package d64

import (
	"fmt"

	bitmap "github.com/boljen/go-bitmap"
	"github.com/noxer/bytewriter"
	"github.com/vschwaberow/dtools"
)

const (
	// DiskNameLength and DiskIDLength are the widths of the two label fields
	// in the BAM sector.
	DiskNameLength = 16
	DiskIDLength   = 2

	// dosType1541 is the format-type marker of a standard 1541 image.
	dosType1541 = 0x41

	bamEntriesOffset = 4
	bamNameOffset    = 144
	bamIDOffset      = 162
)

// BAM is the decoded view of the block availability map stored at track 18,
// sector 0: a free-sector counter and a 3-byte bitmap per track (bit set =
// sector free), plus the disk label. It is a transient decode; read it fresh
// with Image.ReadBAM, mutate it through AllocateSector/FreeSector and the
// label setters, and write it back with Image.WriteBAM. The counters stay in
// sync with the bitmaps only when all mutation goes through those operations.
type BAM struct {
	tracks      byte
	freeSectors [MaxTracks]byte
	bitmaps     [MaxTracks][3]byte
	diskName    [DiskNameLength]byte
	diskID      [DiskIDLength]byte
	dosType     byte
}

// NewBAM builds the BAM of a freshly formatted image: every sector on every
// track free, except the directory track which is fully allocated by
// convention. The label fields are left as fill bytes.
func NewBAM(tracks byte) *BAM {
	bam := &BAM{tracks: tracks, dosType: dosType1541}
	for track := byte(1); track <= tracks; track++ {
		if track == DirTrack {
			continue
		}
		count := TrackSectors(track)
		bam.freeSectors[track-1] = count
		for s := byte(0); s < count; s++ {
			bitmap.Set(bam.bitmaps[track-1][:], int(s), true)
		}
	}
	for i := range bam.diskName {
		bam.diskName[i] = FillByte
	}
	for i := range bam.diskID {
		bam.diskID[i] = FillByte
	}
	return bam
}

// DecodeBAM parses a raw BAM sector. The sector is decoded against the
// image's track count; nothing is validated beyond the buffer length, since
// a loaded image may legitimately carry counters and bitmaps this package
// did not write.
func DecodeBAM(sector []byte, tracks byte) (*BAM, error) {
	if len(sector) != SectorSize {
		return nil, dtools.ErrInvalidTrackSector.WithMessage(
			fmt.Sprintf("BAM sector must be %d bytes, got %d",
				SectorSize, len(sector)))
	}
	bam := &BAM{tracks: tracks, dosType: sector[2]}
	for t := 0; t < int(tracks); t++ {
		entry := sector[bamEntriesOffset+t*4:]
		bam.freeSectors[t] = entry[0]
		copy(bam.bitmaps[t][:], entry[1:4])
	}
	copy(bam.diskName[:], sector[bamNameOffset:bamNameOffset+DiskNameLength])
	copy(bam.diskID[:], sector[bamIDOffset:bamIDOffset+DiskIDLength])
	return bam, nil
}

// Encode serializes the BAM back into a 256-byte sector. The sector's own
// link bytes always point at the first directory sector. The label fields
// are written after the per-track entries; on a 40-track image they overlay
// the tail of the entry table, matching the on-disk layout.
func (bam *BAM) Encode() []byte {
	sector := make([]byte, SectorSize)
	w := bytewriter.New(sector)
	w.Write([]byte{DirTrack, DirSector, bam.dosType, 0})
	for t := 0; t < int(bam.tracks); t++ {
		w.Write([]byte{bam.freeSectors[t]})
		w.Write(bam.bitmaps[t][:])
	}
	copy(sector[bamNameOffset:], bam.diskName[:])
	copy(sector[bamIDOffset:], bam.diskID[:])
	return sector
}

func (bam *BAM) checkAddress(track, sector byte) error {
	count := TrackSectors(track)
	if track == 0 || track > bam.tracks || count == 0 || sector >= count {
		return dtools.ErrInvalidTrackSector.WithMessage(
			fmt.Sprintf("track %d, sector %d", track, sector))
	}
	return nil
}

// AllocateSector clears the sector's free bit and decrements the track's
// counter. Allocating an already allocated sector is a no-op.
func (bam *BAM) AllocateSector(track, sector byte) error {
	if err := bam.checkAddress(track, sector); err != nil {
		return err
	}
	bits := bam.bitmaps[track-1][:]
	if !bitmap.Get(bits, int(sector)) {
		return nil
	}
	bitmap.Set(bits, int(sector), false)
	bam.freeSectors[track-1]--
	return nil
}

// FreeSector sets the sector's free bit and increments the track's counter.
// Freeing an already free sector is a no-op.
func (bam *BAM) FreeSector(track, sector byte) error {
	if err := bam.checkAddress(track, sector); err != nil {
		return err
	}
	bits := bam.bitmaps[track-1][:]
	if bitmap.Get(bits, int(sector)) {
		return nil
	}
	bitmap.Set(bits, int(sector), true)
	bam.freeSectors[track-1]++
	return nil
}

// FindFreeSector scans the track's bitmap from the lowest bit upward and
// returns the first free sector. Bits beyond the track's sector count are
// meaningless and never returned. The second result is false when the track
// has no valid free sector or the track number is out of range.
func (bam *BAM) FindFreeSector(track byte) (byte, bool) {
	if track == 0 || track > bam.tracks {
		return 0, false
	}
	count := TrackSectors(track)
	bits := bam.bitmaps[track-1][:]
	for s := byte(0); s < count; s++ {
		if bitmap.Get(bits, int(s)) {
			return s, true
		}
	}
	return 0, false
}

// FirstFreeSector scans all tracks in ascending order and returns the first
// free sector on the disk, first-fit.
func (bam *BAM) FirstFreeSector() (TrackSector, bool) {
	for track := byte(1); track <= bam.tracks; track++ {
		if sector, ok := bam.FindFreeSector(track); ok {
			return TrackSector{Track: track, Sector: sector}, true
		}
	}
	return TrackSector{}, false
}

// FreeSectorCount returns the stored free-sector counter for the track.
func (bam *BAM) FreeSectorCount(track byte) (byte, error) {
	if track == 0 || track > bam.tracks {
		return 0, dtools.ErrInvalidTrackSector.WithMessage(
			fmt.Sprintf("track %d", track))
	}
	return bam.freeSectors[track-1], nil
}

// DiskName returns the decoded disk name, cut at the first fill byte.
func (bam *BAM) DiskName() string {
	return ToASCII(trimFill(bam.diskName[:]))
}

// DiskID returns the decoded two-character disk id.
func (bam *BAM) DiskID() string {
	return ToASCII(bam.diskID[:])
}

// SetDiskName encodes the name into the 16-byte label field, padding the
// remainder with fill bytes. Names longer than the field are an error.
func (bam *BAM) SetDiskName(name string) error {
	encoded := ToPETSCII(name)
	if len(encoded) > DiskNameLength {
		return dtools.ErrInvalidTrackSector.WithMessage(
			fmt.Sprintf("disk name must be at most %d characters, got %d",
				DiskNameLength, len(encoded)))
	}
	copy(bam.diskName[:], encoded)
	for i := len(encoded); i < DiskNameLength; i++ {
		bam.diskName[i] = FillByte
	}
	return nil
}

// SetDiskID encodes the id into the 2-byte label field. The id must be
// exactly two characters.
func (bam *BAM) SetDiskID(id string) error {
	encoded := ToPETSCII(id)
	if len(encoded) != DiskIDLength {
		return dtools.ErrInvalidTrackSector.WithMessage(
			fmt.Sprintf("disk id must be exactly %d characters, got %d",
				DiskIDLength, len(encoded)))
	}
	copy(bam.diskID[:], encoded)
	return nil
}

// ReadBAM decodes the BAM sector at track 18, sector 0. The decode is fresh
// on every call; the package never caches it.
func (img *Image) ReadBAM() (*BAM, error) {
	sector, err := img.ReadSector(DirTrack, BAMSector)
	if err != nil {
		return nil, err
	}
	return DecodeBAM(sector, img.tracks)
}

// WriteBAM encodes the BAM and writes it back to track 18, sector 0.
func (img *Image) WriteBAM(bam *BAM) error {
	return img.WriteSector(DirTrack, BAMSector, bam.Encode())
}

// AllocateSector marks one sector allocated, read-modify-writing the BAM.
func (img *Image) AllocateSector(track, sector byte) error {
	bam, err := img.ReadBAM()
	if err != nil {
		return err
	}
	if err := bam.AllocateSector(track, sector); err != nil {
		return err
	}
	return img.WriteBAM(bam)
}

// FreeSector marks one sector free, read-modify-writing the BAM.
func (img *Image) FreeSector(track, sector byte) error {
	bam, err := img.ReadBAM()
	if err != nil {
		return err
	}
	if err := bam.FreeSector(track, sector); err != nil {
		return err
	}
	return img.WriteBAM(bam)
}

// FindFreeSector returns the first free sector on the disk, scanning tracks
// in ascending order. A disk with no free sector yields ErrDiskFull.
func (img *Image) FindFreeSector() (TrackSector, error) {
	bam, err := img.ReadBAM()
	if err != nil {
		return TrackSector{}, err
	}
	addr, ok := bam.FirstFreeSector()
	if !ok {
		return TrackSector{}, dtools.ErrDiskFull.WithMessage("no free sectors")
	}
	return addr, nil
}
