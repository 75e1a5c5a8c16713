package d64

import (
	"fmt"
	"strings"

	"github.com/vschwaberow/dtools"
)

const (
	// DirEntrySize is the size of one directory slot; eight fit in a sector.
	DirEntrySize = 32

	// FileNameLength is the width of the name field in a directory entry.
	FileNameLength = 16

	// FileTypePRG is the file-type marker of a closed PRG file, the type this
	// package writes for new entries.
	FileTypePRG = 0x82

	// Directory entry field offsets within a 32-byte slot. The first two
	// bytes of slot 0 double as the sector's chain link.
	entryTypeOffset   = 2
	entryTrackOffset  = 3
	entrySectorOffset = 4
	entryNameOffset   = 5
)

// DirEntry is the decoded form of one 32-byte directory slot.
type DirEntry struct {
	FileType byte
	Start    TrackSector
	rawName  [FileNameLength]byte
}

// NewDirEntry builds a directory entry for a closed PRG file starting at the
// given sector. The name is encoded and padded to the field width with fill
// bytes; names longer than the field are an error.
func NewDirEntry(name string, start TrackSector) (DirEntry, error) {
	encoded := ToPETSCII(name)
	if len(encoded) > FileNameLength {
		return DirEntry{}, dtools.ErrInvalidTrackSector.WithMessage(
			fmt.Sprintf("file name must be at most %d characters, got %d",
				FileNameLength, len(encoded)))
	}
	entry := DirEntry{FileType: FileTypePRG, Start: start}
	copy(entry.rawName[:], encoded)
	for i := len(encoded); i < FileNameLength; i++ {
		entry.rawName[i] = FillByte
	}
	return entry, nil
}

// Name returns the decoded file name, cut at the first fill byte.
func (e *DirEntry) Name() string {
	return ToASCII(trimFill(e.rawName[:]))
}

// visible reports whether the slot names a listed file. Type 0 is an empty
// slot; a nonzero type whose low three bits are all zero is a scratched file.
func (e *DirEntry) visible() bool {
	return e.FileType != 0 && e.FileType&0x07 != 0
}

func decodeDirEntry(slot []byte) DirEntry {
	entry := DirEntry{
		FileType: slot[entryTypeOffset],
		Start: TrackSector{
			Track:  slot[entryTrackOffset],
			Sector: slot[entrySectorOffset],
		},
	}
	copy(entry.rawName[:], slot[entryNameOffset:entryNameOffset+FileNameLength])
	return entry
}

// encode writes the entry's fields into a 32-byte slot. Bytes 0 and 1 are
// left untouched: in the first slot of a sector they are the chain link.
func (e *DirEntry) encode(slot []byte) {
	slot[entryTypeOffset] = e.FileType
	slot[entryTrackOffset] = e.Start.Track
	slot[entrySectorOffset] = e.Start.Sector
	copy(slot[entryNameOffset:entryNameOffset+FileNameLength], e.rawName[:])
}

// dirChain walks the directory chain one sector at a time, starting at the
// fixed root (18,1). Every directory traversal in this package (listing,
// name lookup, empty-slot search) runs on this one state machine so they all
// share the same termination and corruption policy:
//
//   - a next-track link of 0 ends the chain;
//   - a link back to the root (18,1) ends the chain (the self-loop end
//     marker some formatters write);
//   - a link leaving track 18, or to a sector index beyond track 18's
//     sector count, is a corruption error;
//   - revisiting any sector other than the root is a corruption error.
//
// Link errors surface on the step after the sector that carried the bad
// link, so entries of that sector are still observed, as a 1541 would.
type dirChain struct {
	img     *Image
	current TrackSector
	err     error
	done    bool
	visited map[TrackSector]bool
}

func newDirChain(img *Image) *dirChain {
	return &dirChain{
		img:     img,
		current: TrackSector{Track: DirTrack, Sector: DirSector},
		visited: make(map[TrackSector]bool),
	}
}

// Next returns the next directory sector and its address. At the end of the
// chain it returns a nil sector.
func (c *dirChain) Next() ([]byte, TrackSector, error) {
	if c.err != nil {
		return nil, c.current, c.err
	}
	if c.done {
		return nil, TrackSector{}, nil
	}

	addr := c.current
	data, err := c.img.ReadSector(addr.Track, addr.Sector)
	if err != nil {
		return nil, addr, err
	}
	c.visited[addr] = true

	next := TrackSector{Track: data[0], Sector: data[1]}
	root := TrackSector{Track: DirTrack, Sector: DirSector}
	switch {
	case next.Track == 0 || next == root:
		c.done = true
	case next.Track != DirTrack || next.Sector >= TrackSectors(DirTrack):
		c.current = next
		c.err = dtools.ErrCorruptedChain.WithMessage(fmt.Sprintf(
			"directory link leaves the directory track: track %d, sector %d",
			next.Track, next.Sector))
	case c.visited[next]:
		c.current = next
		c.err = dtools.ErrCorruptedChain.WithMessage(fmt.Sprintf(
			"directory chain revisits track %d, sector %d",
			next.Track, next.Sector))
	default:
		c.current = next
	}
	return data, addr, nil
}

// ListFiles walks the directory chain and returns the names of all visible
// entries in chain order. Empty and scratched slots are skipped.
func (img *Image) ListFiles() ([]string, error) {
	var files []string
	chain := newDirChain(img)
	for {
		data, _, err := chain.Next()
		if err != nil {
			return nil, err
		}
		if data == nil {
			return files, nil
		}
		for offset := 0; offset < SectorSize; offset += DirEntrySize {
			entry := decodeDirEntry(data[offset : offset+DirEntrySize])
			if entry.visible() {
				files = append(files, entry.Name())
			}
		}
	}
}

// FindFile returns the start sector of the first visible entry whose
// decoded, trimmed name equals name. Exhausting the chain without a match
// yields ErrFileNotFound.
func (img *Image) FindFile(name string) (TrackSector, error) {
	chain := newDirChain(img)
	for {
		data, _, err := chain.Next()
		if err != nil {
			return TrackSector{}, err
		}
		if data == nil {
			return TrackSector{}, dtools.ErrFileNotFound.WithMessage(name)
		}
		for offset := 0; offset < SectorSize; offset += DirEntrySize {
			entry := decodeDirEntry(data[offset : offset+DirEntrySize])
			if entry.visible() && strings.TrimSpace(entry.Name()) == name {
				return entry.Start, nil
			}
		}
	}
}

// findEmptySlot locates the first type-0 slot in the directory chain. A
// chain with no empty slot yields ErrDiskFull: directory capacity is bounded
// by the sectors already in the chain, and this package does not extend it.
func (img *Image) findEmptySlot() (TrackSector, int, error) {
	chain := newDirChain(img)
	for {
		data, addr, err := chain.Next()
		if err != nil {
			return TrackSector{}, 0, err
		}
		if data == nil {
			return TrackSector{}, 0,
				dtools.ErrDiskFull.WithMessage("no empty directory slot")
		}
		for offset := 0; offset < SectorSize; offset += DirEntrySize {
			if data[offset+entryTypeOffset] == 0 {
				return addr, offset, nil
			}
		}
	}
}

// AppendDirEntry writes the entry into the first empty directory slot.
func (img *Image) AppendDirEntry(entry DirEntry) error {
	addr, offset, err := img.findEmptySlot()
	if err != nil {
		return err
	}
	data, err := img.ReadSector(addr.Track, addr.Sector)
	if err != nil {
		return err
	}
	entry.encode(data[offset : offset+DirEntrySize])
	return img.WriteSector(addr.Track, addr.Sector, data)
}
