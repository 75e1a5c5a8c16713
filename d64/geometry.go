// Package d64 implements the on-disk structure of Commodore 1541 disk images:
// sector geometry, the block availability map (BAM), the chained directory,
// and chained file data.
package d64

import (
	"fmt"

	"github.com/vschwaberow/dtools"
)

const (
	// SectorSize is the size of every sector on the disk, in bytes.
	SectorSize = 256

	// DataBytesPerSector is the payload capacity of a non-terminal data
	// sector; the first two bytes of every sector hold the chain link.
	DataBytesPerSector = SectorSize - 2

	// MaxTracks is the highest track number any supported geometry has.
	MaxTracks = 40

	// Size35Tracks and Size40Tracks are the only two legal image sizes.
	Size35Tracks = 174848
	Size40Tracks = 196608

	// DirTrack is the track reserved for the BAM and the directory.
	DirTrack = 18
	// BAMSector and DirSector are the fixed homes of the BAM and the first
	// directory sector on DirTrack.
	BAMSector = 0
	DirSector = 1
)

// TrackSector addresses one sector of the image. Tracks are 1-based, sectors
// 0-based.
type TrackSector struct {
	Track  byte
	Sector byte
}

// sectorsPerTrack maps a 1-based track number to its sector count. The 1541
// packs fewer sectors onto the shorter inner tracks, in four zones.
var sectorsPerTrack = [MaxTracks + 1]byte{
	0,
	21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, 21, // 1-17
	19, 19, 19, 19, 19, 19, 19, // 18-24
	18, 18, 18, 18, 18, 18, // 25-30
	17, 17, 17, 17, 17, 17, 17, 17, 17, 17, // 31-40
}

// trackOffsets[t] is the byte offset of the first sector of track t.
var trackOffsets = buildTrackOffsets()

func buildTrackOffsets() [MaxTracks + 1]int {
	var offsets [MaxTracks + 1]int
	total := 0
	for t := 1; t <= MaxTracks; t++ {
		offsets[t] = total
		total += int(sectorsPerTrack[t]) * SectorSize
	}
	return offsets
}

// TrackSectors returns the number of sectors on the given track, or 0 if the
// track is outside the 1..40 range.
func TrackSectors(track byte) byte {
	if track == 0 || track > MaxTracks {
		return 0
	}
	return sectorsPerTrack[track]
}

// SectorOffset translates a (track, sector) address into a byte offset within
// an image of `tracks` tracks. Addresses outside the geometry yield
// ErrInvalidTrackSector.
func SectorOffset(track, sector, tracks byte) (int, error) {
	count := TrackSectors(track)
	if track == 0 || track > tracks || count == 0 || sector >= count {
		return 0, dtools.ErrInvalidTrackSector.WithMessage(
			fmt.Sprintf("track %d, sector %d", track, sector))
	}
	return trackOffsets[track] + int(sector)*SectorSize, nil
}

// imageSize returns the byte size of an image with the given track count, or
// 0 if the track count is not one of the two supported geometries.
func imageSize(tracks byte) int {
	switch tracks {
	case 35:
		return Size35Tracks
	case 40:
		return Size40Tracks
	default:
		return 0
	}
}
