package d64

import (
	"fmt"

	"github.com/vschwaberow/dtools"
)

// fileChain walks a chained run of data sectors. Each sector's first two
// bytes link to the next sector; a next-track of 0 marks the terminal
// sector, whose second link byte holds the count of valid payload bytes.
// The walk keeps a visited set so a chain that never terminates is reported
// as corruption instead of looping forever.
type fileChain struct {
	img     *Image
	current TrackSector
	done    bool
	visited map[TrackSector]bool
}

func newFileChain(img *Image, start TrackSector) *fileChain {
	return &fileChain{
		img:     img,
		current: start,
		visited: make(map[TrackSector]bool),
	}
}

// More reports whether the chain has sectors left to visit.
func (c *fileChain) More() bool {
	return !c.done
}

// Next visits the current sector and returns its payload slice together with
// its address. Must not be called once More reports false.
func (c *fileChain) Next() ([]byte, TrackSector, error) {
	addr := c.current
	if c.visited[addr] {
		return nil, addr, dtools.ErrCorruptedChain.WithMessage(fmt.Sprintf(
			"file chain revisits track %d, sector %d", addr.Track, addr.Sector))
	}
	c.visited[addr] = true

	data, err := c.img.ReadSector(addr.Track, addr.Sector)
	if err != nil {
		return nil, addr, dtools.ErrCorruptedChain.Wrap(err)
	}

	next := TrackSector{Track: data[0], Sector: data[1]}
	if next.Track == 0 {
		length := int(next.Sector)
		if length > DataBytesPerSector {
			return nil, addr, dtools.ErrCorruptedChain.WithMessage(fmt.Sprintf(
				"terminal sector claims %d payload bytes, maximum is %d",
				length, DataBytesPerSector))
		}
		c.done = true
		return data[2 : 2+length], addr, nil
	}
	c.current = next
	return data[2 : 2+DataBytesPerSector], addr, nil
}

// ExtractFile resolves the file's start sector through the directory and
// concatenates the payload of every sector in its chain.
func (img *Image) ExtractFile(name string) ([]byte, error) {
	start, err := img.FindFile(name)
	if err != nil {
		return nil, err
	}
	var content []byte
	chain := newFileChain(img, start)
	for chain.More() {
		payload, _, err := chain.Next()
		if err != nil {
			return nil, err
		}
		content = append(content, payload...)
	}
	return content, nil
}

// TraceFile returns the ordered list of sectors the file's chain visits, for
// diagnostics. The walk is guarded the same way as ExtractFile, so a corrupt
// chain yields ErrCorruptedChain rather than an unbounded loop.
func (img *Image) TraceFile(name string) ([]TrackSector, error) {
	start, err := img.FindFile(name)
	if err != nil {
		return nil, err
	}
	var sectors []TrackSector
	chain := newFileChain(img, start)
	for chain.More() {
		_, addr, err := chain.Next()
		if err != nil {
			return nil, err
		}
		sectors = append(sectors, addr)
	}
	return sectors, nil
}

// InsertFile writes content as a new chained file and appends a directory
// entry for it. Placement is planned first against a decoded BAM: every
// sector of the chain, including the first, is claimed through first-fit
// free-sector search and marked allocated before anything is written, so
// chains never collide with sectors owned by other files and a full disk or
// full directory leaves the image untouched. Empty content still claims one
// terminal sector.
func (img *Image) InsertFile(name string, content []byte) error {
	bam, err := img.ReadBAM()
	if err != nil {
		return err
	}

	count := (len(content) + DataBytesPerSector - 1) / DataBytesPerSector
	if count == 0 {
		count = 1
	}
	chain := make([]TrackSector, 0, count)
	for i := 0; i < count; i++ {
		addr, ok := bam.FirstFreeSector()
		if !ok {
			return dtools.ErrDiskFull.WithMessage(
				fmt.Sprintf("no free sector for block %d of %d", i+1, count))
		}
		if err := bam.AllocateSector(addr.Track, addr.Sector); err != nil {
			return err
		}
		chain = append(chain, addr)
	}

	entry, err := NewDirEntry(name, chain[0])
	if err != nil {
		return err
	}
	// Fail on a full directory before the first image write.
	if _, _, err := img.findEmptySlot(); err != nil {
		return err
	}

	for i, addr := range chain {
		sector := make([]byte, SectorSize)
		var length int
		if i == len(chain)-1 {
			length = len(content) - i*DataBytesPerSector
			sector[0] = 0
			sector[1] = byte(length)
		} else {
			length = DataBytesPerSector
			sector[0] = chain[i+1].Track
			sector[1] = chain[i+1].Sector
		}
		copy(sector[2:], content[i*DataBytesPerSector:i*DataBytesPerSector+length])
		if err := img.WriteSector(addr.Track, addr.Sector, sector); err != nil {
			return err
		}
	}

	if err := img.WriteBAM(bam); err != nil {
		return err
	}
	return img.AppendDirEntry(entry)
}
