package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/urfave/cli/v2"

	"github.com/vschwaberow/dtools"
	"github.com/vschwaberow/dtools/d64"
)

func main() {
	app := cli.App{
		Name:  "dtools",
		Usage: "Inspect and manipulate Commodore 1541 disk images",
		Commands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Create a new blank image",
				Action: createImage,
				Flags: []cli.Flag{
					fileFlag(),
					&cli.UintFlag{
						Name:    "tracks",
						Aliases: []string{"t"},
						Usage:   "track count, 35 or 40",
						Value:   35,
					},
				},
			},
			{
				Name:   "format",
				Usage:  "Format an image with a disk name and id",
				Action: formatImage,
				Flags: []cli.Flag{
					fileFlag(),
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true},
					&cli.StringFlag{Name: "id", Aliases: []string{"i"}, Required: true},
				},
			},
			{
				Name:   "read",
				Usage:  "Dump one sector as hex",
				Action: readSector,
				Flags:  []cli.Flag{fileFlag(), trackFlag(), sectorFlag()},
			},
			{
				Name:   "write",
				Usage:  "Write hex-encoded data to one sector",
				Action: writeSector,
				Flags: []cli.Flag{
					fileFlag(), trackFlag(), sectorFlag(),
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "256 bytes of sector data, hex encoded",
						Required: true,
					},
				},
			},
			{
				Name:   "bam",
				Usage:  "Show the disk label and per-track free sector counts",
				Action: showBAM,
				Flags: []cli.Flag{
					fileFlag(),
					&cli.StringFlag{
						Name:  "csv",
						Usage: "also write the free-sector table to a CSV file",
					},
				},
			},
			{
				Name:   "find-free",
				Usage:  "Find the first free sector on the disk",
				Action: findFreeSector,
				Flags:  []cli.Flag{fileFlag()},
			},
			{
				Name:   "allocate",
				Usage:  "Mark one sector as allocated in the BAM",
				Action: allocateSector,
				Flags:  []cli.Flag{fileFlag(), trackFlag(), sectorFlag()},
			},
			{
				Name:   "free",
				Usage:  "Mark one sector as free in the BAM",
				Action: freeSector,
				Flags:  []cli.Flag{fileFlag(), trackFlag(), sectorFlag()},
			},
			{
				Name:   "set-name",
				Usage:  "Set the disk name",
				Action: setDiskName,
				Flags: []cli.Flag{
					fileFlag(),
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true},
				},
			},
			{
				Name:   "set-id",
				Usage:  "Set the two-character disk id",
				Action: setDiskID,
				Flags: []cli.Flag{
					fileFlag(),
					&cli.StringFlag{Name: "id", Aliases: []string{"i"}, Required: true},
				},
			},
			{
				Name:   "list",
				Usage:  "List the files on the disk",
				Action: listFiles,
				Flags:  []cli.Flag{fileFlag()},
			},
			{
				Name:   "extract",
				Usage:  "Extract a file's content to the local file system",
				Action: extractFile,
				Flags: []cli.Flag{
					fileFlag(),
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true},
				},
			},
			{
				Name:   "insert",
				Usage:  "Write a local file onto the disk",
				Action: insertFile,
				Flags: []cli.Flag{
					fileFlag(),
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true},
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true},
				},
			},
			{
				Name:   "trace",
				Usage:  "Show the sector chain of a file",
				Action: traceFile,
				Flags: []cli.Flag{
					fileFlag(),
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func fileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "path to the disk image",
		Required: true,
	}
}

func trackFlag() cli.Flag {
	return &cli.UintFlag{Name: "track", Aliases: []string{"t"}, Required: true}
}

func sectorFlag() cli.Flag {
	return &cli.UintFlag{Name: "sector", Aliases: []string{"s"}, Required: true}
}

func loadImage(path string) (*d64.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dtools.ErrIOFailed.Wrap(err)
	}
	defer f.Close()
	return d64.LoadStream(f)
}

func saveImage(img *d64.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return dtools.ErrIOFailed.Wrap(err)
	}
	defer f.Close()
	return img.Save(f)
}

func createImage(ctx *cli.Context) error {
	img, err := d64.New(byte(ctx.Uint("tracks")))
	if err != nil {
		return err
	}
	if err := saveImage(img, ctx.String("file")); err != nil {
		return err
	}
	fmt.Printf("Created new image '%s' with %d tracks\n",
		ctx.String("file"), img.Tracks())
	return nil
}

func formatImage(ctx *cli.Context) error {
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	if err := img.Format(ctx.String("name"), ctx.String("id")); err != nil {
		return err
	}
	if err := saveImage(img, ctx.String("file")); err != nil {
		return err
	}
	fmt.Printf("Formatted '%s' with name '%s' and id '%s'\n",
		ctx.String("file"), ctx.String("name"), ctx.String("id"))
	return nil
}

func readSector(ctx *cli.Context) error {
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	data, err := img.ReadSector(byte(ctx.Uint("track")), byte(ctx.Uint("sector")))
	if err != nil {
		return err
	}
	fmt.Print(hex.Dump(data))
	return nil
}

func writeSector(ctx *cli.Context) error {
	data, err := hex.DecodeString(ctx.String("data"))
	if err != nil {
		return fmt.Errorf("sector data is not valid hex: %w", err)
	}
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	err = img.WriteSector(byte(ctx.Uint("track")), byte(ctx.Uint("sector")), data)
	if err != nil {
		return err
	}
	if err := saveImage(img, ctx.String("file")); err != nil {
		return err
	}
	fmt.Println("Sector written successfully")
	return nil
}

// bamRow is one line of the CSV export written by `dtools bam --csv`.
type bamRow struct {
	Track       byte `csv:"track"`
	FreeSectors byte `csv:"free_sectors"`
}

func showBAM(ctx *cli.Context) error {
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	bam, err := img.ReadBAM()
	if err != nil {
		return err
	}

	fmt.Printf("Disk Name: %s\n", bam.DiskName())
	fmt.Printf("Disk ID: %s\n", bam.DiskID())
	fmt.Println("Free sectors per track:")

	rows := make([]*bamRow, 0, img.Tracks())
	for track := byte(1); track <= img.Tracks(); track++ {
		free, err := bam.FreeSectorCount(track)
		if err != nil {
			return err
		}
		fmt.Printf("Track %d: %d free sectors\n", track, free)
		rows = append(rows, &bamRow{Track: track, FreeSectors: free})
	}

	if csvPath := ctx.String("csv"); csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return dtools.ErrIOFailed.Wrap(err)
		}
		defer f.Close()
		if err := gocsv.MarshalFile(&rows, f); err != nil {
			return err
		}
		fmt.Printf("Free-sector table written to '%s'\n", csvPath)
	}
	return nil
}

func findFreeSector(ctx *cli.Context) error {
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	addr, err := img.FindFreeSector()
	if err != nil {
		return err
	}
	fmt.Printf("Found free sector: track %d, sector %d\n", addr.Track, addr.Sector)
	return nil
}

func allocateSector(ctx *cli.Context) error {
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	track, sector := byte(ctx.Uint("track")), byte(ctx.Uint("sector"))
	if err := img.AllocateSector(track, sector); err != nil {
		return err
	}
	if err := saveImage(img, ctx.String("file")); err != nil {
		return err
	}
	fmt.Printf("Allocated sector %d on track %d\n", sector, track)
	return nil
}

func freeSector(ctx *cli.Context) error {
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	track, sector := byte(ctx.Uint("track")), byte(ctx.Uint("sector"))
	if err := img.FreeSector(track, sector); err != nil {
		return err
	}
	if err := saveImage(img, ctx.String("file")); err != nil {
		return err
	}
	fmt.Printf("Freed sector %d on track %d\n", sector, track)
	return nil
}

func setDiskName(ctx *cli.Context) error {
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	bam, err := img.ReadBAM()
	if err != nil {
		return err
	}
	if err := bam.SetDiskName(ctx.String("name")); err != nil {
		return err
	}
	if err := img.WriteBAM(bam); err != nil {
		return err
	}
	if err := saveImage(img, ctx.String("file")); err != nil {
		return err
	}
	fmt.Printf("Disk name set to: %s\n", ctx.String("name"))
	return nil
}

func setDiskID(ctx *cli.Context) error {
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	bam, err := img.ReadBAM()
	if err != nil {
		return err
	}
	if err := bam.SetDiskID(ctx.String("id")); err != nil {
		return err
	}
	if err := img.WriteBAM(bam); err != nil {
		return err
	}
	if err := saveImage(img, ctx.String("file")); err != nil {
		return err
	}
	fmt.Printf("Disk ID set to: %s\n", ctx.String("id"))
	return nil
}

func listFiles(ctx *cli.Context) error {
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	files, err := img.ListFiles()
	if err != nil {
		return err
	}
	fmt.Printf("Files in %s:\n", ctx.String("file"))
	for i, name := range files {
		fmt.Printf("%2d. %s\n", i+1, name)
	}
	return nil
}

func extractFile(ctx *cli.Context) error {
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	content, err := img.ExtractFile(ctx.String("name"))
	if err != nil {
		return err
	}
	if err := os.WriteFile(ctx.String("output"), content, 0o644); err != nil {
		return dtools.ErrIOFailed.Wrap(err)
	}
	fmt.Printf("File '%s' extracted to '%s'\n", ctx.String("name"), ctx.String("output"))
	return nil
}

func insertFile(ctx *cli.Context) error {
	content, err := os.ReadFile(ctx.String("input"))
	if err != nil {
		return dtools.ErrIOFailed.Wrap(err)
	}
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	if err := img.InsertFile(ctx.String("name"), content); err != nil {
		return err
	}
	if err := saveImage(img, ctx.String("file")); err != nil {
		return err
	}
	fmt.Printf("File '%s' written to '%s' (%d bytes)\n",
		ctx.String("name"), ctx.String("file"), len(content))
	return nil
}

func traceFile(ctx *cli.Context) error {
	img, err := loadImage(ctx.String("file"))
	if err != nil {
		return err
	}
	sectors, err := img.TraceFile(ctx.String("name"))
	if err != nil {
		return err
	}
	fmt.Printf("File '%s' is located in the following sectors:\n", ctx.String("name"))
	for i, addr := range sectors {
		fmt.Printf("  Block %d: Track %d, Sector %d\n", i+1, addr.Track, addr.Sector)
	}
	fmt.Printf("Total blocks: %d\n", len(sectors))
	return nil
}
