package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/deepteams/webpexport/animation"
	"github.com/deepteams/webpexport/mux"
)

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "display WebP container details",
		ArgsUsage: "<file.webp>",
		Action:    runInfo,
	}
}

func runInfo(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("info: missing input file", 2)
	}
	path := c.Args().First()
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	d, err := mux.NewDemuxer(data)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	feat := d.Features()

	w := c.App.Writer
	fmt.Fprintf(w, "File:       %s\n", path)
	fmt.Fprintf(w, "Format:     %s\n", feat.Format)
	fmt.Fprintf(w, "Dimensions: %d x %d\n", feat.Width, feat.Height)
	fmt.Fprintf(w, "Alpha:      %v\n", feat.HasAlpha)
	fmt.Fprintf(w, "Animation:  %v\n", feat.HasAnimation)
	if feat.HasAnimation {
		loop := "infinite"
		if n := d.LoopCount(); n > 0 {
			loop = fmt.Sprint(n)
		}
		bg := animation.UnpackBackground(d.BackgroundColor())
		fmt.Fprintf(w, "Loop count: %s\n", loop)
		fmt.Fprintf(w, "Background: #%02x%02x%02x%02x\n", bg.R, bg.G, bg.B, bg.A)
		fmt.Fprintf(w, "Frames:     %d\n", d.NumFrames())
		for i := 0; i < d.NumFrames(); i++ {
			fi, err := d.Frame(i)
			if err != nil {
				return fmt.Errorf("info: %w", err)
			}
			fmt.Fprintf(w, "  %3d: %dx%d at (%d,%d), %d ms\n", i, fi.Width, fi.Height, fi.OffsetX, fi.OffsetY, fi.Duration)
		}
	}
	for _, tag := range []string{"ICCP", "EXIF", "XMP "} {
		if chunk, err := d.Chunk(tag); err == nil {
			fmt.Fprintf(w, "%-11s %d bytes\n", tag+":", len(chunk))
		}
	}
	fmt.Fprintf(w, "File size:  %d bytes\n", len(data))
	return nil
}
