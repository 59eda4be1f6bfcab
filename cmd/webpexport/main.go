// Command webpexport writes images and animations as WebP files.
//
// Usage:
//
//	webpexport export [options] -o out.webp <layer>...   one or more images → WebP
//	webpexport export [options] -o out.webp <anim.gif>   animated GIF → animated WebP
//	webpexport info <file.webp>                          display container details
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "webpexport: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "webpexport",
		Usage:     "export layered images as WebP",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "warn",
				Usage:   "log level (trace, debug, info, warn, error, off)",
			},
		},
		Commands: []*cli.Command{
			exportCommand(),
			infoCommand(),
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func newLogger(c *cli.Context) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "webpexport",
		Level:  hclog.LevelFromString(c.String("log-level")),
		Output: c.App.ErrWriter,
	})
}
