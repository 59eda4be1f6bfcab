package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"

	"github.com/deepteams/webpexport"
	"github.com/deepteams/webpexport/codec"
	"github.com/deepteams/webpexport/internal/config"
	"github.com/deepteams/webpexport/source"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "encode one or more layers into a WebP file",
		ArgsUsage: "<layer>... | <anim.gif>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "output WebP path"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML settings file"},
			&cli.Float64Flag{Name: "quality", Aliases: []string{"q"}, Value: 90, Usage: "quality 0-100"},
			&cli.BoolFlag{Name: "lossless", Usage: "lossless VP8L encoding"},
			&cli.IntFlag{Name: "alpha-quality", Value: 100, Usage: "alpha quality 0-100"},
			&cli.StringFlag{Name: "preset", Value: "default", Usage: "default, picture, photo, drawing, icon or text"},
			&cli.BoolFlag{Name: "animation", Aliases: []string{"a"}, Usage: "export several layers as an animation"},
			&cli.BoolFlag{Name: "no-loop", Usage: "play the animation once"},
			&cli.IntFlag{Name: "delay", Value: 100, Usage: "milliseconds between layers"},
			&cli.StringFlag{Name: "background", Usage: `animation background, "#rrggbb[aa]" or "auto"`},
			&cli.StringFlag{Name: "codec", Usage: "encoder backend (" + strings.Join(codec.Names(), ", ") + ")"},
			&cli.BoolFlag{Name: "strict", Usage: "fail on the first animation frame that cannot be encoded"},
			&cli.BoolFlag{Name: "minimize", Usage: "crop animation frames to their changed area"},
			&cli.IntFlag{Name: "kmax", Usage: "maximum distance between full frames with --minimize"},
			&cli.StringFlag{Name: "icc", Usage: "ICC profile to embed"},
			&cli.IntFlag{Name: "primary", Usage: "layer written when flattening several layers"},
		},
		Action: runExport,
	}
}

// loadConfig reads the settings file, if any, and applies explicitly set
// flags on top of it.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return cfg, err
		}
	}
	if c.IsSet("quality") {
		cfg.Quality = float32(c.Float64("quality"))
	}
	if c.IsSet("lossless") {
		cfg.Lossless = c.Bool("lossless")
	}
	if c.IsSet("alpha-quality") {
		cfg.AlphaQuality = c.Int("alpha-quality")
	}
	if c.IsSet("preset") {
		cfg.Preset = c.String("preset")
	}
	if c.IsSet("animation") {
		cfg.Animation = c.Bool("animation")
	}
	if c.IsSet("no-loop") {
		cfg.Loop = !c.Bool("no-loop")
	}
	if c.IsSet("delay") {
		cfg.DelayMs = c.Int("delay")
	}
	if c.IsSet("background") {
		cfg.Background = c.String("background")
	}
	if c.IsSet("codec") {
		cfg.Codec = c.String("codec")
	}
	if c.IsSet("strict") && c.Bool("strict") {
		cfg.Policy = webpexport.PolicyStrict.String()
	}
	if c.IsSet("minimize") {
		cfg.Minimize = c.Bool("minimize")
	}
	if c.IsSet("kmax") {
		cfg.Kmax = c.Int("kmax")
	}
	if c.IsSet("icc") {
		cfg.ICC = c.String("icc")
	}
	return cfg, cfg.Validate()
}

// openLayers builds the source. A lone GIF is expanded into its frames and
// exported as an animation unless the settings say otherwise.
func openLayers(c *cli.Context, cfg *config.Config) (webpexport.Source, []webpexport.Layer, error) {
	args := c.Args().Slice()
	if len(args) == 1 && strings.EqualFold(filepath.Ext(args[0]), ".gif") {
		g, err := source.OpenGIF(args[0])
		if err != nil {
			return nil, nil, err
		}
		if len(g.Images) > 1 {
			if !c.IsSet("animation") {
				cfg.Animation = true
			}
			if !c.IsSet("no-loop") {
				cfg.Loop = g.Loop()
			}
		}
		return g, g.Layers(), nil
	}
	files := source.NewFiles(args...)
	return files, files.Layers(cfg.DelayMs), nil
}

func runExport(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("export: no input layers", 2)
	}
	logger := newLogger(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	src, layers, err := openLayers(c, &cfg)
	if err != nil {
		return err
	}

	opts, err := exporterOptions(cfg, src, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	opts = append(opts, webpexport.WithAbort(func() bool { return ctx.Err() != nil }))

	bar := newProgressBar()
	if bar != nil {
		opts = append(opts, webpexport.WithProgress(bar))
	}
	x := webpexport.New(opts...)

	out := c.String("output")
	primary := webpexport.LayerRef(c.Int("primary"))
	ok, e := x.ExportImage(out, src, layers, primary, cfg.Params())
	if bar != nil {
		bar.Done()
	}
	if !ok {
		if errors.Is(e, webpexport.ErrNoFramesEncoded) {
			logger.Warn("animation written without frames", "path", out)
		}
		return cli.Exit(e.Display(), 1)
	}
	logger.Info("export finished", "path", out)
	return nil
}

func exporterOptions(cfg config.Config, src webpexport.Source, logger hclog.Logger) ([]webpexport.Option, error) {
	enc, err := codec.ByName(cfg.Codec, codec.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	policy, err := cfg.ExportPolicy()
	if err != nil {
		return nil, err
	}
	opts := []webpexport.Option{
		webpexport.WithCodec(enc),
		webpexport.WithLogger(logger),
		webpexport.WithPolicy(policy),
	}
	if cfg.Minimize {
		opts = append(opts, webpexport.WithMinimize(cfg.Kmax))
	}
	if cfg.ICC != "" {
		icc, err := source.ICCFile(cfg.ICC)
		if err != nil {
			return nil, err
		}
		opts = append(opts, webpexport.WithProfile(icc))
	}

	switch cfg.Background {
	case "":
	case config.BackgroundAuto:
		bg, err := source.DominantColor(src, 0)
		if err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
		logger.Debug("picked background", "color", fmt.Sprintf("#%02x%02x%02x", bg.R, bg.G, bg.B))
		opts = append(opts, webpexport.WithBackground(bg))
	default:
		bg, err := config.ParseBackground(cfg.Background)
		if err != nil {
			return nil, err
		}
		opts = append(opts, webpexport.WithBackground(bg))
	}
	return opts, nil
}
