// heightgen renders world heightmaps from WDT/ADT terrain assets.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "heightgen",
		Usage: "render world heightmaps from WDT/ADT terrain assets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to config file"},
			&cli.StringSliceFlag{Name: "store", Aliases: []string{"s"}, Usage: "blob store directory (repeatable, later wins)"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.StringFlag{Name: "log-file", Usage: "also write JSON logs to this file"},
		},
		Commands: []*cli.Command{
			{
				Name:      "height",
				Usage:     "build the heightmap mosaic of one or more worlds",
				ArgsUsage: "<wdt-id>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "clamp-above-sea", Usage: "floor heights at sea level"},
					&cli.BoolFlag{Name: "clamp-below-sea", Usage: "cap heights at sea level"},
					&cli.StringFlag{Name: "layout", Usage: "sub-chunk header layout: legacy or extended"},
					&cli.IntFlag{Name: "workers", Aliases: []string{"j"}, Usage: "concurrent tile decodes"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "image format: png, tiff or bmp"},
					&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "hide the progress bar"},
				},
				Action: cmdHeight,
			},
			{
				Name:      "tiles",
				Usage:     "list the populated cells of a world's tile table",
				ArgsUsage: "<wdt-id>",
				Action:    cmdTiles,
			},
			{
				Name:      "tile",
				Usage:     "decode a single tile and export its heightmap and area map",
				ArgsUsage: "<wdt-id> <x> <y>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "layout", Usage: "sub-chunk header layout: legacy or extended"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "image format: png, tiff or bmp"},
				},
				Action: cmdTile,
			},
			{
				Name:  "config",
				Usage: "print the effective configuration",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "save", Usage: "also write it to the user config directory"},
				},
				Action: cmdConfig,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
