// Command cdb2tiles converts a Common Database (CDB) directory tree
// into a 3D Tiles tileset. CLI surface grounded on the cobra usage in
// joeblew999-plat-geo/cmd/geo/main.go, generalized from a single
// "serve" command to this converter's input/output/combine/next flags
// (spec.md §6).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cesiumgs/cdb2tiles/internal/builder"
	"github.com/cesiumgs/cdb2tiles/internal/cdbconfig"
	"github.com/cesiumgs/cdb2tiles/internal/cdblog"
	"github.com/cesiumgs/cdb2tiles/internal/dataset"
	"github.com/cesiumgs/cdb2tiles/internal/tile"
	"github.com/cesiumgs/cdb2tiles/internal/walk"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := cdbconfig.Default()
	var configPath string

	root := &cobra.Command{
		Use:   "cdb2tiles",
		Short: "Convert a Common Database (CDB) tree into a 3D Tiles tileset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				fileCfg, err := cdbconfig.LoadFile(configPath, cfg)
				if err != nil {
					return err
				}
				// Flags given on the command line win over the file.
				keep := map[string]func(){
					"input":         func() { fileCfg.Input = cfg.Input },
					"output":        func() { fileCfg.Output = cfg.Output },
					"combine":       func() { fileCfg.Combine = cfg.Combine },
					"3d-tiles-next": func() { fileCfg.UseNext = cfg.UseNext },
					"threads":       func() { fileCfg.Threads = cfg.Threads },
					"log-level":     func() { fileCfg.LogLevel = cfg.LogLevel },
				}
				for name, apply := range keep {
					if cmd.Flags().Changed(name) {
						apply()
					}
				}
				cfg = fileCfg
			}
			if err := cdbconfig.Validate(cfg); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfg.Input, "input", "", "path to the CDB root directory (required)")
	flags.StringVar(&cfg.Output, "output", "", "path to the output tileset directory (required)")
	flags.StringSliceVar(&cfg.Combine, "combine", nil, "dataset directory names to combine into a single tileset")
	flags.BoolVar(&cfg.UseNext, "3d-tiles-next", false, "emit 3D Tiles Next implicit tiling instead of an explicit tree")
	flags.IntVar(&cfg.Threads, "threads", 1, "worker count; must be >= 1 (the conversion itself runs on one goroutine)")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&configPath, "config", "", "optional YAML config file; CLI flags override its values")

	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cdb2tiles version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func run(ctx context.Context, cfg cdbconfig.Config) error {
	log := cdblog.New(cfg.LogLevel)
	log.Info("starting conversion", "input", cfg.Input, "output", cfg.Output, "use3dTilesNext", cfg.UseNext)

	b := builder.New(log, cfg.Output, cfg.UseNext, cfg.Combine)

	err := walk.Root(cfg.Input, func(absPath string, t tile.Tile) error {
		switch {
		case t.Dataset == dataset.Elevation:
			return b.AddElevationTile(ctx, absPath, t)
		case t.Dataset == dataset.Imagery:
			return b.AddImageryTile(ctx, absPath, t)
		case isVectorDataset(t):
			return b.AddVectorFeature(ctx, absPath, t)
		case isModelDataset(t):
			return b.AddModelInstance(ctx, absPath, t)
		default:
			return nil
		}
	})
	if err != nil {
		return err
	}

	if err := b.ProcessElevation(ctx); err != nil {
		return err
	}

	if err := b.Flush(); err != nil {
		return err
	}
	log.Info("conversion complete")
	return nil
}

// isVectorDataset reports whether t belongs to one of the CDB vector
// feature datasets (§4.F): GSFeature/GTFeature/GeoPolitical plus the
// five VectorMaterial/road/rail/powerline/hydrography network layers.
func isVectorDataset(t tile.Tile) bool {
	switch t.Dataset {
	case dataset.GSFeature, dataset.GTFeature, dataset.GeoPolitical,
		dataset.VectorMaterial, dataset.RoadNetwork, dataset.RailRoadNetwork,
		dataset.PowerlineNetwork, dataset.HydrographyNetwork:
		return true
	default:
		return false
	}
}

// isModelDataset reports whether t belongs to one of the CDB GS-Model
// or GT-Model instance-placement datasets.
func isModelDataset(t tile.Tile) bool {
	switch t.Dataset {
	case dataset.GSModelGeometry, dataset.GSModelInteriorGeometry, dataset.T2DModelGeometry,
		dataset.GTModelGeometry500, dataset.GTModelGeometry510, dataset.GTModelInteriorGeometry:
		return true
	default:
		return false
	}
}
