package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cellneigh/internal/export"
	"github.com/sells-group/cellneigh/internal/fetcher"
	"github.com/sells-group/cellneigh/internal/grid"
	"github.com/sells-group/cellneigh/internal/region"
	"github.com/sells-group/cellneigh/internal/resilience"
)

var neighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "Compute cell neighbourhoods for an extent",
	Long: `Computes, for every cell of the grid covering an extent, the flat indices
of all cells within the given rank. The extent comes from --region, a raster
geotransform, or a shapefile / GeoJSON path or ftp:// URL given with --source.
Extents are in metres; --cell-km is converted to metres, --cell-size is used as is.`,
	RunE: runNeighbors,
}

func init() {
	addNeighborsFlags(neighborsCmd)
	rootCmd.AddCommand(neighborsCmd)
}

func addNeighborsFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("region", "", "extent as xmin,xmax,ymin,ymax")
	f.String("source", "", "path or ftp:// URL of a .shp, .geojson or .json file")
	f.String("geotransform", "", "raster geotransform gt0,gt1,gt2,gt3,gt4,gt5")
	f.String("raster-size", "", "raster size as cols,rows (with --geotransform)")
	f.Float64("cell-km", 0, "cell size in kilometres (default from config)")
	f.Float64("cell-size", 0, "cell size in extent units")
	f.Int("rank", 0, "neighbourhood rank (default from config)")
	f.Int("workers", 0, "parallel workers (default from config)")
	f.Int("max-cells", 0, "reject grids with more cells (default from config)")
	f.Int("max-indices", 0, "reject neighbourhoods with more neighbour indices (default from config)")
	f.StringP("output", "o", "", "output file (default stdout)")
	f.String("format", "", "output format: csv, json, yaml or xlsx (default from --output extension, else json)")
	f.Bool("save", false, "persist the neighbourhood in the configured store")
	cmd.MarkFlagsMutuallyExclusive("cell-km", "cell-size")
}

// neighborsParams collects the flag and config values of one run.
type neighborsParams struct {
	Source   region.Source
	CellSize float64
	Rank     int
	Options  grid.Options
	Output   string
	Format   export.Format
	Save     bool
}

func neighborsParamsFromFlags(cmd *cobra.Command) (neighborsParams, error) {
	f := cmd.Flags()
	var p neighborsParams

	p.Source.Region, _ = f.GetString("region")
	p.Source.Location, _ = f.GetString("source")
	p.Source.GeoTransform, _ = f.GetString("geotransform")
	p.Source.RasterSize, _ = f.GetString("raster-size")

	cellKm := cfg.Grid.CellKm
	if f.Changed("cell-km") {
		cellKm, _ = f.GetFloat64("cell-km")
	}
	p.CellSize = grid.KilometersToMeters(cellKm)
	if f.Changed("cell-size") {
		p.CellSize, _ = f.GetFloat64("cell-size")
	}

	p.Rank = cfg.Grid.Rank
	if f.Changed("rank") {
		p.Rank, _ = f.GetInt("rank")
	}
	p.Options = grid.Options{
		Workers:    cfg.Grid.Workers,
		MaxCells:   cfg.Grid.MaxCells,
		MaxIndices: cfg.Grid.MaxIndices,
	}
	if f.Changed("workers") {
		p.Options.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("max-cells") {
		p.Options.MaxCells, _ = f.GetInt("max-cells")
	}
	if f.Changed("max-indices") {
		p.Options.MaxIndices, _ = f.GetInt("max-indices")
	}

	p.Output, _ = f.GetString("output")
	p.Save, _ = f.GetBool("save")

	name, _ := f.GetString("format")
	switch {
	case name != "":
		format, err := export.ParseFormat(name)
		if err != nil {
			return p, err
		}
		p.Format = format
	case p.Output != "":
		format, err := export.FormatFromPath(p.Output)
		if err != nil {
			return p, eris.Wrap(err, "neighbors: pass --format")
		}
		p.Format = format
	default:
		p.Format = export.FormatJSON
	}
	return p, nil
}

func newResolver() *region.Resolver {
	return &region.Resolver{
		Downloader: fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			Retry: resilience.NewPolicy(cfg.Fetch.MaxAttempts,
				time.Duration(cfg.Fetch.InitialBackoffMs)*time.Millisecond),
		}),
		TempDir: cfg.Fetch.TempDir,
	}
}

// computeNeighbors resolves the extent and builds its neighbourhood.
func computeNeighbors(ctx context.Context, res *region.Resolver, p neighborsParams) (*grid.Neighborhood, error) {
	ext, err := res.Resolve(ctx, p.Source)
	if err != nil {
		return nil, eris.Wrap(err, "neighbors: resolve region")
	}
	l, err := grid.NewLattice(ext, p.CellSize)
	if err != nil {
		return nil, eris.Wrap(err, "neighbors: lattice")
	}
	nb, err := grid.ComputeContext(ctx, l, p.Rank, p.Options)
	if err != nil {
		return nil, eris.Wrap(err, "neighbors: compute")
	}
	return nb, nil
}

func runNeighbors(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := cfg.Validate("neighbors"); err != nil {
		return err
	}

	p, err := neighborsParamsFromFlags(cmd)
	if err != nil {
		return err
	}
	log := zap.L().With(zap.String("command", "neighbors"))

	start := time.Now()
	nb, err := computeNeighbors(ctx, newResolver(), p)
	if err != nil {
		return err
	}
	log.Info("computed neighbourhood",
		zap.Int("rows", nb.Lattice.Rows),
		zap.Int("cols", nb.Lattice.Cols),
		zap.Float64("cell_size", p.CellSize),
		zap.Int("rank", p.Rank),
		zap.Int("total", nb.Total()),
		zap.Duration("elapsed", time.Since(start)),
	)

	if p.Save {
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id, err := st.SaveNeighborhood(ctx, nb)
		if err != nil {
			return eris.Wrap(err, "neighbors: save")
		}
		log.Info("saved neighbourhood", zap.String("grid_id", id))
		fmt.Fprintln(cmd.ErrOrStderr(), id)
	}

	return writeNeighbors(cmd.OutOrStdout(), nb, p)
}

func writeNeighbors(stdout io.Writer, nb *grid.Neighborhood, p neighborsParams) error {
	if p.Output == "" {
		return export.Write(stdout, nb, p.Format)
	}
	if err := export.WriteFile(p.Output, nb, p.Format); err != nil {
		return err
	}
	zap.L().Info("wrote neighbourhood", zap.String("path", p.Output), zap.String("format", string(p.Format)))
	return nil
}
