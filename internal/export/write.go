package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/cellneigh/internal/grid"
)

var (
	cellsHeader     = []string{"cell", "row", "col", "nneigh"}
	adjacencyHeader = []string{"cell", "neighbor"}
)

// Write encodes nb to w in the given format.
func Write(w io.Writer, nb *grid.Neighborhood, format Format) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, nb)
	case FormatJSON:
		return writeJSON(w, nb)
	case FormatYAML:
		return writeYAML(w, nb)
	case FormatXLSX:
		return writeXLSX(w, nb)
	default:
		return eris.Wrapf(ErrUnknownFormat, "%q", format)
	}
}

// WriteFile creates path and writes nb to it. An empty format is inferred
// from the extension.
func WriteFile(path string, nb *grid.Neighborhood, format Format) error {
	if format == "" {
		f, err := FormatFromPath(path)
		if err != nil {
			return err
		}
		format = f
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	if err := Write(f, nb, format); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "export: close file")
}

// writeCSV emits two tables separated by a blank line: one row per cell,
// then one row per (cell, neighbor) pair in index order.
func writeCSV(w io.Writer, nb *grid.Neighborhood) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(cellsHeader); err != nil {
		return eris.Wrap(err, "export: write CSV cells header")
	}
	for i, n := range nb.Counts {
		row, col := nb.Lattice.Coordinate(i)
		rec := []string{strconv.Itoa(i), strconv.Itoa(row), strconv.Itoa(col), strconv.Itoa(n)}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "export: write CSV cell row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush CSV cells")
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return eris.Wrap(err, "export: write CSV separator")
	}

	if err := cw.Write(adjacencyHeader); err != nil {
		return eris.Wrap(err, "export: write CSV adjacency header")
	}
	for i := range nb.Counts {
		cell := strconv.Itoa(i)
		for _, k := range nb.Neighbors(i) {
			if err := cw.Write([]string{cell, strconv.Itoa(k)}); err != nil {
				return eris.Wrap(err, "export: write CSV adjacency row")
			}
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush CSV adjacency")
}

func writeJSON(w io.Writer, nb *grid.Neighborhood) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(NewDocument(nb)), "export: encode JSON")
}

func writeYAML(w io.Writer, nb *grid.Neighborhood) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewDocument(nb)); err != nil {
		return eris.Wrap(err, "export: encode YAML")
	}
	return eris.Wrap(enc.Close(), "export: close YAML encoder")
}
