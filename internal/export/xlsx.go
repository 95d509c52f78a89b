package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/cellneigh/internal/grid"
)

// MaxSheetRows is the row limit of a worksheet, header included.
const MaxSheetRows = 1 << 20

// ErrSheetTooLarge is returned when a neighbourhood does not fit in a
// worksheet.
var ErrSheetTooLarge = eris.New("export: too many rows for an xlsx sheet")

func writeXLSX(w io.Writer, nb *grid.Neighborhood) error {
	if nb.Len()+1 > MaxSheetRows || nb.Total()+1 > MaxSheetRows {
		return eris.Wrapf(ErrSheetTooLarge, "%d cells, %d adjacency rows", nb.Len(), nb.Total())
	}

	f := xlsx.NewFile()

	cells, err := f.AddSheet("cells")
	if err != nil {
		return eris.Wrap(err, "export: add cells sheet")
	}
	addHeader(cells, cellsHeader)
	for i, n := range nb.Counts {
		row, col := nb.Lattice.Coordinate(i)
		addIntRow(cells, i, row, col, n)
	}

	adj, err := f.AddSheet("adjacency")
	if err != nil {
		return eris.Wrap(err, "export: add adjacency sheet")
	}
	addHeader(adj, adjacencyHeader)
	for i := range nb.Counts {
		for _, k := range nb.Neighbors(i) {
			addIntRow(adj, i, k)
		}
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}

func addHeader(sheet *xlsx.Sheet, names []string) {
	row := sheet.AddRow()
	for _, name := range names {
		row.AddCell().SetString(name)
	}
}

func addIntRow(sheet *xlsx.Sheet, values ...int) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetInt(v)
	}
}
