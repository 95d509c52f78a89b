package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/cellneigh/internal/grid"
)

func twoByOne(t *testing.T, rank int) *grid.Neighborhood {
	t.Helper()
	l, err := grid.NewLattice(grid.Extent{XMin: 0, XMax: 2000, YMin: 0, YMax: 1000}, grid.KilometersToMeters(1))
	require.NoError(t, err)
	nb, err := grid.Compute(l, rank, grid.Options{})
	require.NoError(t, err)
	return nb
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"csv", FormatCSV},
		{"JSON", FormatJSON},
		{"yaml", FormatYAML},
		{"yml", FormatYAML},
		{" xlsx ", FormatXLSX},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("parquet")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("out/neigh.YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = FormatFromPath("neigh.xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = FormatFromPath("neigh")
	assert.True(t, errors.Is(err, ErrUnknownFormat))

	_, err = FormatFromPath("neigh.txt")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, twoByOne(t, 1), FormatCSV))

	want := "cell,row,col,nneigh\n" +
		"0,0,0,1\n" +
		"1,0,1,1\n" +
		"\n" +
		"cell,neighbor\n" +
		"0,1\n" +
		"1,0\n"
	assert.Equal(t, want, buf.String())
}

func TestWrite_CSVRankZero(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, twoByOne(t, 0), FormatCSV))
	assert.Equal(t, "cell,row,col,nneigh\n0,0,0,0\n1,0,1,0\n\ncell,neighbor\n", buf.String())
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, twoByOne(t, 1), FormatJSON))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 1, doc.Rows)
	assert.Equal(t, 2, doc.Cols)
	assert.Equal(t, 1000.0, doc.CellSize)
	assert.Equal(t, 1, doc.Rank)
	assert.Equal(t, 2000.0, doc.Extent.XMax)
	assert.Equal(t, []int{1, 1}, doc.NNeigh)
	assert.Equal(t, []int{1, 0}, doc.Adj)
}

func TestWrite_JSONRankZeroHasEmptyAdj(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, twoByOne(t, 0), FormatJSON))
	assert.Contains(t, buf.String(), `"adj": []`)
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, twoByOne(t, 1), FormatYAML))

	var doc Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, NewDocument(twoByOne(t, 1)), doc)
}

func TestWrite_XLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, twoByOne(t, 1), FormatXLSX))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	cells, ok := f.Sheet["cells"]
	require.True(t, ok)
	require.Len(t, cells.Rows, 3)
	assert.Equal(t, []string{"cell", "row", "col", "nneigh"}, sheetRow(cells.Rows[0]))
	assert.Equal(t, []string{"1", "0", "1", "1"}, sheetRow(cells.Rows[2]))

	adj, ok := f.Sheet["adjacency"]
	require.True(t, ok)
	require.Len(t, adj.Rows, 3)
	assert.Equal(t, []string{"0", "1"}, sheetRow(adj.Rows[1]))
	assert.Equal(t, []string{"1", "0"}, sheetRow(adj.Rows[2]))
}

func sheetRow(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, twoByOne(t, 1), Format("parquet"))
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestWriteFile_InfersFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neigh.json")
	require.NoError(t, WriteFile(path, twoByOne(t, 1), ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []int{1, 0}, doc.Adj)
}

func TestWriteFile_ExplicitFormatWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neigh.out")
	require.NoError(t, WriteFile(path, twoByOne(t, 1), FormatCSV))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("cell,row,col,nneigh\n")))
}

func TestWriteFile_BadExtension(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "neigh"), twoByOne(t, 1), "")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}
