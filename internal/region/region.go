// Package region resolves the rectangular extent a lattice is built over,
// from explicit coordinates, a raster geotransform, a shapefile header, a
// GeoJSON document, or any of those files fetched over FTP.
package region

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cellneigh/internal/grid"
)

var (
	// ErrNoRegion indicates that no region source was given.
	ErrNoRegion = eris.New("region: one of region, geotransform or source must be set")
	// ErrAmbiguousRegion indicates that more than one region source was given.
	ErrAmbiguousRegion = eris.New("region: region, geotransform and source are mutually exclusive")
	// ErrUnsupportedSource indicates a source whose scheme or extension is not understood.
	ErrUnsupportedSource = eris.New("region: unsupported source")
	// ErrRotatedRaster indicates a geotransform with rotation terms.
	ErrRotatedRaster = eris.New("region: rotated geotransforms are not supported")
)

// Parse reads "xmin,xmax,ymin,ymax" (commas and/or spaces) into a validated
// Extent.
func Parse(s string) (grid.Extent, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return grid.Extent{}, eris.Wrap(err, "region: parse extent")
	}
	e := grid.Extent{XMin: v[0], XMax: v[1], YMin: v[2], YMax: v[3]}
	if err := e.Validate(); err != nil {
		return grid.Extent{}, err
	}
	return e, nil
}

// ParseGeoTransform reads the six GDAL geotransform coefficients.
func ParseGeoTransform(s string) ([6]float64, error) {
	var gt [6]float64
	v, err := parseFloats(s, 6)
	if err != nil {
		return gt, eris.Wrap(err, "region: parse geotransform")
	}
	copy(gt[:], v)
	return gt, nil
}

// ParseRasterSize reads "cols,rows".
func ParseRasterSize(s string) (cols, rows int, err error) {
	fields := splitFields(s)
	if len(fields) != 2 {
		return 0, 0, eris.Errorf("region: raster size %q: want cols,rows", s)
	}
	cols, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, eris.Wrapf(err, "region: raster columns %q", fields[0])
	}
	rows, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, eris.Wrapf(err, "region: raster rows %q", fields[1])
	}
	return cols, rows, nil
}

// FromGeoTransform derives the extent of a north-up raster from its
// geotransform and pixel dimensions. gt[1] and gt[5] may have either sign;
// the bounds are ordered before validation.
func FromGeoTransform(gt [6]float64, cols, rows int) (grid.Extent, error) {
	if gt[2] != 0 || gt[4] != 0 {
		return grid.Extent{}, eris.Wrapf(ErrRotatedRaster, "terms %g, %g", gt[2], gt[4])
	}
	if cols < 1 || rows < 1 {
		return grid.Extent{}, eris.Wrapf(grid.ErrInvalidExtent, "raster size %d x %d", cols, rows)
	}
	x0, x1 := gt[0], gt[0]+gt[1]*float64(cols)
	y0, y1 := gt[3]+gt[5]*float64(rows), gt[3]
	e := grid.Extent{XMin: min(x0, x1), XMax: max(x0, x1), YMin: min(y0, y1), YMax: max(y0, y1)}
	if err := e.Validate(); err != nil {
		return grid.Extent{}, err
	}
	return e, nil
}

func splitFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

func parseFloats(s string, n int) ([]float64, error) {
	fields := splitFields(s)
	if len(fields) != n {
		return nil, eris.Errorf("%q: want %d numbers, got %d", s, n, len(fields))
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "field %d", i+1)
		}
		out[i] = v
	}
	return out, nil
}
