package region

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cellneigh/internal/grid"
)

// FromShapefile returns the bounding box recorded in a .shp header. Only the
// .shp file is read.
func FromShapefile(path string) (grid.Extent, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return grid.Extent{}, eris.Wrapf(err, "region: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	box := reader.BBox()
	e := grid.Extent{XMin: box.MinX, XMax: box.MaxX, YMin: box.MinY, YMax: box.MaxY}
	if err := e.Validate(); err != nil {
		return grid.Extent{}, eris.Wrapf(err, "region: shapefile %s", path)
	}
	return e, nil
}
