package region

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/cellneigh/internal/grid"
)

// FromGeoJSON returns the bounds of a GeoJSON geometry, Feature or
// FeatureCollection. Features with null geometry are skipped.
func FromGeoJSON(r io.Reader) (grid.Extent, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return grid.Extent{}, eris.Wrap(err, "region: read geojson")
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return grid.Extent{}, eris.Wrap(err, "region: decode geojson")
	}

	var geoms []geom.T
	switch head.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return grid.Extent{}, eris.Wrap(err, "region: decode feature collection")
		}
		for _, f := range fc.Features {
			if f.Geometry != nil {
				geoms = append(geoms, f.Geometry)
			}
		}
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return grid.Extent{}, eris.Wrap(err, "region: decode feature")
		}
		if f.Geometry != nil {
			geoms = append(geoms, f.Geometry)
		}
	case "":
		return grid.Extent{}, eris.Wrap(ErrUnsupportedSource, "geojson document has no type")
	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return grid.Extent{}, eris.Wrapf(err, "region: decode %s geometry", head.Type)
		}
		geoms = append(geoms, g)
	}

	bounds := geom.NewBounds(geom.XY)
	for _, g := range geoms {
		bounds.Extend(g)
	}
	e, err := grid.ExtentFromBounds(bounds)
	if err != nil {
		return grid.Extent{}, eris.Wrap(err, "region: geojson bounds")
	}
	return e, nil
}
