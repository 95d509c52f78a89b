package grid

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// MetersPerKilometer is the factor applied by KilometersToMeters.
const MetersPerKilometer = 1000.0

// KilometersToMeters converts a cell size given in kilometres to metres, for
// extents expressed in metres.
func KilometersToMeters(km float64) float64 {
	return km * MetersPerKilometer
}

// Extent is an axis-aligned rectangle in linear distance units.
type Extent struct {
	XMin float64 `json:"xmin" yaml:"xmin"`
	XMax float64 `json:"xmax" yaml:"xmax"`
	YMin float64 `json:"ymin" yaml:"ymin"`
	YMax float64 `json:"ymax" yaml:"ymax"`
}

// Validate returns ErrInvalidExtent unless all bounds are finite and the
// rectangle has positive width and height.
func (e Extent) Validate() error {
	for _, v := range [...]float64{e.XMin, e.XMax, e.YMin, e.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Wrapf(ErrInvalidExtent, "non-finite bound in %s", e)
		}
	}
	if !(e.XMax > e.XMin) || !(e.YMax > e.YMin) {
		return eris.Wrapf(ErrInvalidExtent, "extent %s", e)
	}
	return nil
}

// Width is XMax - XMin.
func (e Extent) Width() float64 { return e.XMax - e.XMin }

// Height is YMax - YMin.
func (e Extent) Height() float64 { return e.YMax - e.YMin }

// Bounds returns the extent as a two-dimensional go-geom bounding box.
func (e Extent) Bounds() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(e.XMin, e.YMin, e.XMax, e.YMax)
}

func (e Extent) String() string {
	return fmt.Sprintf("(%g, %g, %g, %g)", e.XMin, e.XMax, e.YMin, e.YMax)
}

// ExtentFromBounds converts a go-geom bounding box to a validated Extent.
// Only the first two dimensions are used.
func ExtentFromBounds(b *geom.Bounds) (Extent, error) {
	if b == nil || b.IsEmpty() {
		return Extent{}, eris.Wrap(ErrInvalidExtent, "empty bounds")
	}
	e := Extent{XMin: b.Min(0), XMax: b.Max(0), YMin: b.Min(1), YMax: b.Max(1)}
	if err := e.Validate(); err != nil {
		return Extent{}, err
	}
	return e, nil
}
