package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestExtentValidate(t *testing.T) {
	tests := []struct {
		name   string
		extent Extent
		ok     bool
	}{
		{"valid", Extent{0, 10, 0, 5}, true},
		{"negative coordinates", Extent{-500, -100, -20, -10}, true},
		{"zero width", Extent{3, 3, 0, 1}, false},
		{"zero height", Extent{0, 1, 4, 4}, false},
		{"reversed x", Extent{10, 0, 0, 5}, false},
		{"reversed y", Extent{0, 10, 5, 0}, false},
		{"nan bound", Extent{math.NaN(), 10, 0, 5}, false},
		{"infinite bound", Extent{0, math.Inf(1), 0, 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.extent.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidExtent)
		})
	}
}

func TestExtentDimensions(t *testing.T) {
	e := Extent{XMin: 100, XMax: 350, YMin: -40, YMax: 60}
	assert.InDelta(t, 250, e.Width(), 1e-9)
	assert.InDelta(t, 100, e.Height(), 1e-9)
	assert.Equal(t, "(100, 350, -40, 60)", e.String())
}

func TestExtentBoundsRoundTrip(t *testing.T) {
	e := Extent{XMin: 1, XMax: 4, YMin: 2, YMax: 8}
	b := e.Bounds()
	assert.Equal(t, 1.0, b.Min(0))
	assert.Equal(t, 8.0, b.Max(1))

	got, err := ExtentFromBounds(b)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestExtentFromBounds_Invalid(t *testing.T) {
	_, err := ExtentFromBounds(nil)
	assert.ErrorIs(t, err, ErrInvalidExtent)

	_, err = ExtentFromBounds(geom.NewBounds(geom.XY))
	assert.ErrorIs(t, err, ErrInvalidExtent)

	// A single point has zero area.
	point := geom.NewBounds(geom.XY).Set(5, 5, 5, 5)
	_, err = ExtentFromBounds(point)
	assert.ErrorIs(t, err, ErrInvalidExtent)
}

func TestKilometersToMeters(t *testing.T) {
	assert.Equal(t, 1000.0, KilometersToMeters(1))
	assert.Equal(t, 10000.0, KilometersToMeters(10))
	assert.InDelta(t, 250.0, KilometersToMeters(0.25), 1e-9)
}
