package render

import (
	"image/color"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject(t *testing.T) {
	// Azimuth and elevation zero: the screen is the (y, z) plane.
	v := View{}
	x, y := v.project([3]float64{7, 2, 3})
	assert.InDelta(t, 2.0, x, 1e-12)
	assert.InDelta(t, 3.0, y, 1e-12)

	// Looking straight down, the cloud's x axis points down the screen.
	v = View{ElevationDeg: 90}
	x, y = v.project([3]float64{7, 2, 3})
	assert.InDelta(t, 2.0, x, 1e-9)
	assert.InDelta(t, -7.0, y, 1e-9)
}

func TestPrincipalViewFallback(t *testing.T) {
	assert.Equal(t, DefaultView, PrincipalView(nil))
	assert.Equal(t, DefaultView, PrincipalView([][3]float64{{1, 2, 3}, {4, 5, 6}}))
}

func TestPrincipalViewFlatCloud(t *testing.T) {
	// Points spread in the xy plane: the least-variance direction is z, so
	// the view looks straight down (or up).
	rng := rand.New(rand.NewSource(3))
	points := make([][3]float64, 64)
	for i := range points {
		points[i] = [3]float64{rng.Float64(), rng.Float64(), 0}
	}
	view := PrincipalView(points)
	assert.InDelta(t, 90, math.Abs(view.ElevationDeg), 1e-3)
}

func TestWritePNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cloud.png")
	points := [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0.5, 0.5, 0.5}}
	require.NoError(t, WritePNG(path, points, DefaultView, color.RGBA{R: 31, G: 119, B: 180, A: 255}))

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())

	// A single point has no span, the range padding keeps the plot valid.
	require.NoError(t, WritePNG(filepath.Join(dir, "point.png"), points[:1], DefaultView, color.Black))

	require.Error(t, WritePNG(filepath.Join(dir, "empty.png"), nil, DefaultView, color.Black))
}
