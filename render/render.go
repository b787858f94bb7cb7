// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package render draws 3D point clouds: orthographic PNG scatters for
// quick inspection, an interactive HTML gallery and PNG contact sheets for
// side-by-side comparison of inputs and reconstructions.
package render

import (
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// View is an orthographic camera given by the spherical angles of the
// viewing direction, in degrees.
type View struct {
	AzimuthDeg   float64
	ElevationDeg float64
}

// DefaultView looks at the cloud the way matplotlib's 3D axes do by
// default, so renders are comparable with ones produced elsewhere.
var DefaultView = View{AzimuthDeg: -60, ElevationDeg: 30}

// project maps a 3D point to screen coordinates: x to the right, y up.
func (v View) project(p [3]float64) (x, y float64) {
	az := v.AzimuthDeg * math.Pi / 180
	el := v.ElevationDeg * math.Pi / 180
	x = -p[0]*math.Sin(az) + p[1]*math.Cos(az)
	y = -p[0]*math.Sin(el)*math.Cos(az) - p[1]*math.Sin(el)*math.Sin(az) + p[2]*math.Cos(el)
	return
}

// PrincipalView picks the view along the cloud's least-variance direction,
// so the projection shows the widest spread of the points. Degenerate
// clouds fall back to DefaultView.
func PrincipalView(points [][3]float64) View {
	n := len(points)
	if n < 3 {
		return DefaultView
	}
	var mean [3]float64
	for _, p := range points {
		for i := range 3 {
			mean[i] += p[i]
		}
	}
	for i := range 3 {
		mean[i] /= float64(n)
	}
	centered := mat.NewDense(n, 3, nil)
	for r, p := range points {
		for i := range 3 {
			centered.Set(r, i, p[i]-mean[i])
		}
	}
	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThinV) {
		return DefaultView
	}
	var v mat.Dense
	svd.VTo(&v)
	d := [3]float64{v.At(0, 2), v.At(1, 2), v.At(2, 2)}
	norm := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
	if norm == 0 {
		return DefaultView
	}
	return View{
		AzimuthDeg:   math.Atan2(d[1], d[0]) * 180 / math.Pi,
		ElevationDeg: math.Asin(d[2]/norm) * 180 / math.Pi,
	}
}

// PNGSize is the width and height of the renders written by WritePNG.
const PNGSize = 4 * vg.Inch

// WritePNG renders the cloud as a square PNG scatter under the given view,
// all points in one color on a plain background, axes hidden. The plot
// range is padded and kept square, so the cloud is not distorted.
func WritePNG(path string, points [][3]float64, view View, c color.Color) error {
	if len(points) == 0 {
		return errors.Errorf("cannot render an empty point cloud to %q", path)
	}
	xys := make(plotter.XYs, len(points))
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, pt := range points {
		x, y := view.project(pt)
		xys[i] = plotter.XY{X: x, Y: y}
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	p := plot.New()
	p.HideAxes()
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return errors.Wrapf(err, "building scatter for %q", path)
	}
	scatter.GlyphStyle.Color = c
	scatter.GlyphStyle.Radius = vg.Points(1)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(scatter)

	// Square range centered on the cloud.
	halfSpan := math.Max(maxX-minX, maxY-minY) / 2
	if halfSpan == 0 {
		halfSpan = 1
	}
	halfSpan *= 1.05
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	p.X.Min, p.X.Max = cx-halfSpan, cx+halfSpan
	p.Y.Min, p.Y.Max = cy-halfSpan, cy+halfSpan

	if err := p.Save(PNGSize, PNGSize, path); err != nil {
		return errors.Wrapf(err, "saving render to %q", path)
	}
	return nil
}
