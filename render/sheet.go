// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ContactSheet composites the images into one PNG grid with the given
// number of columns, row by row in the order given. Each image is fit into
// a square cell of cellSize pixels, keeping its aspect ratio.
func ContactSheet(path string, imagePaths []string, columns, cellSize int) error {
	if len(imagePaths) == 0 {
		return errors.Errorf("contact sheet %q needs at least one image", path)
	}
	if columns <= 0 || cellSize <= 0 {
		return errors.Errorf("contact sheet %q needs positive columns and cell size, got %d and %d",
			path, columns, cellSize)
	}
	rows := (len(imagePaths) + columns - 1) / columns
	sheet := imaging.New(columns*cellSize, rows*cellSize, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	for i, imgPath := range imagePaths {
		img, err := imaging.Open(imgPath)
		if err != nil {
			return errors.Wrapf(err, "opening %q for the contact sheet", imgPath)
		}
		cell := imaging.Fit(img, cellSize, cellSize, imaging.Lanczos)
		x := (i%columns)*cellSize + (cellSize-cell.Bounds().Dx())/2
		y := (i/columns)*cellSize + (cellSize-cell.Bounds().Dy())/2
		sheet = imaging.Paste(sheet, cell, image.Pt(x, y))
	}
	if err := imaging.Save(sheet, path); err != nil {
		return errors.Wrapf(err, "saving contact sheet to %q", path)
	}
	return nil
}
