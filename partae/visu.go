// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partae

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/numpy"
	"github.com/gomlx/pointae/experiments"
	"github.com/gomlx/pointae/render"
	"github.com/pkg/errors"
)

// Matplotlib's first and fourth palette colors, so renders look like the
// usual notebook plots.
var (
	inputColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	outputColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

const (
	sheetColumns  = 8
	sheetCellSize = 320
)

// EpochVisualizer writes the periodic validation visualizations of a run
// under VisuDir()/epoch-NNNN: per sample a PNG render and a .npy dump of
// the input and the reconstruction, an info text with the reconstruction
// loss, and, after the last visualized batch of the epoch, an interactive
// HTML gallery and a PNG contact sheet.
type EpochVisualizer struct {
	cfg *experiments.Config
	// names of the validation shapes, aligned with the unshuffled
	// validation batches.
	names []string
	sink  experiments.Sink

	items      []render.Item
	sheetPaths []string
}

// NewEpochVisualizer builds the visualizer. valNames are the validation
// corpus file names in dataset order; sink receives progress messages.
func NewEpochVisualizer(cfg *experiments.Config, valNames []string, sink experiments.Sink) *EpochVisualizer {
	return &EpochVisualizer{cfg: cfg, names: valNames, sink: sink}
}

func (e *EpochVisualizer) epochDir(epoch int) string {
	return filepath.Join(e.cfg.VisuDir(), fmt.Sprintf("epoch-%04d", epoch))
}

// sampleName is the shape behind one global validation sample index.
func (e *EpochVisualizer) sampleName(global int) string {
	if global < len(e.names) {
		return e.names[global]
	}
	return fmt.Sprintf("sample-%03d", global)
}

// VisualizeBatch implements Visualizer. It expects the batches of one epoch
// in order, starting at valBatch 0, and triggers the gallery and contact
// sheet after batch NumBatchEveryVisu-1.
func (e *EpochVisualizer) VisualizeBatch(epoch, valBatch int, clouds, predicted, losses *tensors.Tensor) error {
	outDir := e.epochDir(epoch)
	inputDir := filepath.Join(outDir, "input_pcs")
	outputDir := filepath.Join(outDir, "output_pcs")
	infoDir := filepath.Join(outDir, "info")
	if valBatch == 0 {
		for _, dir := range []string{outDir, inputDir, outputDir, infoDir} {
			if err := os.MkdirAll(dir, 0777); err != nil {
				return errors.Wrapf(err, "creating visualization directory %q", dir)
			}
		}
		e.items = e.items[:0]
		e.sheetPaths = e.sheetPaths[:0]
	}
	experiments.Logf(e.sink, "Visualizing ...")

	batchSize := clouds.Shape().Dimensions[0]
	numPoints := clouds.Shape().Dimensions[1]
	numPredicted := predicted.Shape().Dimensions[1]
	cloudsFlat := tensors.MustCopyFlatData[float32](clouds)
	predictedFlat := tensors.MustCopyFlatData[float32](predicted)
	lossesFlat := tensors.MustCopyFlatData[float32](losses)

	for i := range batchSize {
		global := valBatch*batchSize + i
		base := fmt.Sprintf("data-%03d", global)
		name := e.sampleName(global)
		loss := float64(lossesFlat[i])

		input := samplePoints(cloudsFlat, i, numPoints)
		output := samplePoints(predictedFlat, i, numPredicted)

		// The input's principal view, shared with the reconstruction so
		// the renders line up.
		view := render.PrincipalView(input)
		inputPNG := filepath.Join(inputDir, base+".png")
		outputPNG := filepath.Join(outputDir, base+".png")
		if err := render.WritePNG(inputPNG, input, view, inputColor); err != nil {
			return err
		}
		if err := render.WritePNG(outputPNG, output, view, outputColor); err != nil {
			return err
		}
		if err := e.writeNpy(filepath.Join(inputDir, base+".npy"), cloudsFlat, i, numPoints); err != nil {
			return err
		}
		if err := e.writeNpy(filepath.Join(outputDir, base+".npy"), predictedFlat, i, numPredicted); err != nil {
			return err
		}

		info := fmt.Sprintf("name: %s\nrecon_loss: %.6f\n", name, loss)
		if err := os.WriteFile(filepath.Join(infoDir, base+".txt"), []byte(info), 0644); err != nil {
			return errors.Wrapf(err, "writing info for %q", base)
		}

		e.items = append(e.items, render.Item{Name: name, Input: input, Output: output, Loss: loss})
		e.sheetPaths = append(e.sheetPaths, inputPNG, outputPNG)
	}

	if valBatch == e.cfg.NumBatchEveryVisu-1 {
		return e.finishEpoch(epoch, outDir)
	}
	return nil
}

func (e *EpochVisualizer) finishEpoch(epoch int, outDir string) error {
	experiments.Logf(e.sink, "Generating html visualization ...")
	title := fmt.Sprintf("%s epoch %d", e.cfg.ExpName(), epoch)
	if err := render.WriteGalleryFile(filepath.Join(outDir, "gallery.html"), title, e.items); err != nil {
		return err
	}
	if err := render.ContactSheet(filepath.Join(outDir, "contact_sheet.png"), e.sheetPaths, sheetColumns, sheetCellSize); err != nil {
		return err
	}
	experiments.Logf(e.sink, "DONE")
	return nil
}

func (e *EpochVisualizer) writeNpy(path string, flat []float32, sample, numPoints int) error {
	t := tensors.FromFlatDataAndDimensions(flat[sample*numPoints*3:(sample+1)*numPoints*3], numPoints, 3)
	err := numpy.ToNpyFile(t, path)
	t.MustFinalizeAll()
	if err != nil {
		return errors.Wrapf(err, "writing %q", path)
	}
	return nil
}

// samplePoints unpacks one cloud of a flattened (batch, numPoints, 3)
// buffer.
func samplePoints(flat []float32, sample, numPoints int) [][3]float64 {
	points := make([][3]float64, numPoints)
	base := sample * numPoints * 3
	for p := range numPoints {
		points[p] = [3]float64{
			float64(flat[base+p*3]),
			float64(flat[base+p*3+1]),
			float64(flat[base+p*3+2]),
		}
	}
	return points
}
