package partae

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpochVisualizer(t *testing.T) {
	cfg := loopTestConfig(t)
	visu := NewEpochVisualizer(cfg, []string{"chair_back", "chair_seat"}, nil)

	const batchSize, numPoints, numPredicted = 2, 16, 8
	clouds := syntheticClouds(batchSize, numPoints)
	predicted := syntheticClouds(batchSize, numPredicted)
	losses := tensors.FromFlatDataAndDimensions([]float32{0.1234567, 0.25}, batchSize)

	require.NoError(t, visu.VisualizeBatch(0, 0, clouds, predicted, losses))

	// With NumBatchEveryVisu of 1 a single batch completes the epoch:
	// renders, dumps and info per sample, plus the gallery and the sheet.
	epochDir := filepath.Join(cfg.VisuDir(), "epoch-0000")
	for _, rel := range []string{
		"input_pcs/data-000.png", "input_pcs/data-000.npy",
		"input_pcs/data-001.png", "input_pcs/data-001.npy",
		"output_pcs/data-000.png", "output_pcs/data-000.npy",
		"output_pcs/data-001.png", "output_pcs/data-001.npy",
		"info/data-000.txt", "info/data-001.txt",
		"gallery.html", "contact_sheet.png",
	} {
		_, err := os.Stat(filepath.Join(epochDir, rel))
		assert.NoError(t, err, rel)
	}

	info, err := os.ReadFile(filepath.Join(epochDir, "info", "data-000.txt"))
	require.NoError(t, err)
	assert.Equal(t, "name: chair_back\nrecon_loss: 0.123457\n", string(info))
	info, err = os.ReadFile(filepath.Join(epochDir, "info", "data-001.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "name: chair_seat")

	// Two samples produce four renders, fitting one contact sheet row.
	sheet, err := imaging.Open(filepath.Join(epochDir, "contact_sheet.png"))
	require.NoError(t, err)
	assert.Equal(t, sheetColumns*sheetCellSize, sheet.Bounds().Dx())
	assert.Equal(t, sheetCellSize, sheet.Bounds().Dy())
}

func TestEpochVisualizerMultiBatch(t *testing.T) {
	cfg := loopTestConfig(t)
	cfg.NumBatchEveryVisu = 2
	visu := NewEpochVisualizer(cfg, nil, nil)

	const batchSize, numPoints = 1, 12
	losses := tensors.FromFlatDataAndDimensions([]float32{0.5}, batchSize)
	clouds := syntheticClouds(batchSize, numPoints)

	epochDir := filepath.Join(cfg.VisuDir(), "epoch-0010")
	require.NoError(t, visu.VisualizeBatch(10, 0, clouds, clouds, losses))

	// The gallery waits for the last visualized batch of the epoch.
	_, err := os.Stat(filepath.Join(epochDir, "gallery.html"))
	require.True(t, os.IsNotExist(err))

	require.NoError(t, visu.VisualizeBatch(10, 1, clouds, clouds, losses))
	_, err = os.Stat(filepath.Join(epochDir, "gallery.html"))
	require.NoError(t, err)

	// Sample numbering continues across batches, names fall back to the
	// sample index when no name list is given.
	_, err = os.Stat(filepath.Join(epochDir, "input_pcs", "data-001.npy"))
	require.NoError(t, err)
	info, err := os.ReadFile(filepath.Join(epochDir, "info", "data-001.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "name: sample-001")
}
