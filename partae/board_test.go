package partae

import (
	"path/filepath"
	"testing"

	"github.com/gomlx/gomlx/ui/plots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoard(t *testing.T) {
	expDir := t.TempDir()
	board, err := NewBoard(expDir, TrainSplit, ValSplit)
	require.NoError(t, err)

	board.Log(TrainSplit, 0, 1.5, 1e-3)
	board.Log(TrainSplit, 1, 1.25, 1e-3)
	board.Log(ValSplit, 0.85, 2.5, 1e-3)
	require.NoError(t, board.Close())

	trainPoints, err := plots.LoadPoints(filepath.Join(expDir, string(TrainSplit), plots.TrainingPlotFileName))
	require.NoError(t, err)
	require.Len(t, trainPoints, 4)
	assert.Equal(t, "loss", trainPoints[0].Short)
	assert.Equal(t, "loss", trainPoints[0].MetricType)
	assert.Equal(t, 0.0, trainPoints[0].Step)
	assert.Equal(t, 1.5, trainPoints[0].Value)
	assert.Equal(t, "lr", trainPoints[1].Short)
	assert.Equal(t, "learning_rate", trainPoints[1].MetricType)
	assert.Equal(t, 1.0, trainPoints[2].Step)

	// Validation points keep their fractional position between training
	// steps.
	valPoints, err := plots.LoadPoints(filepath.Join(expDir, string(ValSplit), plots.TrainingPlotFileName))
	require.NoError(t, err)
	require.Len(t, valPoints, 2)
	assert.Equal(t, 0.85, valPoints[0].Step)
	assert.Equal(t, 2.5, valPoints[0].Value)
}

func TestBoardUnknownSplit(t *testing.T) {
	board, err := NewBoard(t.TempDir(), TrainSplit)
	require.NoError(t, err)

	// Logging a split the board was not created for is a no-op.
	board.Log(ValSplit, 0, 1, 1)
	require.NoError(t, board.Close())
}
