package partae

import (
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/gomlx/pointae/experiments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceDataset yields a fixed sequence of cloud batches, restarting at
// Reset. Every Yield hands out a fresh tensor, the loop finalizes them.
type sliceDataset struct {
	name    string
	dims    []int
	batches [][]float32
	next    int
}

func newSliceDataset(name string, numBatches, batchSize, numPoints int, offset float32) *sliceDataset {
	ds := &sliceDataset{name: name, dims: []int{batchSize, numPoints, 3}}
	for b := range numBatches {
		flat := make([]float32, batchSize*numPoints*3)
		for i := range flat {
			flat[i] = offset + float32((b*31+i*7)%97)/97
		}
		ds.batches = append(ds.batches, flat)
	}
	return ds
}

func (ds *sliceDataset) Name() string { return ds.name }

func (ds *sliceDataset) Reset() { ds.next = 0 }

func (ds *sliceDataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if ds.next >= len(ds.batches) {
		return nil, nil, nil, io.EOF
	}
	flat := make([]float32, len(ds.batches[ds.next]))
	copy(flat, ds.batches[ds.next])
	ds.next++
	return ds, []*tensors.Tensor{tensors.FromFlatDataAndDimensions(flat, ds.dims...)}, nil, nil
}

type visuCall struct {
	epoch, valBatch                    int
	batchSize, numPoints, numPredicted int
}

// recordingVisualizer records VisualizeBatch calls instead of rendering.
type recordingVisualizer struct {
	calls []visuCall
}

func (r *recordingVisualizer) VisualizeBatch(epoch, valBatch int, clouds, predicted, losses *tensors.Tensor) error {
	r.calls = append(r.calls, visuCall{
		epoch:        epoch,
		valBatch:     valBatch,
		batchSize:    clouds.Shape().Dimensions[0],
		numPoints:    clouds.Shape().Dimensions[1],
		numPredicted: predicted.Shape().Dimensions[1],
	})
	return nil
}

func loopTestConfig(t *testing.T) *experiments.Config {
	return &experiments.Config{
		LogDir:             t.TempDir(),
		ModelVersion:       experiments.DefaultModelVersion,
		ExpSuffix:          "looptest",
		Seed:               42,
		NumPoint:           512,
		FeatDim:            8,
		Decoder:            experiments.DecoderFC,
		Loss:               experiments.LossChamfer,
		Epochs:             2,
		BatchSize:          1,
		LearningRate:       1e-3,
		LRDecayBy:          0.9,
		LRDecayEvery:       5000,
		ConsoleLogInterval: 1,
		CheckpointInterval: 1000,
		NumBatchEveryVisu:  1,
		NumEpochEveryVisu:  1,
	}
}

func TestLoopRun(t *testing.T) {
	if testing.Short() {
		t.Skip("full training loop in short mode")
	}
	cfg := loopTestConfig(t)
	const trainBatches, valBatches = 3, 2

	network, err := NewNetwork(cfg)
	require.NoError(t, err)
	ctx := context.New()
	SetupContext(ctx, cfg)
	handler, err := AttachCheckpoints(ctx, cfg)
	require.NoError(t, err)
	trainer := NewTrainer(testBackend(), ctx, network)
	board, err := NewBoard(cfg.ExpDir(), TrainSplit, ValSplit)
	require.NoError(t, err)
	visu := &recordingVisualizer{}
	var logBuf strings.Builder

	loop := &Loop{
		Config:      cfg,
		Trainer:     trainer,
		Checkpoints: handler,
		Board:       board,
		Log:         experiments.WriterSink{W: &logBuf},
		Visualizer:  visu,
	}
	trainDS := newSliceDataset("train", trainBatches, cfg.BatchSize, cfg.NumPoint, 0)
	valDS := newSliceDataset("val", valBatches, cfg.BatchSize, cfg.NumPoint, 0.25)
	require.NoError(t, loop.Run(trainDS, valDS, trainBatches, valBatches))
	require.NoError(t, board.Close())

	// Every training batch of both epochs ran.
	assert.Equal(t, int64(trainBatches*cfg.Epochs), trainer.GlobalStep())
	assert.Equal(t, cfg.Epochs-1, context.GetParamOr(ctx, ParamEpoch, -1))

	// Console: a preamble per epoch, a row per step of each split, the
	// first-batch checkpoint and the final one.
	out := logBuf.String()
	assert.Equal(t, cfg.Epochs, strings.Count(out, "training run "+cfg.ExpName()))
	assert.Equal(t, 6, strings.Count(out, "  train "))
	assert.Equal(t, 4, strings.Count(out, "    val "))
	assert.Equal(t, 1, strings.Count(out, "Saving checkpoint ...... "))
	assert.Equal(t, 1, strings.Count(out, "Saving final checkpoint ...... "))
	assert.Equal(t, 2, strings.Count(out, "DONE"))

	names, err := handler.ListCheckpoints()
	require.NoError(t, err)
	assert.Len(t, names, 2)

	// Board points: loss and learning rate per step; validation steps sit at
	// fractional positions between the training steps of their epoch.
	trainPoints, err := plots.LoadPoints(filepath.Join(cfg.ExpDir(), string(TrainSplit), plots.TrainingPlotFileName))
	require.NoError(t, err)
	require.Len(t, trainPoints, 2*trainBatches*cfg.Epochs)
	assert.Equal(t, 0.0, trainPoints[0].Step)
	valPoints, err := plots.LoadPoints(filepath.Join(cfg.ExpDir(), string(ValSplit), plots.TrainingPlotFileName))
	require.NoError(t, err)
	require.Len(t, valPoints, 2*valBatches*cfg.Epochs)
	assert.Equal(t, 0.5, valPoints[0].Step)
	assert.Equal(t, 2.0, valPoints[2].Step)
	assert.Equal(t, 3.5, valPoints[4].Step)
	assert.Equal(t, 5.0, valPoints[6].Step)

	// The first validation batch of each epoch was visualized.
	require.Len(t, visu.calls, cfg.Epochs)
	for i, call := range visu.calls {
		assert.Equal(t, i, call.epoch)
		assert.Equal(t, 0, call.valBatch)
		assert.Equal(t, cfg.BatchSize, call.batchSize)
		assert.Equal(t, cfg.NumPoint, call.numPoints)
		assert.Equal(t, cfg.NumPoint, call.numPredicted)
	}
}

func TestLoopDatasetRunsOut(t *testing.T) {
	if testing.Short() {
		t.Skip("full training loop in short mode")
	}
	cfg := loopTestConfig(t)
	cfg.Epochs = 1
	cfg.NoVisu = true
	cfg.NoConsoleLog = true

	network, err := NewNetwork(cfg)
	require.NoError(t, err)
	ctx := context.New()
	SetupContext(ctx, cfg)
	trainer := NewTrainer(testBackend(), ctx, network)
	loop := &Loop{Config: cfg, Trainer: trainer}

	// The loop is told 3 batches per epoch, the dataset only has 2.
	trainDS := newSliceDataset("train", 2, cfg.BatchSize, cfg.NumPoint, 0)
	err = loop.Run(trainDS, nil, 3, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ran out")
}

func TestLoopNoTrainBatches(t *testing.T) {
	cfg := loopTestConfig(t)
	loop := &Loop{Config: cfg}
	err := loop.Run(nil, nil, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one batch")
}
