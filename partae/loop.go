// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partae

import (
	"io"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/pointae/experiments"
	"github.com/pkg/errors"
)

// Visualizer renders reconstructed validation batches. VisualizeBatch
// receives the validation clouds of one batch, their reconstruction and the
// per-example reconstruction losses.
type Visualizer interface {
	VisualizeBatch(epoch, valBatch int, clouds, predicted, losses *tensors.Tensor) error
}

// Loop drives the training of one experiment: epochs of training batches
// with validation batches interleaved so both splits advance through their
// epoch at the same fraction, plus console rows, board points, checkpoints
// on a step cadence and periodic visualization.
//
// Checkpoints, Board, Log and Visualizer may each be nil, disabling the
// corresponding output.
type Loop struct {
	Config  *experiments.Config
	Trainer *Trainer

	Checkpoints *checkpoints.Handler
	Board       *Board
	Log         experiments.Sink

	// Visualizer receives the first NumBatchEveryVisu validation batches
	// of every NumEpochEveryVisu-th epoch.
	Visualizer Visualizer
}

// Run trains for Config.Epochs epochs. The datasets must yield batches of
// clouds shaped (batchSize, numPoint, 3), trainBatches respectively
// valBatches of them per epoch. A valBatches of zero skips validation.
func (l *Loop) Run(trainDS, valDS train.Dataset, trainBatches, valBatches int) error {
	cfg := l.Config
	if trainBatches <= 0 {
		return errors.Errorf("training needs at least one batch per epoch, got %d", trainBatches)
	}
	interleave := newValInterleave(trainBatches, valBatches)
	ckpt := &checkpointPolicy{interval: int64(cfg.CheckpointInterval)}
	gate := newConsoleGate(float64(cfg.ConsoleLogInterval))
	start := time.Now()

	for epoch := range cfg.Epochs {
		l.Trainer.Context().SetParam(ParamEpoch, epoch)
		if !cfg.NoConsoleLog {
			experiments.Logf(l.Log, "training run %s", cfg.ExpName())
			experiments.Logf(l.Log, "%s", consoleHeader())
		}
		trainDS.Reset()
		if valBatches > 0 {
			valDS.Reset()
		}
		interleave.reset()
		visuNow := l.Visualizer != nil && !cfg.NoVisu && visuEpoch(epoch, cfg.NumEpochEveryVisu)
		valBatch := 0

		for batch := range trainBatches {
			clouds, err := nextBatch(trainDS, TrainSplit, epoch, batch)
			if err != nil {
				return err
			}
			loss, lr, err := l.Trainer.TrainStep(clouds)
			clouds.MustFinalizeAll()
			if err != nil {
				return errors.WithMessagef(err, "train step failed at epoch %d batch %d", epoch, batch)
			}
			step := float64(l.Trainer.GlobalStep() - 1)
			if !cfg.NoConsoleLog && gate.shouldLog(TrainSplit, step) {
				gate.markLogged(TrainSplit, step)
				experiments.Logf(l.Log, "%s",
					consoleRow(time.Since(start), epoch, cfg.Epochs, TrainSplit, batch, trainBatches, lr, loss))
			}
			if l.Board != nil {
				l.Board.Log(TrainSplit, step, loss, lr)
			}
			if l.Checkpoints != nil && ckpt.shouldSave(int64(step)) {
				experiments.Logf(l.Log, "Saving checkpoint ...... ")
				if err := l.Checkpoints.Save(); err != nil {
					return errors.WithMessage(err, "saving checkpoint")
				}
				experiments.Logf(l.Log, "DONE")
				ckpt.markSaved(int64(step))
			}

			for range interleave.take(batch) {
				valClouds, err := nextBatch(valDS, ValSplit, epoch, valBatch)
				if err != nil {
					return err
				}
				valLoss, err := l.Trainer.EvalStep(valClouds)
				if err != nil {
					valClouds.MustFinalizeAll()
					return errors.WithMessagef(err, "validation step failed at epoch %d batch %d", epoch, valBatch)
				}
				valFraction := float64(valBatch+1) / float64(valBatches)
				valStep := (float64(epoch)+valFraction)*float64(trainBatches) - 1
				if !cfg.NoConsoleLog && gate.shouldLog(ValSplit, valStep) {
					gate.markLogged(ValSplit, valStep)
					experiments.Logf(l.Log, "%s",
						consoleRow(time.Since(start), epoch, cfg.Epochs, ValSplit, valBatch, valBatches, lr, valLoss))
				}
				if l.Board != nil {
					l.Board.Log(ValSplit, valStep, valLoss, lr)
				}
				if visuNow && valBatch < cfg.NumBatchEveryVisu {
					if err := l.visualize(epoch, valBatch, valClouds); err != nil {
						valClouds.MustFinalizeAll()
						return err
					}
				}
				valClouds.MustFinalizeAll()
				valBatch++
			}
		}
	}

	if l.Checkpoints != nil {
		experiments.Logf(l.Log, "Saving final checkpoint ...... ")
		if err := l.Checkpoints.Save(); err != nil {
			return errors.WithMessage(err, "saving final checkpoint")
		}
		experiments.Logf(l.Log, "DONE")
	}
	return nil
}

func (l *Loop) visualize(epoch, valBatch int, clouds *tensors.Tensor) error {
	predicted, losses, err := l.Trainer.Reconstruct(clouds)
	if err != nil {
		return errors.WithMessagef(err, "reconstructing validation batch %d for visualization", valBatch)
	}
	err = l.Visualizer.VisualizeBatch(epoch, valBatch, clouds, predicted, losses)
	predicted.MustFinalizeAll()
	losses.MustFinalizeAll()
	return err
}

// nextBatch yields one batch of clouds. The loop sizes its epochs from the
// corpus, so io.EOF before the accounted number of batches is an error.
func nextBatch(ds train.Dataset, split Split, epoch, batch int) (*tensors.Tensor, error) {
	_, inputs, _, err := ds.Yield()
	if err == io.EOF {
		return nil, errors.Errorf("%s dataset ran out at epoch %d batch %d", split, epoch, batch)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %s batch %d of epoch %d", split, batch, epoch)
	}
	if len(inputs) == 0 {
		return nil, errors.Errorf("%s dataset yielded no inputs at epoch %d batch %d", split, epoch, batch)
	}
	return inputs[0], nil
}
