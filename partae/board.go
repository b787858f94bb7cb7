// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partae

import (
	"os"
	"path/filepath"

	"github.com/gomlx/gomlx/ui/plots"
	"github.com/pkg/errors"
)

// Board records per-step scalars of each split as plot points, one JSONL
// file per split under the experiment directory, the format read by the
// plots package and the checkpoint inspection tools.
type Board struct {
	writers map[Split]chan<- plots.Point
	reports map[Split]<-chan error
}

// NewBoard creates the per-split point files under expDir.
func NewBoard(expDir string, splits ...Split) (*Board, error) {
	b := &Board{
		writers: make(map[Split]chan<- plots.Point),
		reports: make(map[Split]<-chan error),
	}
	for _, split := range splits {
		dir := filepath.Join(expDir, string(split))
		if err := os.MkdirAll(dir, 0777); err != nil {
			return nil, errors.Wrapf(err, "creating board directory for split %q", split)
		}
		writer, report := plots.CreatePointsWriter(filepath.Join(dir, plots.TrainingPlotFileName))
		b.writers[split] = writer
		b.reports[split] = report
	}
	return b, nil
}

// Log records the loss and learning rate of one step. Step is a float so
// validation points can sit between training steps on the shared axis.
func (b *Board) Log(split Split, step float64, loss, learningRate float32) {
	writer, ok := b.writers[split]
	if !ok {
		return
	}
	writer <- plots.Point{MetricName: "Total Loss", Short: "loss", MetricType: "loss", Step: step, Value: float64(loss)}
	writer <- plots.Point{MetricName: "Learning Rate", Short: "lr", MetricType: "learning_rate", Step: step, Value: float64(learningRate)}
}

// Close flushes the point files and returns the first write error, if any.
func (b *Board) Close() error {
	var firstErr error
	for split, writer := range b.writers {
		close(writer)
		if err := <-b.reports[split]; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
