// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partae

import (
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/pointae/experiments"
	"github.com/pkg/errors"
)

// ParamEpoch is the context parameter holding the last epoch that started
// training. It is saved along with checkpoints, so tooling can report how far
// a run got.
const ParamEpoch = "epoch"

// AttachCheckpoints wires checkpoint saving (and optionally warm-starting)
// into ctx.
//
// If cfg.Checkpoint is set, the latest checkpoint under that directory is
// loaded first: variables (weights, optimizer slots, counters) are served
// from it, while its hyperparameters are ignored so the current run's
// settings win.
//
// The returned handler saves into cfg.CheckpointsDir() and keeps every
// checkpoint it writes.
func AttachCheckpoints(ctx *context.Context, cfg *experiments.Config) (*checkpoints.Handler, error) {
	if cfg.Checkpoint != "" {
		_, err := checkpoints.Load(ctx).Dir(cfg.Checkpoint).ExcludeAllParams().Done()
		if err != nil {
			return nil, errors.WithMessagef(err, "loading initial weights from %q", cfg.Checkpoint)
		}
	}
	handler, err := checkpoints.Build(ctx).Dir(cfg.CheckpointsDir()).Keep(-1).Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "creating checkpoints in %q", cfg.CheckpointsDir())
	}
	return handler, nil
}
