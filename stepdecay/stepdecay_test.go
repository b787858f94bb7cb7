// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package stepdecay

import (
	"sync"
	"testing"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/backends/simplego"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
)

var (
	testBackendOnce sync.Once
	testBackendRef  backends.Backend
)

func testBackend() backends.Backend {
	testBackendOnce.Do(func() {
		testBackendRef = simplego.New("")
	})
	return testBackendRef
}

func TestAt(t *testing.T) {
	assert.Equal(t, 1e-3, At(1e-3, 0.9, 5000, 0))
	assert.Equal(t, 1e-3, At(1e-3, 0.9, 5000, 4999))
	assert.InDelta(t, 0.9e-3, At(1e-3, 0.9, 5000, 5000), 1e-12)
	assert.InDelta(t, 0.81e-3, At(1e-3, 0.9, 5000, 10000), 1e-12)

	// DecayBy 1 or DecaySteps 0 disable the schedule.
	assert.Equal(t, 1e-3, At(1e-3, 1, 5000, 10000))
	assert.Equal(t, 1e-3, At(1e-3, 0.9, 0, 10000))
}

func TestScheduleGraph(t *testing.T) {
	ctx := context.New()
	ctx.SetParam(optimizers.ParamLearningRate, 1e-3)
	ctx.SetParam(ParamDecayBy, 0.5)
	ctx.SetParam(ParamDecaySteps, 2)

	exec := context.MustNewExec(testBackend(), ctx, func(ctx *context.Context, g *Graph) *Node {
		ctx.SetTraining(g, true)
		New(ctx, g, dtypes.Float32).FromContext().Done()
		return optimizers.LearningRateVar(ctx, dtypes.Float32, 1e-3).ValueGraph(g)
	})

	// Each execution is one training step. The schedule is zero-based, so
	// with DecaySteps=2 the rate halves on the third and fifth steps.
	want := []float64{1e-3, 1e-3, 0.5e-3, 0.5e-3, 0.25e-3}
	for step, w := range want {
		got := tensors.ToScalar[float32](exec.MustExec()[0])
		assert.InDelta(t, w, got, 1e-8, "step %d", step)
		assert.InDelta(t, At(1e-3, 0.5, 2, int64(step)), got, 1e-8, "step %d", step)
	}
}

func TestScheduleInferenceNoOp(t *testing.T) {
	ctx := context.New()
	ctx.SetParam(optimizers.ParamLearningRate, 1e-3)
	ctx.SetParam(ParamDecayBy, 0.5)
	ctx.SetParam(ParamDecaySteps, 2)

	exec := context.MustNewExec(testBackend(), ctx, func(ctx *context.Context, g *Graph) *Node {
		New(ctx, g, dtypes.Float32).FromContext().Done()
		return optimizers.LearningRateVar(ctx, dtypes.Float32, 1e-3).ValueGraph(g)
	})

	// Outside of training the schedule leaves the learning rate alone.
	for step := 0; step < 3; step++ {
		got := tensors.ToScalar[float32](exec.MustExec()[0])
		assert.InDelta(t, 1e-3, got, 1e-8, "step %d", step)
	}
}
