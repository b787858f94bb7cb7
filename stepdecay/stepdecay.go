// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package stepdecay implements a stepped exponential decay schedule for the
// learning rate: every fixed number of optimizer steps the learning rate is
// multiplied by a constant factor. See New for usage.
package stepdecay

import (
	"math"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gopjrt/dtypes"
)

var (
	// ParamDecayBy is the multiplicative factor applied to the learning
	// rate at each decay boundary, in (0, 1]. A value of 1 disables the
	// schedule.
	ParamDecayBy = "step_decay_by"

	// ParamDecaySteps is the number of training steps between decay
	// boundaries. A value of 0 (the default) disables the schedule.
	ParamDecaySteps = "step_decay_steps"
)

// Scope used for the schedule's own step counter, under the optimizers
// scope.
const Scope = "step_decay"

// Config of the step decay schedule.
// New creates it and once configured, call Config.Done to add it into the
// computation graph.
type Config struct {
	graph        *Graph
	ctx          *context.Context
	dtype        dtypes.DType
	learningRate float64
	decayBy      float64
	decaySteps   int
}

// New creates a configuration for a stepped exponential decay of the
// learning rate: after every DecaySteps training steps the rate is
// multiplied by DecayBy, so at step s the rate is
// base*DecayBy^floor(s/DecaySteps).
//
// Call it at the start of the model graph, before the optimizer update is
// built, so the optimizer sees the decayed rate:
//
//	func modelGraph(ctx *context.Context, inputs []*Node) *Node {
//		g := inputs[0].Graph()
//		stepdecay.New(ctx, g, dtypes.Float32).FromContext().Done()
//		...
//	}
//
// It only has an effect during training, and keeps its own step counter, so
// it can be combined with optimizers that also count steps.
func New(ctx *context.Context, graph *Graph, dtype dtypes.DType) *Config {
	return &Config{
		ctx:     ctx,
		graph:   graph,
		dtype:   dtype,
		decayBy: 1,
	}
}

// FromContext configures the decay from the context parameters ParamDecayBy
// and ParamDecaySteps.
func (opt *Config) FromContext() *Config {
	opt.decayBy = context.GetParamOr(opt.ctx, ParamDecayBy, 1.0)
	opt.decaySteps = context.GetParamOr(opt.ctx, ParamDecaySteps, 0)
	opt.learningRate = context.GetParamOr(opt.ctx, optimizers.ParamLearningRate, 0.0)
	return opt
}

// DecayBy sets the multiplicative factor, in (0, 1]. 1 disables the
// schedule.
func (opt *Config) DecayBy(factor float64) *Config {
	opt.decayBy = factor
	return opt
}

// DecaySteps sets the number of training steps between decays. 0 disables
// the schedule.
func (opt *Config) DecaySteps(steps int) *Config {
	opt.decaySteps = steps
	return opt
}

// LearningRate sets the base rate at step 0.
// If not given, it is read from the context params (keyed by
// optimizers.ParamLearningRate).
func (opt *Config) LearningRate(learningRate float64) *Config {
	opt.learningRate = learningRate
	return opt
}

// Done finalizes the configuration and generates the computation graph that
// keeps the learning rate variable up to date.
func (opt *Config) Done() {
	ctx := opt.ctx.Checked(false)
	graph := opt.graph

	if !ctx.IsTraining(graph) || opt.decaySteps == 0 || opt.decayBy == 1 {
		return
	}
	if opt.decayBy <= 0 || opt.decayBy > 1 {
		exceptions.Panicf("step decay factor must be in (0, 1], got %g", opt.decayBy)
	}
	lrValue := opt.learningRate
	if lrValue == 0 {
		lrValue = context.GetParamOr(opt.ctx, optimizers.ParamLearningRate, 0.0)
		if lrValue == 0 {
			exceptions.Panicf("learning rate not configured for stepdecay.New and also "+
				"not set in the context as parameter %q", optimizers.ParamLearningRate)
		}
	}

	// The schedule keeps its own step counter, starting at 1.
	step := optimizers.IncrementGlobalStepGraph(ctx.In(optimizers.Scope).In(Scope), graph, opt.dtype)
	step = MinusOne(step)
	decays := Floor(DivScalar(step, float64(opt.decaySteps)))
	lr := MulScalar(Exp(MulScalar(decays, math.Log(opt.decayBy))), lrValue)

	lrVar := optimizers.LearningRateVarWithValue(ctx, opt.dtype, lrValue)
	lrVar.SetValueGraph(lr)
}

// At returns the scheduled learning rate at the given zero-based training
// step, the same value the graph produces.
func At(baseRate, decayBy float64, decaySteps int, step int64) float64 {
	if decaySteps == 0 || decayBy == 1 {
		return baseRate
	}
	return baseRate * math.Pow(decayBy, float64(step/int64(decaySteps)))
}
