// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partae

import (
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/pointae/experiments"
	"github.com/gomlx/pointae/stepdecay"
)

// SetupContext primes the context with the hyperparameters the optimizer
// and the learning rate schedule read, and seeds the random state.
func SetupContext(ctx *context.Context, cfg *experiments.Config) {
	ctx.RngStateFromSeed(cfg.Seed)
	ctx.SetParam(optimizers.ParamOptimizer, "adamw")
	ctx.SetParam(optimizers.ParamLearningRate, cfg.LearningRate)
	ctx.SetParam(optimizers.ParamAdamWeightDecay, cfg.WeightDecay)
	ctx.SetParam(stepdecay.ParamDecayBy, cfg.LRDecayBy)
	ctx.SetParam(stepdecay.ParamDecaySteps, cfg.LRDecayEvery)
}

// Trainer compiles and runs the three programs of an experiment: the
// optimization step, the evaluation step and the reconstruction used for
// visualization. All three share the context, so they see the same model
// variables.
type Trainer struct {
	ctx     *context.Context
	network *Network

	optimizer optimizers.Interface

	trainExec, evalExec, reconExec *context.Exec
}

// NewTrainer builds the trainer for the network. The context is switched to
// unchecked variable access, the eval and reconstruction programs reuse the
// variables the train program creates.
func NewTrainer(backend backends.Backend, ctx *context.Context, network *Network) *Trainer {
	ctx = ctx.Checked(false)
	t := &Trainer{
		ctx:       ctx,
		network:   network,
		optimizer: optimizers.FromContext(ctx),
	}
	t.trainExec = context.MustNewExec(backend, ctx, t.trainStepGraph)
	t.evalExec = context.MustNewExec(backend, ctx, t.evalStepGraph)
	t.reconExec = context.MustNewExec(backend, ctx, t.reconStepGraph)
	return t
}

// Context in use by the trainer's programs.
func (t *Trainer) Context() *context.Context { return t.ctx }

// GlobalStep is the number of optimization steps taken so far. It survives
// checkpoint save and restore.
func (t *Trainer) GlobalStep() int64 {
	return optimizers.GetGlobalStep(t.ctx)
}

func (t *Trainer) trainStepGraph(ctx *context.Context, clouds *Node) (loss, learningRate *Node) {
	g := clouds.Graph()
	ctx.SetTraining(g, true)
	stepdecay.New(ctx, g, dtypes.Float32).FromContext().Done()
	loss = t.network.TotalLossGraph(ctx, clouds)
	t.optimizer.UpdateGraph(ctx, g, loss)
	base := context.GetParamOr(ctx, optimizers.ParamLearningRate, 0.0)
	learningRate = optimizers.LearningRateVar(ctx, dtypes.Float32, base).ValueGraph(g)
	return
}

func (t *Trainer) evalStepGraph(ctx *context.Context, clouds *Node) *Node {
	ctx.SetTraining(clouds.Graph(), false)
	return t.network.TotalLossGraph(ctx, clouds)
}

func (t *Trainer) reconStepGraph(ctx *context.Context, clouds *Node) (predicted, losses *Node) {
	ctx.SetTraining(clouds.Graph(), false)
	predicted, _ = t.network.ForwardGraph(ctx, clouds)
	losses = t.network.ReconLossGraph(predicted, clouds)
	return
}

// TrainStep runs one optimization step on the batch of clouds, shaped
// (batch, numPoints, 3). It returns the batch loss and the learning rate
// the step used.
func (t *Trainer) TrainStep(clouds *tensors.Tensor) (loss, learningRate float32, err error) {
	lossT, lrT, err := t.trainExec.Exec2(clouds)
	if err != nil {
		return 0, 0, err
	}
	loss = tensors.ToScalar[float32](lossT)
	learningRate = tensors.ToScalar[float32](lrT)
	lossT.MustFinalizeAll()
	lrT.MustFinalizeAll()
	return loss, learningRate, nil
}

// EvalStep computes the batch loss in inference mode: no variable updates,
// deterministic latent codes, batch normalization using its moving
// averages.
func (t *Trainer) EvalStep(clouds *tensors.Tensor) (loss float32, err error) {
	lossT, err := t.evalExec.Exec1(clouds)
	if err != nil {
		return 0, err
	}
	loss = tensors.ToScalar[float32](lossT)
	lossT.MustFinalizeAll()
	return loss, nil
}

// Reconstruct runs the autoencoder in inference mode. It returns the
// reconstructed clouds, shaped (batch, Decoder.NumPoints(), 3), and the
// per-example reconstruction loss, shaped (batch,).
func (t *Trainer) Reconstruct(clouds *tensors.Tensor) (predicted, losses *tensors.Tensor, err error) {
	return t.reconExec.Exec2(clouds)
}
