// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partae

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

// Sampler turns the encoder feature into the latent code fed to the decoder.
//
// With Probabilistic set it learns a diagonal gaussian over the latent space:
// two dense heads produce the mean and log-variance, and during training the
// code is drawn with the reparameterization trick. Outside training the mean
// is used directly, so inference is deterministic. With Probabilistic unset
// the feature passes through unchanged.
type Sampler struct {
	FeatDim       int
	Probabilistic bool
}

// SampleGraph returns the latent code with shape (batch, FeatDim) and, when
// Probabilistic, the KL divergence from the unit gaussian per example, shape
// (batch,). The KL node is nil otherwise.
func (s *Sampler) SampleGraph(ctx *context.Context, feature *Node) (code, klDivergence *Node) {
	if !s.Probabilistic {
		return feature, nil
	}
	g := feature.Graph()
	mean := layers.Dense(ctx.In("mean"), feature, true, s.FeatDim)
	logVariance := layers.Dense(ctx.In("log_variance"), feature, true, s.FeatDim)

	// KL(N(mean, var) || N(0, 1)) summed over the latent axis.
	klDivergence = MulScalar(
		ReduceSum(Sub(Sub(AddScalar(logVariance, 1), Square(mean)), Exp(logVariance)), -1),
		-0.5)

	if ctx.IsTraining(g) {
		noise := ctx.RandomNormal(g, mean.Shape())
		code = Add(mean, Mul(noise, Exp(MulScalar(logVariance, 0.5))))
	} else {
		code = mean
	}
	return code, klDivergence
}

// SampleDecoder lifts the latent code back into feature space before the
// cloud decoder expands it. A single dense layer with a relu.
type SampleDecoder struct {
	FeatDim int
}

// DecodeGraph maps the code (batch, FeatDim) to a feature (batch, FeatDim).
func (d *SampleDecoder) DecodeGraph(ctx *context.Context, code *Node) *Node {
	return activations.Relu(layers.Dense(ctx, code, true, d.FeatDim))
}
