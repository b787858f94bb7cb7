// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partae

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/pointae/experiments"
	"github.com/pkg/errors"
)

// Network is the full part autoencoder: encoder, sampler, sample decoder
// and cloud decoder, plus the reconstruction loss configuration.
type Network struct {
	Encoder       *Encoder
	Sampler       *Sampler
	SampleDecoder *SampleDecoder
	Decoder       Decoder

	LossType experiments.LossType
	KLWeight float64
}

// NewNetwork assembles the network described by the configuration. The
// configuration must already be valid, this only checks constraints that
// tie components together.
func NewNetwork(cfg *experiments.Config) (*Network, error) {
	var decoder Decoder
	switch cfg.Decoder {
	case experiments.DecoderFC:
		decoder = &FCDecoder{NumPoint: cfg.NumPoint}
	case experiments.DecoderFCUpconv:
		if cfg.NumPoint != FCUpconvNumPoints {
			return nil, errors.Errorf("the fcupconv decoder produces exactly %d points, it cannot honor num_point=%d",
				FCUpconvNumPoints, cfg.NumPoint)
		}
		decoder = &FCUpconvDecoder{}
	default:
		return nil, errors.Errorf("unknown decoder type %q", cfg.Decoder)
	}
	return &Network{
		Encoder:       &Encoder{FeatDim: cfg.FeatDim},
		Sampler:       &Sampler{FeatDim: cfg.FeatDim, Probabilistic: cfg.Probabilistic},
		SampleDecoder: &SampleDecoder{FeatDim: cfg.FeatDim},
		Decoder:       decoder,
		LossType:      cfg.Loss,
		KLWeight:      cfg.KLWeight,
	}, nil
}

// ForwardGraph encodes and reconstructs the clouds, shaped
// (batch, numPoints, 3). The cloud coordinates double as the per-point
// input features. It returns the reconstruction, shaped
// (batch, Decoder.NumPoints(), 3), and the per-example KL divergence
// (nil for a non-probabilistic sampler).
func (n *Network) ForwardGraph(ctx *context.Context, clouds *Node) (predicted, klDivergence *Node) {
	feature := n.Encoder.EncodeGraph(ctx.In("encoder"), clouds, clouds)
	code, klDivergence := n.Sampler.SampleGraph(ctx.In("sampler"), feature)
	return n.InferGraph(ctx, code), klDivergence
}

// InferGraph decodes a latent code, shaped (batch, featDim), directly into
// a cloud. Together with a code drawn from the unit gaussian this is the
// generative direction of the model.
func (n *Network) InferGraph(ctx *context.Context, code *Node) *Node {
	feature := n.SampleDecoder.DecodeGraph(ctx.In("sample_decoder"), code)
	return n.Decoder.DecodeGraph(ctx.In("decoder"), feature)
}

// ReconLossGraph is the configured reconstruction distance between the
// predicted and target clouds, scaled by LossScale, per example: (batch,).
func (n *Network) ReconLossGraph(predicted, target *Node) *Node {
	var loss *Node
	switch n.LossType {
	case experiments.LossChamfer:
		loss = ChamferDistanceGraph(predicted, target)
	case experiments.LossEMD:
		loss = EarthMoverDistanceGraph(predicted, target)
	default:
		exceptions.Panicf("unknown loss type %q", n.LossType)
	}
	return MulScalar(loss, LossScale)
}

// TotalLossGraph is the scalar training objective for a batch of clouds:
// the mean reconstruction loss, plus the mean KL divergence scaled by
// KLWeight when the sampler is probabilistic.
func (n *Network) TotalLossGraph(ctx *context.Context, clouds *Node) *Node {
	predicted, klDivergence := n.ForwardGraph(ctx, clouds)
	loss := ReduceAllMean(n.ReconLossGraph(predicted, clouds))
	if klDivergence != nil {
		loss = Add(loss, MulScalar(ReduceAllMean(klDivergence), n.KLWeight))
	}
	return loss
}
