// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partae

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

// Decoder expands a latent feature back into a point cloud.
type Decoder interface {
	// DecodeGraph builds the decoder over feature, shaped (batch, featDim),
	// and returns a cloud shaped (batch, NumPoints(), 3).
	DecodeGraph(ctx *context.Context, feature *Node) *Node

	// NumPoints is the fixed size of the decoded cloud.
	NumPoints() int
}

const fcHiddenDim = 1024

// fcCloudGraph is the fully-connected cloud generator shared by both
// decoders: two hidden relu layers and a linear projection to numPoints
// coordinate triples.
func fcCloudGraph(ctx *context.Context, feature *Node, numPoints int) *Node {
	batchSize := feature.Shape().Dimensions[0]
	x := feature
	for layerIdx := range 2 {
		x = activations.Relu(layers.Dense(ctx.Inf("%03d_hidden", layerIdx), x, true, fcHiddenDim))
	}
	x = layers.Dense(ctx.In("cloud"), x, true, numPoints*3)
	return Reshape(x, batchSize, numPoints, 3)
}

// FCDecoder decodes the latent feature with fully-connected layers only.
// The output size is free, set by NumPoint.
type FCDecoder struct {
	NumPoint int
}

func (d *FCDecoder) DecodeGraph(ctx *context.Context, feature *Node) *Node {
	return fcCloudGraph(ctx, feature, d.NumPoint)
}

func (d *FCDecoder) NumPoints() int { return d.NumPoint }

// FCUpconvNumPoints is the output size of FCUpconvDecoder: half the points
// from its fully-connected branch and half from the upconvolution branch.
const FCUpconvNumPoints = 2048

// upconvStage is one transposed convolution of the upconvolution branch.
type upconvStage struct {
	channels, kernelSize, stride int
}

// upconvStages grows the 1x1 feature map to 2x2, 4x4, 10x10 and finally
// 32x32, whose 1024 cells become the branch's points.
var upconvStages = []upconvStage{
	{channels: 1024, kernelSize: 2, stride: 1},
	{channels: 512, kernelSize: 3, stride: 1},
	{channels: 256, kernelSize: 4, stride: 2},
	{channels: 128, kernelSize: 5, stride: 3},
	{channels: 3, kernelSize: 1, stride: 1},
}

// FCUpconvDecoder decodes the latent feature twice, with a fully-connected
// branch and a transposed-convolution branch, and concatenates the two
// clouds. Each branch contributes 1024 points, so the output size is fixed
// at FCUpconvNumPoints.
type FCUpconvDecoder struct{}

func (d *FCUpconvDecoder) DecodeGraph(ctx *context.Context, feature *Node) *Node {
	fcCloud := fcCloudGraph(ctx.In("fc_branch"), feature, FCUpconvNumPoints/2)
	upconvCloud := d.upconvBranchGraph(ctx.In("upconv_branch"), feature)
	return Concatenate([]*Node{fcCloud, upconvCloud}, 1)
}

func (d *FCUpconvDecoder) NumPoints() int { return FCUpconvNumPoints }

func (d *FCUpconvDecoder) upconvBranchGraph(ctx *context.Context, feature *Node) *Node {
	batchSize := feature.Shape().Dimensions[0]
	x := Reshape(feature, batchSize, 1, 1, feature.Shape().Dimensions[1])
	for stageIdx, stage := range upconvStages {
		x = transposedConv2D(ctx.Inf("%03d_upconv", stageIdx), x, stage.channels, stage.kernelSize, stage.stride)
		if stageIdx < len(upconvStages)-1 {
			x = activations.Relu(x)
		}
	}
	x.AssertDims(batchSize, 32, 32, 3)
	return Reshape(x, batchSize, FCUpconvNumPoints/2, 3)
}

// transposedConv2D is the gradient-of-convolution upsampling: interleave
// zeros between the input cells (for stride > 1), then convolve with full
// padding. The input x is shaped (batch, height, width, channels) and the
// output spatial size is (size-1)*stride + kernelSize per axis.
func transposedConv2D(ctx *context.Context, x *Node, outputChannels, kernelSize, stride int) *Node {
	g := x.Graph()
	dtype := x.DType()
	x = zeroInterleave(x, 1, stride)
	x = zeroInterleave(x, 2, stride)
	inputChannels := x.Shape().Dimensions[3]
	kernelVar := ctx.VariableWithShape("weights",
		shapes.Make(dtype, kernelSize, kernelSize, inputChannels, outputChannels))
	full := kernelSize - 1
	output := Convolve(x, kernelVar.ValueGraph(g)).
		PaddingPerDim([][2]int{{full, full}, {full, full}}).
		Done()
	biasVar := ctx.VariableWithShape("biases", shapes.Make(dtype, outputChannels))
	return Add(output, Reshape(biasVar.ValueGraph(g), 1, 1, 1, outputChannels))
}

// zeroInterleave inserts stride-1 zeros between consecutive entries of the
// given axis, growing its dimension from n to (n-1)*stride + 1.
func zeroInterleave(x *Node, axis, stride int) *Node {
	if stride <= 1 {
		return x
	}
	g := x.Graph()
	dims := x.Shape().Dimensions
	expanded := InsertAxes(x, axis+1)
	zerosDims := expanded.Shape().Clone().Dimensions
	zerosDims[axis+1] = stride - 1
	zeros := Zeros(g, shapes.Make(x.DType(), zerosDims...))
	interleaved := Concatenate([]*Node{expanded, zeros}, axis+1)

	mergedDims := make([]int, len(dims))
	copy(mergedDims, dims)
	mergedDims[axis] *= stride
	merged := Reshape(interleaved, mergedDims...)

	specs := make([]SliceAxisSpec, len(mergedDims))
	for ii := range specs {
		specs[ii] = AxisRange()
	}
	specs[axis] = AxisRange(0, (dims[axis]-1)*stride+1)
	return Slice(merged, specs...)
}
