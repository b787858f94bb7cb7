// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package partae implements a point-cloud autoencoder for 3D shape parts: a
// set-abstraction encoder reduces a cloud to a latent feature, an optionally
// probabilistic sampler draws a latent code from it, and a decoder expands
// the code back to a fixed-size cloud. The package also provides the
// reconstruction losses (Chamfer and an entropy-regularized earth-mover's
// distance) and the training loop driving them.
package partae

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/layers/batchnorm"
	"github.com/gomlx/gopjrt/dtypes"
)

// setAbstraction describes one grouping stage of the encoder: pick
// numCentroids seed points, group the groupSize nearest neighbors within
// radius around each, and run a shared MLP over every group before
// max-pooling it to a single feature per centroid. A stage with
// numCentroids == 0 groups the whole cloud into a single feature.
type setAbstraction struct {
	numCentroids int
	radius       float64
	groupSize    int
	widths       []int
}

// encoderStages: two local grouping stages followed by a global one.
var encoderStages = []setAbstraction{
	{numCentroids: 512, radius: 0.2, groupSize: 64, widths: []int{64, 64, 128}},
	{numCentroids: 128, radius: 0.4, groupSize: 64, widths: []int{128, 128, 256}},
	{widths: []int{256, 256, 256}},
}

// Encoder reduces a point cloud to a single feature vector per example.
type Encoder struct {
	// FeatDim is the width of the produced feature.
	FeatDim int
}

// EncodeGraph builds the encoder: xyz is the cloud with shape
// (batch, numPoints, 3) and features the per-point features with shape
// (batch, numPoints, featuresDim). The relative coordinates of each group
// are concatenated to the features at every stage. It returns a feature of
// shape (batch, FeatDim).
func (e *Encoder) EncodeGraph(ctx *context.Context, xyz, features *Node) *Node {
	g := xyz.Graph()
	batchSize := xyz.Shape().Dimensions[0]
	for stageIdx, stage := range encoderStages {
		stageCtx := ctx.Inf("%03d_set_abstraction", stageIdx)
		var grouped *Node
		if stage.numCentroids == 0 {
			// Global stage: one group holding every remaining point.
			grouped = InsertAxes(Concatenate([]*Node{xyz, features}, -1), 1)
		} else {
			numPoints := xyz.Shape().Dimensions[1]
			centroidIdx := randomCentroids(stageCtx, g, batchSize, numPoints, stage.numCentroids)
			centroids := batchedGather(xyz, centroidIdx)
			d2 := pairwiseSquaredDistances(centroids, xyz)
			neighborIdx := neighborhoods(d2, stage.groupSize, stage.radius)
			groupedXyz := batchedGather(xyz, neighborIdx)
			groupedXyz = Sub(groupedXyz, InsertAxes(centroids, 2))
			groupedFeatures := batchedGather(features, neighborIdx)
			grouped = Concatenate([]*Node{groupedXyz, groupedFeatures}, -1)
			xyz = centroids
		}
		features = groupMLP(stageCtx, grouped, stage.widths)
		features = ReduceMax(features, 2)
	}
	// (batch, 1, width) -> (batch, width), then project to the feature size.
	features = Reshape(features, batchSize, features.Shape().Dimensions[2])
	headCtx := ctx.In("feature_head")
	features = layers.Dense(headCtx, features, true, e.FeatDim)
	features = batchnorm.New(headCtx, features, -1).Done()
	features = activations.Relu(features)
	features.AssertDims(batchSize, e.FeatDim)
	return features
}

// randomCentroids picks numCentroids distinct point indices per example,
// uniformly without replacement, from the context's random state.
func randomCentroids(ctx *context.Context, g *Graph, batchSize, numPoints, numCentroids int) *Node {
	scores := ctx.RandomUniform(g, shapes.Make(dtypes.Float32, batchSize, numPoints))
	perm := ArgSort(scores, 1, false)
	return Slice(perm, AxisRange(), AxisRange(0, numCentroids))
}

// neighborhoods returns for each centroid the indices of its groupSize
// nearest points, with neighbors beyond radius replaced by the nearest one,
// so a sparse neighborhood repeats its closest point instead of leaking far
// geometry into the group.
func neighborhoods(d2 *Node, groupSize int, radius float64) *Node {
	values, indices := BottomK(d2, groupSize, 2)
	nearest := Slice(indices, AxisRange(), AxisRange(), AxisElem(0))
	nearest = BroadcastToDims(nearest, indices.Shape().Dimensions...)
	outside := GreaterThan(values, Scalar(d2.Graph(), d2.DType(), radius*radius))
	return Where(outside, nearest, indices)
}

// batchedGather gathers rows of params along its second axis, independently
// per example: params (batch, numPoints, width) and indices
// (batch, dims...) yield (batch, dims..., width).
func batchedGather(params, indices *Node) *Node {
	g := params.Graph()
	batchIdx := Iota(g, shapes.Make(indices.DType(), indices.Shape().Dimensions...), 0)
	stacked := Concatenate([]*Node{InsertAxes(batchIdx, -1), InsertAxes(indices, -1)}, -1)
	return Gather(params, stacked)
}

// groupMLP applies the shared per-point MLP of one stage: a dense layer,
// batch normalization over the feature axis and a relu, per width.
func groupMLP(ctx *context.Context, x *Node, widths []int) *Node {
	for layerIdx, width := range widths {
		layerCtx := ctx.Inf("%03d_mlp", layerIdx)
		x = layers.Dense(layerCtx, x, true, width)
		x = batchnorm.New(layerCtx, x, -1).Done()
		x = activations.Relu(x)
	}
	return x
}
