// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partae

import (
	"math"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
)

// LossScale multiplies the per-example reconstruction losses, keeping their
// magnitude in a range where the default optimizer hyperparameters work
// well for unit-cube part clouds.
const LossScale = 100

// pairwiseSquaredDistances returns the squared euclidean distance between
// every point of a and every point of b: a (batch, n, d) and b (batch, m, d)
// yield (batch, n, m). Distances are clamped at zero, the expanded product
// form can drift slightly negative.
func pairwiseSquaredDistances(a, b *Node) *Node {
	aa := ReduceSum(Square(a), -1)
	bb := ReduceSum(Square(b), -1)
	ab := Einsum("bnd,bmd->bnm", a, b)
	d2 := Sub(Add(InsertAxes(aa, -1), InsertAxes(bb, 1)), MulScalar(ab, 2))
	return Max(d2, ZerosLike(d2))
}

// ChamferDistanceGraph returns the Chamfer distance between each pair of
// clouds in the batch: the mean squared distance from each predicted point
// to its nearest target point, plus the same in the other direction. Shapes
// (batch, n, 3) and (batch, m, 3) yield (batch,).
func ChamferDistanceGraph(predicted, target *Node) *Node {
	d2 := pairwiseSquaredDistances(predicted, target)
	forward := ReduceMean(ReduceMin(d2, 2), -1)
	backward := ReduceMean(ReduceMin(d2, 1), -1)
	return Add(forward, backward)
}

const (
	// sinkhornEpsilon is the entropy regularization of the transport plan:
	// small enough that the plan concentrates close to a hard matching.
	sinkhornEpsilon = 0.01

	// sinkhornIterations of alternating potential updates. Unit-cube part
	// clouds converge well before this.
	sinkhornIterations = 50
)

// EarthMoverDistanceGraph returns an entropy-regularized approximation of
// the earth mover's distance between each pair of clouds in the batch,
// normalized by the smaller point count so clouds of different sizes
// compare. Doubling both clouds by duplicating their points leaves the
// value unchanged. Shapes (batch, n, 3) and (batch, m, 3) yield (batch,).
//
// It runs Sinkhorn iterations in the log domain with uniform marginals and
// detaches the resulting transport plan, so the gradient is the plan itself
// applied to the cost matrix.
func EarthMoverDistanceGraph(predicted, target *Node) *Node {
	n := predicted.Shape().Dimensions[1]
	m := target.Shape().Dimensions[1]
	cost := Sqrt(AddScalar(pairwiseSquaredDistances(predicted, target), 1e-9))

	// Potentials in keep-dims layout: f (batch, n, 1) and g (batch, 1, m).
	logMassN := sinkhornEpsilon * math.Log(1.0/float64(n))
	logMassM := sinkhornEpsilon * math.Log(1.0/float64(m))
	g := Zeros(cost.Graph(), shapes.Make(cost.DType(), cost.Shape().Dimensions[0], 1, m))
	var f *Node
	for range sinkhornIterations {
		f = AddScalar(MulScalar(logSumExpKeep(MulScalar(Sub(g, cost), 1/sinkhornEpsilon), 2), -sinkhornEpsilon), logMassN)
		g = AddScalar(MulScalar(logSumExpKeep(MulScalar(Sub(f, cost), 1/sinkhornEpsilon), 1), -sinkhornEpsilon), logMassM)
	}
	plan := StopGradient(Exp(MulScalar(Sub(Add(f, g), cost), 1/sinkhornEpsilon)))

	total := ReduceSum(Mul(plan, cost), 1, 2)
	return MulScalar(total, float64(n)/float64(min(n, m)))
}

// logSumExpKeep is a numerically shifted log-sum-exp over one axis, keeping
// it with dimension 1.
func logSumExpKeep(x *Node, axis int) *Node {
	shift := StopGradient(ReduceAndKeep(x, ReduceMax, axis))
	return Add(shift, Log(ReduceAndKeep(Exp(Sub(x, shift)), ReduceSum, axis)))
}
