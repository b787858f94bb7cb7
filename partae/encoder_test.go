package partae

import (
	"math"
	"testing"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedGather(t *testing.T) {
	params := [][][]float32{
		{{1, 2}, {3, 4}, {5, 6}},
		{{7, 8}, {9, 10}, {11, 12}},
	}

	// Plain per-example row selection.
	indices := [][]int32{{2, 0}, {1, 1}}
	got, err := ExecOnce(testBackend(), batchedGather, params, indices)
	require.NoError(t, err)
	require.NoError(t, got.Shape().CheckDims(2, 2, 2))
	assert.Equal(t, []float32{5, 6, 1, 2, 9, 10, 9, 10}, tensors.MustCopyFlatData[float32](got))

	// Grouped indices keep their extra axes in the output.
	grouped := [][][]int32{{{0, 2}, {1, 0}}, {{2, 2}, {0, 1}}}
	got, err = ExecOnce(testBackend(), batchedGather, params, grouped)
	require.NoError(t, err)
	require.NoError(t, got.Shape().CheckDims(2, 2, 2, 2))
	assert.Equal(t,
		[]float32{1, 2, 5, 6, 3, 4, 1, 2, 11, 12, 11, 12, 7, 8, 9, 10},
		tensors.MustCopyFlatData[float32](got))
}

func TestNeighborhoods(t *testing.T) {
	// Two centroids over three points. The second centroid's second-nearest
	// point is beyond the radius of 0.2, so the nearest index repeats.
	d2 := [][][]float32{{{0, 0.01, 1}, {0, 1, 2}}}
	fn := func(d2 *Node) *Node { return neighborhoods(d2, 2, 0.2) }
	got, err := ExecOnce(testBackend(), fn, d2)
	require.NoError(t, err)
	require.NoError(t, got.Shape().CheckDims(1, 2, 2))
	assert.Equal(t, []int32{0, 1, 0, 0}, tensors.MustCopyFlatData[int32](got))
}

func TestRandomCentroids(t *testing.T) {
	const batchSize, numPoints, numCentroids = 3, 10, 4
	ctx := context.New()
	ctx.RngStateFromSeed(42)
	got := context.MustExecOnce(testBackend(), ctx, func(ctx *context.Context, g *Graph) *Node {
		return randomCentroids(ctx, g, batchSize, numPoints, numCentroids)
	})
	require.NoError(t, got.Shape().CheckDims(batchSize, numCentroids))
	flat := tensors.MustCopyFlatData[int32](got)
	for row := 0; row < batchSize; row++ {
		seen := make(map[int32]bool)
		for _, idx := range flat[row*numCentroids : (row+1)*numCentroids] {
			assert.GreaterOrEqual(t, idx, int32(0))
			assert.Less(t, idx, int32(numPoints))
			assert.False(t, seen[idx], "centroid index %d repeated in row %d", idx, row)
			seen[idx] = true
		}
	}
}

func TestEncodeGraph(t *testing.T) {
	if testing.Short() {
		t.Skip("full encoder pass in short mode")
	}
	const batchSize, featDim = 2, 32
	clouds := syntheticClouds(batchSize, 512)
	encoder := &Encoder{FeatDim: featDim}
	ctx := context.New()
	ctx.RngStateFromSeed(42)
	got := context.MustExecOnce(testBackend(), ctx, func(ctx *context.Context, clouds *Node) *Node {
		return encoder.EncodeGraph(ctx, clouds, clouds)
	}, clouds)
	require.NoError(t, got.Shape().CheckDims(batchSize, featDim))
	for _, v := range tensors.MustCopyFlatData[float32](got) {
		require.False(t, math.IsNaN(float64(v)))
		require.GreaterOrEqual(t, v, float32(0))
	}
}
