package partae

import (
	"math/rand"
	"sync"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

var (
	testBackendOnce sync.Once
	testBackendRef  backends.Backend
)

// testBackend returns a process-wide pure Go backend, so the tests run
// anywhere without an accelerator plugin.
func testBackend() backends.Backend {
	testBackendOnce.Do(func() {
		testBackendRef = simplego.New("")
	})
	return testBackendRef
}

// syntheticClouds builds a reproducible batch of unit-cube clouds, shaped
// (batchSize, numPoints, 3).
func syntheticClouds(batchSize, numPoints int) *tensors.Tensor {
	rng := rand.New(rand.NewSource(17))
	data := make([]float32, batchSize*numPoints*3)
	for i := range data {
		data[i] = rng.Float32()
	}
	return tensors.FromFlatDataAndDimensions(data, batchSize, numPoints, 3)
}
