package partdata

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBackend(t *testing.T) backends.Backend {
	t.Helper()
	return simplego.New("")
}

func writeTestCorpus(t *testing.T, dir string) {
	t.Helper()
	writeCloudNpy(t, filepath.Join(dir, "chair_a.npy"), []float32{1, 0, 0, 0, 1, 0, 0, 0, 1, 1, 1, 1})
	writeCloudNpy(t, filepath.Join(dir, "chair_b.npy"), []float32{2, 0, 0, 0, 2, 0})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chair_c.pts"),
		[]byte("3 0 0\n0 3 0\n0 0 3\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"),
		[]byte("not a point cloud"), 0644))
}

func TestLoadCorpus(t *testing.T) {
	dir := t.TempDir()
	writeTestCorpus(t, dir)

	corpus, err := LoadCorpus(dir, 4, LoadOptions{Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"chair_a.npy", "chair_b.npy", "chair_c.pts"}, corpus.Names)
	assert.Equal(t, 3, corpus.NumClouds())
	assert.Equal(t, []int{3, 4, 3}, corpus.Points.Shape().Dimensions)
	assert.Equal(t, 1, corpus.NumBatches(2))
	assert.Equal(t, 3, corpus.NumBatches(1))
}

func TestLoadCorpusParallelMatchesSequential(t *testing.T) {
	dir := t.TempDir()
	writeTestCorpus(t, dir)

	sequential, err := LoadCorpus(dir, 4, LoadOptions{Seed: 17, NumWorkers: 1})
	require.NoError(t, err)
	parallel, err := LoadCorpus(dir, 4, LoadOptions{Seed: 17, NumWorkers: 4})
	require.NoError(t, err)
	assert.Equal(t, sequential.Names, parallel.Names)
	assert.True(t, sequential.Points.Equal(parallel.Points),
		"resampling must not depend on worker scheduling")
}

func TestLoadCorpusWithManifest(t *testing.T) {
	dir := t.TempDir()
	writeTestCorpus(t, dir)
	manifest := "name,split\nchair_a,train\nchair_b.npy,val\nchair_c,train\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(manifest), 0644))

	train, err := LoadCorpus(dir, 4, LoadOptions{Split: "train"})
	require.NoError(t, err)
	assert.Equal(t, []string{"chair_a.npy", "chair_c.pts"}, train.Names)

	val, err := LoadCorpus(dir, 4, LoadOptions{Split: "val"})
	require.NoError(t, err)
	assert.Equal(t, []string{"chair_b.npy"}, val.Names)

	_, err = LoadCorpus(dir, 4, LoadOptions{Split: "test"})
	require.Error(t, err)
}

func TestLoadCorpusEmptyDir(t *testing.T) {
	_, err := LoadCorpus(t.TempDir(), 4, LoadOptions{})
	require.Error(t, err)
}

func TestLoadCorpusBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pts"), []byte("1 2\n"), 0644))
	_, err := LoadCorpus(dir, 4, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.pts")
}

func TestCorpusDataset(t *testing.T) {
	dir := t.TempDir()
	writeTestCorpus(t, dir)
	corpus, err := LoadCorpus(dir, 4, LoadOptions{Seed: 1})
	require.NoError(t, err)

	backend := testBackend(t)
	ds, err := corpus.Dataset(backend, "training")
	require.NoError(t, err)
	ds.BatchSize(1, true)

	count := 0
	for {
		_, inputs, labels, err := ds.Yield()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Len(t, inputs, 1)
		assert.Empty(t, labels)
		assert.Equal(t, []int{1, 4, 3}, inputs[0].Shape().Dimensions)
		count++
	}
	assert.Equal(t, 3, count)
}

func TestManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	require.NoError(t, os.WriteFile(path,
		[]byte("name,split\na,train\nb,val\nc,train\n"), 0644))

	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, manifest.Names("train"))
	assert.Equal(t, []string{"b"}, manifest.Names("val"))
	assert.Empty(t, manifest.Names("test"))
	assert.Equal(t, []string{"train", "val"}, manifest.Splits())
}

func TestManifestMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte("file,part\na,train\n"), 0644))
	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}
