// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partdata

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Corpus is a split of part point clouds loaded into one float32 tensor of
// shape (numClouds, numPoint, 3), with the originating file names kept
// aligned to the first axis.
type Corpus struct {
	Names    []string
	Points   *tensors.Tensor
	NumPoint int
}

// LoadOptions configure LoadCorpus.
type LoadOptions struct {
	// Split selects the manifest split to load when the directory has a
	// splits.csv. Empty loads every shape file.
	Split string

	// NumWorkers is the number of files parsed concurrently. Values < 1
	// mean sequential loading.
	NumWorkers int

	// Seed drives the resampling of clouds that don't have NumPoint points.
	Seed int64

	// Progress displays a progress bar on the terminal while loading.
	Progress bool
}

// LoadCorpus reads every shape file of a split into memory, resampling each
// cloud to numPoint points.
func LoadCorpus(dir string, numPoint int, opts LoadOptions) (*Corpus, error) {
	names, err := listShapeFiles(dir, opts.Split)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.Errorf("no point cloud files found in %q (split %q)", dir, opts.Split)
	}
	klog.V(1).Infof("Loading %d point clouds from %q (split %q)", len(names), dir, opts.Split)

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.NewOptions(len(names),
			progressbar.OptionSetDescription(fmt.Sprintf("loading %s", filepath.Base(dir))),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode))
	}

	clouds := make([][]float32, len(names))
	numWorkers := max(opts.NumWorkers, 1)
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	work := make(chan int)
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				points, err := ReadPointsFile(filepath.Join(dir, names[idx]))
				if err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					continue
				}
				// Per-cloud rng, so the resampling doesn't depend on
				// the order workers pick up files.
				rng := rand.New(rand.NewSource(opts.Seed + int64(idx)))
				clouds[idx] = Resample(points, numPoint, rng)
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		}()
	}
	for idx := range names {
		work <- idx
	}
	close(work)
	wg.Wait()
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if firstErr != nil {
		return nil, firstErr
	}

	points := tensors.FromShape(shapes.Make(dtypes.Float32, len(names), numPoint, 3))
	tensors.MustMutableFlatData[float32](points, func(flat []float32) {
		for idx, cloud := range clouds {
			copy(flat[idx*numPoint*3:], cloud)
		}
	})
	return &Corpus{Names: names, Points: points, NumPoint: numPoint}, nil
}

// listShapeFiles returns the shape file names of the split in sorted order.
func listShapeFiles(dir string, split string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list data directory %q", dir)
	}
	var manifest *Manifest
	manifestPath := filepath.Join(dir, ManifestFileName)
	if _, err := os.Stat(manifestPath); err == nil && split != "" {
		manifest, err = LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !IsPointsFile(entry.Name()) {
			continue
		}
		if manifest != nil && !inSplit(manifest, entry.Name(), split) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func inSplit(manifest *Manifest, fileName, split string) bool {
	for _, entry := range manifest.Names(split) {
		if matchesName(fileName, entry) {
			return true
		}
	}
	return false
}

// NumClouds returns how many point clouds the corpus holds.
func (c *Corpus) NumClouds() int {
	return len(c.Names)
}

// NumBatches returns how many full batches one pass over the corpus yields.
func (c *Corpus) NumBatches(batchSize int) int {
	return c.NumClouds() / batchSize
}

// Dataset wraps the corpus in an InMemoryDataset. The clouds are the only
// input, there are no labels: the reconstruction target is the input itself.
func (c *Corpus) Dataset(backend backends.Backend, name string) (*datasets.InMemoryDataset, error) {
	ds, err := datasets.InMemoryFromData(backend, name, []any{c.Points}, nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "building dataset %q", name)
	}
	return ds, nil
}
