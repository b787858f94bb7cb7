// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package partdata loads directories of part point clouds into
// datasets.InMemoryDataset values ready for training.
//
// Supported shape file formats: .npy and .npz (numpy), .mat (MATLAB v5) and
// .pts (whitespace separated text, one point per line). Every cloud is
// resampled to a fixed number of points at load time.
package partdata

import (
	"bufio"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/daniellowtw/matlab"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/numpy"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// PointsFileExtensions lists the shape file formats ReadPointsFile accepts.
var PointsFileExtensions = []string{".npy", ".npz", ".mat", ".pts"}

// IsPointsFile reports whether path has one of the supported extensions.
func IsPointsFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, known := range PointsFileExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// ReadPointsFile reads one point cloud and returns it as a flat
// [x0,y0,z0, x1,y1,z1, ...] slice.
func ReadPointsFile(path string) ([]float32, error) {
	var points []float32
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		points, err = readNpy(path)
	case ".npz":
		points, err = readNpz(path)
	case ".mat":
		points, err = readMat(path)
	case ".pts":
		points, err = readPts(path)
	default:
		return nil, errors.Errorf("unsupported point cloud file %q, supported extensions are %v", path, PointsFileExtensions)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %q", path)
	}
	if len(points) == 0 || len(points)%3 != 0 {
		return nil, errors.Errorf("point cloud %q has %d coordinates, not a multiple of 3", path, len(points))
	}
	return points, nil
}

func tensorToPoints(t *tensors.Tensor) ([]float32, error) {
	dims := t.Shape().Dimensions
	if len(dims) != 2 || dims[1] < 3 {
		return nil, errors.Errorf("expected a (numPoints, >=3) array, got shape %s", t.Shape())
	}
	numPoints, width := dims[0], dims[1]
	var flat []float32
	switch t.DType() {
	case dtypes.Float32:
		flat = tensors.MustCopyFlatData[float32](t)
	case dtypes.Float64:
		flat64 := tensors.MustCopyFlatData[float64](t)
		flat = make([]float32, len(flat64))
		for ii, v := range flat64 {
			flat[ii] = float32(v)
		}
	default:
		return nil, errors.Errorf("unsupported dtype %s for point cloud, only float32 and float64 are supported", t.DType())
	}
	if width == 3 {
		return flat, nil
	}
	// Extra per-point columns (normals, labels) are dropped.
	points := make([]float32, 0, numPoints*3)
	for p := range numPoints {
		points = append(points, flat[p*width:p*width+3]...)
	}
	return points, nil
}

func readNpy(path string) ([]float32, error) {
	t, err := numpy.FromNpyFile(path)
	if err != nil {
		return nil, err
	}
	defer t.FinalizeAll()
	return tensorToPoints(t)
}

func readNpz(path string) ([]float32, error) {
	entries, err := numpy.FromNpzFile(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, t := range entries {
			t.FinalizeAll()
		}
	}()
	// Prefer the conventional key, otherwise take the first one.
	if t, found := entries["points"]; found {
		return tensorToPoints(t)
	}
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, errors.New("npz archive holds no arrays")
	}
	sort.Strings(keys)
	return tensorToPoints(entries[keys[0]])
}

// readMat reads the "points" variable (or the only variable) of a MATLAB v5
// file. MATLAB matrices are stored column-major, so an (N, 3) matrix arrives
// as all the x coordinates, then all the y, then all the z.
func readMat(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	matFile, err := matlab.NewFileFromReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse MATLAB file")
	}
	matVar, found := matFile.GetVar("points")
	if !found {
		matVar, found = matFile.GetVar("pts")
	}
	if !found {
		return nil, errors.New("no \"points\" or \"pts\" variable in MATLAB file")
	}
	values := matVar.Value()
	if len(values)%3 != 0 {
		return nil, errors.Errorf("MATLAB points variable has %d values, not a multiple of 3", len(values))
	}
	flat := make([]float64, len(values))
	for ii, value := range values {
		switch v := value.(type) {
		case float64:
			flat[ii] = v
		case float32:
			flat[ii] = float64(v)
		case int32:
			flat[ii] = float64(v)
		case int16:
			flat[ii] = float64(v)
		case uint8:
			flat[ii] = float64(v)
		default:
			return nil, errors.Errorf("unsupported MATLAB element type %T", value)
		}
	}
	numPoints := len(flat) / 3
	points := make([]float32, len(flat))
	for p := range numPoints {
		points[p*3+0] = float32(flat[p])
		points[p*3+1] = float32(flat[numPoints+p])
		points[p*3+2] = float32(flat[2*numPoints+p])
	}
	return points, nil
}

func readPts(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var points []float32
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, errors.Errorf("line %d has %d fields, expected at least x y z", lineNum, len(fields))
		}
		for _, field := range fields[:3] {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d has a malformed coordinate %q", lineNum, field)
			}
			points = append(points, float32(v))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// Resample returns a cloud with exactly numPoint points: larger clouds are
// subsampled without replacement, smaller ones are padded with points drawn
// with replacement. The input is returned unchanged (not copied) when it
// already has the right size.
func Resample(points []float32, numPoint int, rng *rand.Rand) []float32 {
	numAvailable := len(points) / 3
	if numAvailable == numPoint {
		return points
	}
	resampled := make([]float32, 0, numPoint*3)
	if numAvailable > numPoint {
		for _, p := range rng.Perm(numAvailable)[:numPoint] {
			resampled = append(resampled, points[p*3:p*3+3]...)
		}
		return resampled
	}
	resampled = append(resampled, points...)
	for len(resampled) < numPoint*3 {
		p := rng.Intn(numAvailable)
		resampled = append(resampled, points[p*3:p*3+3]...)
	}
	return resampled
}
