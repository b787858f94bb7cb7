// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partdata

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// ManifestFileName is the optional split manifest inside a data directory.
// It is a CSV with a header and at least the columns "name" (the shape file
// name, with or without extension) and "split" ("train" or "val").
const ManifestFileName = "splits.csv"

// Manifest maps shape files to dataset splits.
type Manifest struct {
	df dataframe.DataFrame
}

// LoadManifest reads a splits.csv file.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open manifest %q", path)
	}
	defer func() { _ = f.Close() }()
	df := dataframe.ReadCSV(f, dataframe.HasHeader(true),
		dataframe.WithTypes(map[string]series.Type{
			"name":  series.String,
			"split": series.String,
		}))
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "failed to parse manifest %q", path)
	}
	for _, required := range []string{"name", "split"} {
		if !slices.Contains(df.Names(), required) {
			return nil, errors.Errorf("manifest %q misses the %q column, it has %v", path, required, df.Names())
		}
	}
	return &Manifest{df: df}, nil
}

// Names returns the shape names assigned to the given split, in manifest order.
func (m *Manifest) Names(split string) []string {
	filtered := m.df.Filter(dataframe.F{Colname: "split", Comparator: series.Eq, Comparando: split})
	if filtered.Err != nil || filtered.Nrow() == 0 {
		return nil
	}
	return filtered.Col("name").Records()
}

// Splits returns the distinct split names present in the manifest.
func (m *Manifest) Splits() []string {
	var splits []string
	for _, split := range m.df.Col("split").Records() {
		if !slices.Contains(splits, split) {
			splits = append(splits, split)
		}
	}
	slices.Sort(splits)
	return splits
}

// matchesName reports whether the file name refers to the manifest entry:
// entries may be written with or without the file extension.
func matchesName(fileName, entry string) bool {
	if fileName == entry {
		return true
	}
	ext := filepath.Ext(fileName)
	return ext != "" && strings.TrimSuffix(fileName, ext) == entry
}
