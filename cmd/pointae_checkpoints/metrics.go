// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gomlx/gomlx/pkg/support/sets"
	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/gomlx/pointae/partae"
	"k8s.io/klog/v2"
)

var (
	flagMetrics = flag.Bool("metrics", false,
		fmt.Sprintf("Lists the metrics collected per split in file %q.", plots.TrainingPlotFileName))
	flagMetricsLabels = flag.Bool("metrics_labels", false,
		"Lists the metric labels (short names) with their full names.")
	flagMetricsNames = flag.String("metrics_names", "",
		"Comma-separated list of metric names (or short names) to include.")
	flagMetricsTypes = flag.String("metrics_types", "",
		"Comma-separated list of metric types to include.")
)

func commaSet(value string) sets.Set[string] {
	if value == "" {
		return nil
	}
	s := sets.Make[string]()
	for _, name := range strings.Split(value, ",") {
		s.Insert(strings.TrimSpace(name))
	}
	return s
}

// splitPoints loads the plot points of one split, or nil if the split was
// not logged.
func splitPoints(expDir string, split partae.Split) []plots.Point {
	metricsPath := filepath.Join(expDir, string(split), plots.TrainingPlotFileName)
	points, err := plots.LoadPoints(metricsPath)
	if err != nil {
		klog.Warningf("No metrics for split %q: %v", split, err)
		return nil
	}
	return points
}

// Metrics prints the logged metric points of each split, one table per
// split, one row per step.
func Metrics(expDir string) {
	metricsNames := commaSet(*flagMetricsNames)
	metricsTypes := commaSet(*flagMetricsTypes)

	for _, split := range []partae.Split{partae.TrainSplit, partae.ValSplit} {
		points := splitPoints(expDir, split)
		if len(points) == 0 {
			continue
		}

		nameToShort := make(map[string]string)
		metricsUsed := sets.Make[string]()
		for _, point := range points {
			nameToShort[point.MetricName] = point.Short
			if metricsNames != nil || metricsTypes != nil {
				foundName := metricsNames != nil && (metricsNames.Has(point.MetricName) || metricsNames.Has(point.Short))
				foundType := metricsTypes != nil && metricsTypes.Has(point.MetricType)
				if !foundName && !foundType {
					continue
				}
			}
			metricsUsed.Insert(point.Short)
		}
		if len(metricsUsed) == 0 {
			continue
		}

		if *flagMetricsLabels {
			fmt.Println(titleStyle.Render(fmt.Sprintf("Metric Labels (%s)", split)))
			table := newPlainTable(true)
			table.Row("Label", "Metric")
			for _, name := range xslices.SortedKeys(nameToShort) {
				table.Row(nameToShort[name], name)
			}
			fmt.Println(table.Render())
		}
		if !*flagMetrics {
			continue
		}

		shorts := xslices.SortedKeys(metricsUsed)
		shortToCol := make(map[string]int, len(shorts))
		for idx, short := range shorts {
			shortToCol[short] = idx + 1
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Metrics (%s)", split)))
		table := newPlainTable(true)
		table.Row(append([]string{"Step"}, shorts...)...)

		currentStep := -1.0
		var currentRow []string
		flushRow := func() {
			if currentRow != nil {
				table.Row(currentRow...)
			}
		}
		for _, point := range points {
			if point.Step != currentStep || currentRow == nil {
				flushRow()
				currentStep = point.Step
				currentRow = make([]string, 1+len(shorts))
				currentRow[0] = fmt.Sprintf("%g", point.Step)
			}
			if col, found := shortToCol[point.Short]; found {
				currentRow[col] = fmt.Sprintf("%f", point.Value)
			}
		}
		flushRow()
		fmt.Println(table.Render())
	}
}
