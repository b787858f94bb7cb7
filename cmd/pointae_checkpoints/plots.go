// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"io"
	"os"
	"slices"

	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/gomlx/pointae/partae"
	"github.com/janpfeifer/gonb/gonbui/plotly"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	grob "github.com/MetalBlueberry/go-plotly/generated/v2.34.0/graph_objects"
	ptypes "github.com/MetalBlueberry/go-plotly/pkg/types"
)

var flagPlot = flag.String("plot", "",
	"Writes an HTML page plotting the logged metrics of both splits to this file.")

// plotLine is a single line in a metric plot: one split of one metric.
type plotLine struct {
	name          string
	steps, values []float64
}

// linesByType groups the split's points into lines keyed by metric type.
func linesByType(split partae.Split, points []plots.Point, byType map[string][]*plotLine) {
	lines := make(map[string]*plotLine)
	for _, point := range points {
		key := point.MetricType + "\x00" + point.Short
		line, found := lines[key]
		if !found {
			line = &plotLine{name: fmt.Sprintf("%s %s", split, point.Short)}
			lines[key] = line
			byType[point.MetricType] = append(byType[point.MetricType], line)
		}
		line.steps = append(line.steps, point.Step)
		line.values = append(line.values, point.Value)
	}
}

// BuildPlots writes an HTML page with one figure per metric type, each with
// the train and validation lines of that metric.
func BuildPlots(expDir, outFile string) {
	byType := make(map[string][]*plotLine)
	for _, split := range []partae.Split{partae.TrainSplit, partae.ValSplit} {
		if points := splitPoints(expDir, split); len(points) > 0 {
			linesByType(split, points, byType)
		}
	}
	if len(byType) == 0 {
		klog.Errorf("Nothing to plot in %q", expDir)
		return
	}

	metricTypes := xslices.SortedKeys(byType)
	serialized := make([][]byte, 0, len(metricTypes))
	for _, metricType := range metricTypes {
		fig := &grob.Fig{
			Layout: &grob.Layout{
				Title: &grob.LayoutTitle{Text: ptypes.S(metricType)},
				Xaxis: &grob.LayoutXaxis{Showgrid: ptypes.B(true)},
				Yaxis: &grob.LayoutYaxis{Showgrid: ptypes.B(true)},
			},
		}
		lines := byType[metricType]
		slices.SortFunc(lines, func(a, b *plotLine) int {
			if a.name < b.name {
				return -1
			}
			if a.name > b.name {
				return 1
			}
			return 0
		})
		for _, line := range lines {
			fig.Data = append(fig.Data, &grob.Scatter{
				Name: ptypes.S(line.name),
				Line: &grob.ScatterLine{Shape: grob.ScatterLineShapeLinear},
				Mode: "lines",
				X:    ptypes.DataArray(line.steps),
				Y:    ptypes.DataArray(line.values),
			})
		}
		figAsJSON, err := json.Marshal(fig)
		if err != nil {
			klog.Exitf("Failed to marshal figure for metric type %q: %+v", metricType, err)
		}
		serialized = append(serialized, figAsJSON)
	}

	if err := plotlyToHTMLFile(outFile, serialized...); err != nil {
		klog.Exitf("Failed to write plots: %+v", err)
	}
	fmt.Printf("\nPlots written to:\t%s\n\n", outFile)
}

var (
	singleFileHTML = `<!DOCTYPE html>
	<head>
		<meta charset="utf-8">
		<script src="{{ .CDN }}"></script>
	</head>
	<body>
{{- range $i, $f := .Figures }}
		<div id="plot{{ $i }}"></div>
{{- end }}
	<script>
{{- range $i, $f := .Figures }}
		data = JSON.parse(atob('{{ $f }}'))
		Plotly.newPlot('plot{{ $i }}', data);
{{- end }}
	</script>
	</body>
</html>`
	singleFileHTMLTmpl = template.Must(template.New("plotly").Parse(singleFileHTML))
)

// writePlotlyAsHTML renders the Plotly figures (given as JSON) to an HTML
// page served from the plotly CDN.
func writePlotlyAsHTML(w io.Writer, figuresAsJSON ...[]byte) error {
	data := &struct {
		CDN     string
		Figures []string
	}{
		CDN:     plotly.PlotlySrc,
		Figures: xslices.Map(figuresAsJSON, func(fig []byte) string { return base64.StdEncoding.EncodeToString(fig) }),
	}
	if err := singleFileHTMLTmpl.Execute(w, data); err != nil {
		return errors.Wrap(err, "failed to render plotly")
	}
	return nil
}

func plotlyToHTMLFile(fileName string, figuresAsJSON ...[]byte) error {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "failed to create file %q", fileName)
	}
	defer func() { _ = f.Close() }()
	return writePlotlyAsHTML(f, figuresAsJSON...)
}
