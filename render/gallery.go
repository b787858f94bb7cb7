// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"

	grob "github.com/MetalBlueberry/go-plotly/generated/v2.34.0/graph_objects"
	ptypes "github.com/MetalBlueberry/go-plotly/pkg/types"
	"github.com/janpfeifer/gonb/gonbui/plotly"
	"github.com/pkg/errors"
)

// Item is one gallery entry: a shape's input cloud and its reconstruction,
// with the reconstruction loss shown in the figure title.
type Item struct {
	Name   string
	Input  [][3]float64
	Output [][3]float64
	Loss   float64
}

func cloudTrace(name string, points [][3]float64) *grob.Scatter3d {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	zs := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i], zs[i] = p[0], p[1], p[2]
	}
	return &grob.Scatter3d{
		Name: ptypes.S(name),
		Mode: "markers",
		X:    ptypes.DataArray(xs),
		Y:    ptypes.DataArray(ys),
		Z:    ptypes.DataArray(zs),
	}
}

func itemFigure(item Item) *grob.Fig {
	fig := &grob.Fig{
		Layout: &grob.Layout{
			Title: &grob.LayoutTitle{
				Text: ptypes.S(fmt.Sprintf("%s (loss %.5f)", item.Name, item.Loss)),
			},
		},
	}
	fig.Data = append(fig.Data,
		cloudTrace("input", item.Input),
		cloudTrace("reconstruction", item.Output))
	return fig
}

var galleryHTML = `<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>{{ .Title }}</title>
	<script src="{{ .CDN }}"></script>
</head>
<body>
	<h1>{{ .Title }}</h1>
{{- range $i, $f := .Figures }}
	<div id="plot{{ $i }}" style="width: 48rem; height: 36rem;"></div>
{{- end }}
	<script>
{{- range $i, $f := .Figures }}
		Plotly.newPlot('plot{{ $i }}', JSON.parse(atob('{{ $f }}')));
{{- end }}
	</script>
</body>
</html>`

var galleryTmpl = template.Must(template.New("gallery").Parse(galleryHTML))

// WriteGallery renders the items to a single self-contained HTML page, one
// interactive 3D scatter pair per item. Plotly itself loads from its CDN.
func WriteGallery(w io.Writer, title string, items []Item) error {
	figures := make([]string, 0, len(items))
	for _, item := range items {
		encoded, err := json.Marshal(itemFigure(item))
		if err != nil {
			return errors.Wrapf(err, "encoding gallery figure for %q", item.Name)
		}
		figures = append(figures, base64.StdEncoding.EncodeToString(encoded))
	}
	data := &struct {
		Title   string
		CDN     string
		Figures []string
	}{
		Title:   title,
		CDN:     plotly.PlotlySrc,
		Figures: figures,
	}
	if err := galleryTmpl.Execute(w, data); err != nil {
		return errors.Wrap(err, "rendering gallery page")
	}
	return nil
}

// WriteGalleryFile writes the gallery page of WriteGallery to a file.
func WriteGalleryFile(path, title string, items []Item) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating gallery file %q", path)
	}
	defer func() { _ = f.Close() }()
	return WriteGallery(f, title, items)
}
