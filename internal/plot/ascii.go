package plot

import (
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"
)

const (
	asciiWidth  = 80
	asciiHeight = 10
)

// ASCII renders every panel as a terminal chart. Panels with no finite
// sample are skipped.
func (f *Figure) ASCII() string {
	var sb strings.Builder
	for _, p := range f.Panels {
		var (
			data   [][]float64
			names  []string
			colors []asciigraph.AnsiColor
		)
		for i, s := range p.Series {
			vals, ok := gapped(s.Values)
			if !ok {
				continue
			}
			data = append(data, vals)
			names = append(names, s.Name)
			colors = append(colors, seriesColors[i%len(seriesColors)])
		}
		if len(data) == 0 {
			continue
		}

		caption := p.Title + " (" + strings.Join(names, ", ") + ")"
		sb.WriteString(asciigraph.PlotMany(data,
			asciigraph.Height(asciiHeight),
			asciigraph.Width(asciiWidth),
			asciigraph.Caption(caption),
			asciigraph.SeriesColors(colors...),
		))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

var seriesColors = []asciigraph.AnsiColor{asciigraph.Blue, asciigraph.Red, asciigraph.Green}

// gapped replaces non-finite samples with NaN, which asciigraph leaves out.
// It reports false when nothing finite remains.
func gapped(values []float64) ([]float64, bool) {
	out := make([]float64, len(values))
	finite := false
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
		finite = true
	}
	return out, finite
}
