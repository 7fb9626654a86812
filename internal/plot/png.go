package plot

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var (
	measuredColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	boundColor    = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
)

// ErrNoData is returned when a series has no finite sample to draw.
var ErrNoData = errors.New("plot: no finite data")

// Series is one named curve, one value per time.
type Series struct {
	Name   string
	Values []float64
	Dashed bool
	Color  color.Color
}

// Panel is one sub-plot of a figure.
type Panel struct {
	Title  string
	YLabel string
	Series []Series
}

// Figure stacks panels that share a time axis.
type Figure struct {
	Title  string
	Times  []float64
	Panels []Panel
}

// BoundFigure puts the measured error and the analytic bound of each state
// in its own panel.
func BoundFigure(title string, times []float64, measured, bound [][]float64, names []string) (*Figure, error) {
	if len(measured) != len(times) || len(bound) != len(times) {
		return nil, fmt.Errorf("plot: %d times, %d measured rows, %d bound rows", len(times), len(measured), len(bound))
	}
	if len(times) == 0 {
		return nil, ErrNoData
	}
	fig := &Figure{Title: title, Times: times}
	for j, name := range names {
		fig.Panels = append(fig.Panels, Panel{
			Title:  name,
			YLabel: "|error|",
			Series: []Series{
				{Name: "measured", Values: column(measured, j), Color: measuredColor},
				{Name: "bound", Values: column(bound, j), Dashed: true, Color: boundColor},
			},
		})
	}
	return fig, nil
}

// FitFigure compares a predicted trajectory with a recorded one, state by
// state.
func FitFigure(title string, times []float64, predicted, recorded [][]float64, names []string) (*Figure, error) {
	if len(predicted) != len(times) || len(recorded) != len(times) {
		return nil, fmt.Errorf("plot: %d times, %d predicted rows, %d recorded rows", len(times), len(predicted), len(recorded))
	}
	if len(times) == 0 {
		return nil, ErrNoData
	}
	fig := &Figure{Title: title, Times: times}
	for j, name := range names {
		fig.Panels = append(fig.Panels, Panel{
			Title:  name,
			YLabel: name,
			Series: []Series{
				{Name: "recorded", Values: column(recorded, j), Color: measuredColor},
				{Name: "koopman", Values: column(predicted, j), Dashed: true, Color: boundColor},
			},
		})
	}
	return fig, nil
}

func column(rows [][]float64, j int) []float64 {
	out := make([]float64, len(rows))
	for k, row := range rows {
		if j < len(row) {
			out[k] = row[j]
		} else {
			out[k] = math.NaN()
		}
	}
	return out
}

// finitePoints pairs times with values, dropping NaN and ±Inf.
func finitePoints(times, values []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(values))
	for k, v := range values {
		if k >= len(times) || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: times[k], Y: v})
	}
	return pts
}

func (f *Figure) panelPlot(p Panel) (*plot.Plot, int, error) {
	pl := plot.New()
	pl.Title.Text = p.Title
	pl.X.Label.Text = "time (s)"
	pl.Y.Label.Text = p.YLabel
	pl.Add(plotter.NewGrid())
	pl.Legend.Top = true

	drawn := 0
	for _, s := range p.Series {
		pts := finitePoints(f.Times, s.Values)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, 0, err
		}
		line.LineStyle.Width = vg.Points(1.5)
		if s.Color != nil {
			line.LineStyle.Color = s.Color
		}
		if s.Dashed {
			line.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
		}
		pl.Add(line)
		pl.Legend.Add(s.Name, line)
		drawn++
	}
	return pl, drawn, nil
}

// SavePNG draws the figure with one row per panel.
func (f *Figure) SavePNG(path string, width vg.Length) error {
	if len(f.Panels) == 0 {
		return ErrNoData
	}

	plots := make([][]*plot.Plot, len(f.Panels))
	drawn := 0
	for i, p := range f.Panels {
		pl, n, err := f.panelPlot(p)
		if err != nil {
			return fmt.Errorf("panel %s: %w", p.Title, err)
		}
		if i == 0 && f.Title != "" {
			pl.Title.Text = f.Title + ": " + pl.Title.Text
		}
		plots[i] = []*plot.Plot{pl}
		drawn += n
	}
	if drawn == 0 {
		return ErrNoData
	}

	height := vg.Length(len(f.Panels)) * width / 2.5
	c := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(150))
	dc := draw.New(c)
	tiles := draw.Tiles{
		Rows: len(f.Panels),
		Cols: 1,
		PadX: vg.Millimeter,
		PadY: vg.Millimeter * 4,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(file)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
