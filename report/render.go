package report

import (
	"image/color"
	"math"
	"os"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"
)

// Page geometry: landscape letter with the summary text on the left
// and the three charts stacked on the right.
const (
	pageWidth  = 11 * vg.Inch
	pageHeight = 8.5 * vg.Inch
	pageMargin = 0.5 * vg.Inch
	textShare  = 0.34
	columnGap  = 0.2 * vg.Inch
)

var (
	voltageColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	currentColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	powerColor   = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	tempColor    = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// Render writes the one-page PDF report to path. The charts cover the
// whole log from the first row; only the statistics in the text block
// start at the detected start sample.
func Render(cols Columns, s Summary, m Meta, path string) error {
	charts, err := buildCharts(cols)
	if err != nil {
		return err
	}

	c := vgpdf.New(pageWidth, pageHeight)
	c.EmbedFonts(true)
	page := draw.New(c)

	inner := draw.Crop(page, pageMargin, -pageMargin, pageMargin, -pageMargin)
	strokeRect(inner)

	innerWidth := inner.Rectangle.Size().X
	textWidth := innerWidth * textShare
	textArea := draw.Crop(inner, 0, textWidth-innerWidth, 0, 0)
	chartArea := draw.Crop(inner, textWidth+columnGap, 0, 0, 0)
	strokeRect(chartArea)

	drawTextBlock(textArea, Text(s, m))

	tiles := draw.Tiles{
		Rows:      3,
		Cols:      1,
		PadTop:    vg.Points(10),
		PadBottom: vg.Points(10),
		PadLeft:   vg.Points(10),
		PadRight:  vg.Points(10),
		PadY:      vg.Points(12),
	}
	grid := [][]*plot.Plot{{charts[0]}, {charts[1]}, {charts[2]}}
	canvases := plot.Align(grid, tiles, chartArea)
	for i := range grid {
		grid[i][0].Draw(canvases[i][0])
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// buildCharts makes the three stacked time series: voltage and
// current together, then power, then temperature.
func buildCharts(cols Columns) ([]*plot.Plot, error) {
	ts := cols[ColTimestamp]

	vi := plot.New()
	vi.Title.Text = "Voltage and Current"
	vi.Y.Label.Text = "V / A"
	vi.Add(plotter.NewGrid())
	vLine, err := newLine(ts, cols[ColVoltage], voltageColor)
	if err != nil {
		return nil, err
	}
	iLine, err := newLine(ts, cols[ColCurrent], currentColor)
	if err != nil {
		return nil, err
	}
	vi.Add(vLine, iLine)
	vi.Legend.Add("Voltage (V)", vLine)
	vi.Legend.Add("Current (A)", iLine)
	vi.Legend.Top = true

	pw := plot.New()
	pw.Title.Text = "Power"
	pw.Y.Label.Text = "Power (W)"
	pw.Add(plotter.NewGrid())
	pLine, err := newLine(ts, cols[ColPower], powerColor)
	if err != nil {
		return nil, err
	}
	pw.Add(pLine)

	tp := plot.New()
	tp.Title.Text = "Temperature"
	tp.X.Label.Text = "Time (s)"
	tp.Y.Label.Text = "Temperature (C)"
	tp.Add(plotter.NewGrid())
	tLine, err := newLine(ts, cols[ColTemperature], tempColor)
	if err != nil {
		return nil, err
	}
	tp.Add(tLine)

	return []*plot.Plot{vi, pw, tp}, nil
}

// newLine builds a colored line, dropping NaN points so a dead
// temperature probe cannot poison the axis ranges.
func newLine(xs, ys []float64, col color.Color) (*plotter.Line, error) {
	pts := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if math.IsNaN(ys[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = col
	return line, nil
}

func strokeRect(c draw.Canvas) {
	r := c.Rectangle
	sty := draw.LineStyle{Color: color.Black, Width: vg.Points(1.5)}
	c.StrokeLines(sty, []vg.Point{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Min.Y},
	})
}

// drawTextBlock lays the summary out line by line in a monospace
// face, top down from the upper left of the text column.
func drawTextBlock(c draw.Canvas, block string) {
	sty := draw.TextStyle{
		Color: color.Black,
		Font: font.Font{
			Typeface: "Liberation",
			Variant:  "Mono",
			Size:     vg.Points(10),
		},
		Handler: plot.DefaultTextHandler,
	}

	x := c.Rectangle.Min.X + vg.Points(12)
	y := c.Rectangle.Max.Y - vg.Points(26)
	for _, line := range strings.Split(block, "\n") {
		if line != "" {
			c.FillText(sty, vg.Point{X: x, Y: y}, line)
		}
		y -= vg.Points(14)
	}
}
