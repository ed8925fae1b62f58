// Package display keeps the rolling per-channel sample windows that
// back the live charts, and the moving-average smoothing applied to
// them. It knows nothing about how the data is rendered.
package display

import (
	"fmt"
	"time"

	"github.com/PowerMeterProject/usb-meter-logger/meter"
)

// MaxPoints bounds each channel's rolling window.
const MaxPoints = 1800

// Channel names, as used by the control surface.
const (
	ChannelVoltage     = "voltage"
	ChannelCurrent     = "current"
	ChannelPower       = "power"
	ChannelTemperature = "temperature"
)

// ChannelNames lists the channels in display order.
var ChannelNames = []string{ChannelVoltage, ChannelCurrent, ChannelPower, ChannelTemperature}

// Windows maps the selectable smoothing labels to their spans. "None"
// disables smoothing.
var Windows = map[string]int{
	"None": 1,
	"F2":   2,
	"F4":   4,
	"F8":   8,
	"F16":  16,
}

// DefaultWindow is the smoothing selection on startup.
const DefaultWindow = "F4"

// Point is one displayed sample.
type Point struct {
	X float64 // seconds since the display clock started
	Y float64
}

// Buffer holds the most recent MaxPoints points of one channel.
type Buffer struct {
	points []Point
}

// Add appends p, evicting the oldest point once the buffer is full.
func (b *Buffer) Add(p Point) {
	b.points = append(b.points, p)
	if len(b.points) > MaxPoints {
		b.points = b.points[1:]
	}
}

// Len returns the number of buffered points.
func (b *Buffer) Len() int {
	return len(b.points)
}

// XY returns copies of the x and y series.
func (b *Buffer) XY() ([]float64, []float64) {
	xs := make([]float64, len(b.points))
	ys := make([]float64, len(b.points))
	for i, p := range b.points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}

// Clear drops all points.
func (b *Buffer) Clear() {
	b.points = b.points[:0]
}

// Smooth computes a causal simple moving average over ys: element i is
// the mean of the trailing min(i+1, window) values. It returns nil
// when window <= 1 or ys is shorter than window, which callers treat
// as smoothing off.
func Smooth(ys []float64, window int) []float64 {
	if window <= 1 || len(ys) < window {
		return nil
	}
	out := make([]float64, len(ys))
	for i := range ys {
		start := 0
		if i-window+1 > 0 {
			start = i - window + 1
		}
		sum := 0.0
		for _, v := range ys[start : i+1] {
			sum += v
		}
		out[i] = sum / float64(i-start+1)
	}
	return out
}

// Channels groups the four telemetry buffers behind one display clock.
// The clock restarts on session reset, independently of the log's
// elapsed time. Not safe for concurrent use.
type Channels struct {
	start time.Time
	now   func() time.Time
	bufs  map[string]*Buffer
}

// NewChannels builds the channel set. A nil clock means time.Now.
func NewChannels(clock func() time.Time) *Channels {
	if clock == nil {
		clock = time.Now
	}
	c := &Channels{
		now:   clock,
		start: clock(),
		bufs:  make(map[string]*Buffer, len(ChannelNames)),
	}
	for _, name := range ChannelNames {
		c.bufs[name] = &Buffer{}
	}
	return c
}

// Add appends one decoded reading across all four channels.
func (c *Channels) Add(r meter.Reading) {
	x := c.now().Sub(c.start).Seconds()
	c.bufs[ChannelVoltage].Add(Point{X: x, Y: r.Voltage})
	c.bufs[ChannelCurrent].Add(Point{X: x, Y: r.Current})
	c.bufs[ChannelPower].Add(Point{X: x, Y: r.Power})
	c.bufs[ChannelTemperature].Add(Point{X: x, Y: r.Temperature})
}

// Series returns the raw x and y arrays for one channel.
func (c *Channels) Series(name string) ([]float64, []float64, error) {
	buf, ok := c.bufs[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown channel %q", name)
	}
	xs, ys := buf.XY()
	return xs, ys, nil
}

// Smoothed returns the x array and the smoothed y array for one
// channel. The y array is nil while smoothing is suppressed.
func (c *Channels) Smoothed(name string, window int) ([]float64, []float64, error) {
	xs, ys, err := c.Series(name)
	if err != nil {
		return nil, nil, err
	}
	smoothed := Smooth(ys, window)
	if smoothed == nil {
		return xs, nil, nil
	}
	return xs, smoothed, nil
}

// Restart clears every buffer and restarts the display clock.
func (c *Channels) Restart() {
	c.start = c.now()
	for _, buf := range c.bufs {
		buf.Clear()
	}
}
