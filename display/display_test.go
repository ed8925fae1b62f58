package display

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PowerMeterProject/usb-meter-logger/meter"
)

func TestBufferEvictsOldestFirst(t *testing.T) {
	b := &Buffer{}
	for i := 0; i < MaxPoints+5; i++ {
		b.Add(Point{X: float64(i), Y: float64(i)})
	}
	assert.Equal(t, MaxPoints, b.Len())

	xs, ys := b.XY()
	require.Len(t, xs, MaxPoints)
	// The first five points were evicted.
	assert.Equal(t, 5.0, xs[0])
	assert.Equal(t, float64(MaxPoints+4), xs[len(xs)-1])
	assert.Equal(t, 5.0, ys[0])
}

func TestBufferNeverExceedsCap(t *testing.T) {
	b := &Buffer{}
	for i := 0; i < 3*MaxPoints; i++ {
		b.Add(Point{X: float64(i)})
		assert.LessOrEqual(t, b.Len(), MaxPoints)
	}
}

func TestSmoothSuppressed(t *testing.T) {
	ys := []float64{1, 2, 3, 4, 5}

	// Window 1 means off.
	assert.Nil(t, Smooth(ys, 1))
	assert.Nil(t, Smooth(ys, 0))

	// Too few samples for the window.
	assert.Nil(t, Smooth(ys[:3], 4))
	assert.Nil(t, Smooth(nil, 2))
}

func TestSmoothWindowFour(t *testing.T) {
	ys := []float64{1, 2, 3, 4, 5}
	got := Smooth(ys, 4)
	require.Len(t, got, len(ys))

	// Each element is the mean of the trailing min(i+1, 4) values.
	want := []float64{1, 1.5, 2, 2.5, 3.5}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "index %d", i)
	}
}

func TestSmoothWindowTwo(t *testing.T) {
	got := Smooth([]float64{1, 3, 5}, 2)
	require.Len(t, got, 3)
	assert.InDelta(t, 1.0, got[0], 1e-9)
	assert.InDelta(t, 2.0, got[1], 1e-9)
	assert.InDelta(t, 4.0, got[2], 1e-9)
}

func TestWindowLabels(t *testing.T) {
	assert.Equal(t, map[string]int{"None": 1, "F2": 2, "F4": 4, "F8": 8, "F16": 16}, Windows)
	_, ok := Windows[DefaultWindow]
	assert.True(t, ok)
}

func TestChannels(t *testing.T) {
	now := time.Date(2025, 4, 25, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewChannels(clock)

	r := meter.Reading{Voltage: 5, Current: 1, Power: 5, Temperature: 25}
	c.Add(r)
	now = now.Add(time.Second)
	r.Voltage = 5.1
	c.Add(r)

	xs, ys, err := c.Series(ChannelVoltage)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, xs)
	assert.Equal(t, []float64{5, 5.1}, ys)

	_, _, err = c.Series("bogus")
	assert.Error(t, err)

	// Two samples cannot fill a four sample window.
	xs, smoothed, err := c.Smoothed(ChannelVoltage, 4)
	require.NoError(t, err)
	assert.Len(t, xs, 2)
	assert.Nil(t, smoothed)

	xs, smoothed, err = c.Smoothed(ChannelVoltage, 2)
	require.NoError(t, err)
	require.Len(t, smoothed, 2)
	assert.InDelta(t, 5.0, smoothed[0], 1e-9)
	assert.InDelta(t, 5.05, smoothed[1], 1e-9)
	assert.Len(t, xs, 2)
}

func TestChannelsRestart(t *testing.T) {
	now := time.Date(2025, 4, 25, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewChannels(clock)

	c.Add(meter.Reading{Voltage: 5})
	now = now.Add(10 * time.Second)
	c.Restart()

	for _, name := range ChannelNames {
		xs, _, err := c.Series(name)
		require.NoError(t, err)
		assert.Empty(t, xs)
	}

	// The display clock rebased to the reset instant.
	now = now.Add(2 * time.Second)
	c.Add(meter.Reading{Voltage: 4.9})
	xs, _, err := c.Series(ChannelVoltage)
	require.NoError(t, err)
	require.Len(t, xs, 1)
	assert.InDelta(t, 2.0, xs[0], 1e-9)
}
