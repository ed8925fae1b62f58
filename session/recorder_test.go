package session

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PowerMeterProject/usb-meter-logger/meter"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 4, 25, 23, 48, 27, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestLogFileNaming(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()
	r, err := NewRecorder(dir, clk.now)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, filepath.Join(dir, "USB_Meter_Log_20250425_234827.csv"), r.Path())
}

func TestRecordRows(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()
	r, err := NewRecorder(dir, clk.now)
	require.NoError(t, err)

	reading := meter.Reading{
		Voltage:     5.2,
		Current:     0.5,
		Power:       2.6,
		Temperature: 24.3,
		DP:          2.71,
		DN:          2.698,
	}
	for i := 0; i < 3; i++ {
		clk.advance(time.Second)
		_, err := r.Record(reading)
		require.NoError(t, err)
	}
	path, err := r.Close()
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 4)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "1.00", rows[1][0])
	assert.Equal(t, "2.00", rows[2][0])
	assert.Equal(t, "3.00", rows[3][0])
	assert.Equal(t, "5.2", rows[1][1])
	assert.Equal(t, "0.5", rows[1][2])
	assert.Equal(t, "2.6", rows[1][3])
	assert.Equal(t, "24.3", rows[1][4])
	assert.Equal(t, "2.71", rows[1][5])
	assert.Equal(t, "2.698", rows[1][6])
}

func TestCapacityIntegration(t *testing.T) {
	clk := newFakeClock()
	r, err := NewRecorder(t.TempDir(), clk.now)
	require.NoError(t, err)
	defer r.Close()

	// 0.5 A held for an hour at a 1 s cadence must come out at 500 mAh.
	reading := meter.Reading{Voltage: 5, Current: 0.5, Power: 2.5}
	var last Sample
	for i := 0; i < 3600; i++ {
		clk.advance(time.Second)
		last, err = r.Record(reading)
		require.NoError(t, err)
	}
	assert.InDelta(t, 500.0, last.MAh, 1e-6)
	assert.InDelta(t, 3600.0, last.Elapsed, 1e-9)
}

func TestAccumulatorsMonotonic(t *testing.T) {
	clk := newFakeClock()
	r, err := NewRecorder(t.TempDir(), clk.now)
	require.NoError(t, err)
	defer r.Close()

	prev := Sample{}
	for i := 0; i < 10; i++ {
		clk.advance(700 * time.Millisecond)
		s, err := r.Record(meter.Reading{Current: 1.2})
		require.NoError(t, err)
		assert.Greater(t, s.Elapsed, prev.Elapsed)
		assert.GreaterOrEqual(t, s.MAh, prev.MAh)
		prev = s
	}
}

func TestResetStartsFreshSession(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()
	r, err := NewRecorder(dir, clk.now)
	require.NoError(t, err)
	defer r.Close()

	clk.advance(time.Second)
	s, err := r.Record(meter.Reading{Current: 1})
	require.NoError(t, err)
	assert.Greater(t, s.MAh, 0.0)

	firstPath := r.Path()
	clk.advance(time.Second)
	closed, err := r.Reset()
	require.NoError(t, err)
	assert.Equal(t, firstPath, closed)
	assert.NotEqual(t, firstPath, r.Path())
	assert.Zero(t, r.MAh())

	// The closed file must be complete and readable.
	f, err := os.Open(closed)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// Elapsed restarts with the new session.
	clk.advance(time.Second)
	s, err = r.Record(meter.Reading{Current: 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Elapsed, 1e-9)
}
