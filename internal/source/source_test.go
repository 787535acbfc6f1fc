package source

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor.link/internal/monitoring"
	"github.com/banshee-data/sensor.link/internal/sensor"
	"github.com/banshee-data/sensor.link/internal/timeutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSimulatorEmit(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	sim := NewSimulator(clock, 10*time.Millisecond, sensor.Temperature, sensor.Accelerometer)
	out := make(chan sensor.Sample, 4)

	clock.Advance(30 * time.Millisecond)
	require.NoError(t, sim.Emit(context.Background(), out))
	require.Len(t, out, 2)

	temp := <-out
	accel := <-out
	assert.Equal(t, sensor.Temperature, temp.Type)
	assert.Equal(t, int64(30*time.Millisecond), temp.TimestampNanos)
	assert.NoError(t, temp.Reading().Validate())
	assert.InDelta(t, 21.5, temp.Values[0], 1.0)

	assert.Equal(t, sensor.Accelerometer, accel.Type)
	assert.Equal(t, temp.TimestampNanos, accel.TimestampNanos)
	assert.NoError(t, accel.Reading().Validate())
	assert.InDelta(t, 9.81, accel.Values[2], 0.5)
}

func TestSimulatorAllTypesValid(t *testing.T) {
	sim := NewSimulator(timeutil.NewMockClock(epoch), 0)
	out := make(chan sensor.Sample, sensor.Count)

	require.NoError(t, sim.Emit(context.Background(), out))
	require.Len(t, out, sensor.Count)
	for i := 0; i < sensor.Count; i++ {
		s := <-out
		assert.Equal(t, sensor.Type(i), s.Type)
		assert.NoError(t, s.Reading().Validate(), s.Type.String())
	}
}

func TestSimulatorRunTimestampsNonDecreasing(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	sim := NewSimulator(clock, 10*time.Millisecond, sensor.HeartRate)
	out := make(chan sensor.Sample, 16)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- sim.Run(ctx, out) }()

	// The ticker is created inside Run, so keep advancing until samples flow.
	var got []sensor.Sample
	require.Eventually(t, func() bool {
		clock.Advance(10 * time.Millisecond)
		for {
			select {
			case s := <-out:
				got = append(got, s)
			default:
				return len(got) >= 3
			}
		}
	}, 2*time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].TimestampNanos, got[i-1].TimestampNanos)
	}
}

func TestSimulatorEmitCancelled(t *testing.T) {
	sim := NewSimulator(timeutil.NewMockClock(epoch), 0, sensor.Light)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sim.Emit(ctx, make(chan sensor.Sample)), context.Canceled)
}

func TestParseLine(t *testing.T) {
	s, err := ParseLine("TEMPERATURE,123456789,21.5")
	require.NoError(t, err)
	assert.Equal(t, sensor.Sample{Type: sensor.Temperature, TimestampNanos: 123456789, Values: []float32{21.5}}, s)

	s, err = ParseLine(" accelerometer , 5 , 0.1, -9.81 ,NaN")
	require.NoError(t, err)
	assert.Equal(t, sensor.Accelerometer, s.Type)
	assert.Equal(t, int64(5), s.TimestampNanos)
	require.Len(t, s.Values, 3)
	assert.Equal(t, float32(-9.81), s.Values[1])
	assert.True(t, math.IsNaN(float64(s.Values[2])))
}

func TestParseLineMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		"TEMPERATURE,1",
		"LOCATION,1,2,3",
		"TEMPERATURE,soon,21.5",
		"TEMPERATURE,1,warm",
	} {
		_, err := ParseLine(line)
		assert.ErrorIs(t, err, ErrMalformedLine, line)
	}
}

func TestScanLines(t *testing.T) {
	var logged []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) { logged = append(logged, format) })
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	input := strings.Join([]string{
		"# recorded on the bench",
		"TEMPERATURE,0,21.5",
		"",
		"not a sample",
		"HEART_RATE,100000000,72",
	}, "\n")

	out := make(chan sensor.Sample, 4)
	n, err := ScanLines(context.Background(), strings.NewReader(input), out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, logged, 1)

	assert.Equal(t, sensor.Temperature, (<-out).Type)
	assert.Equal(t, sensor.HeartRate, (<-out).Type)
}

func TestScanLinesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := ScanLines(ctx, strings.NewReader("TEMPERATURE,0,21.5\n"), make(chan sensor.Sample))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, n)
}
