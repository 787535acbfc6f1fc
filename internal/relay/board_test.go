package relay

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor.link/internal/sensor"
)

func TestBoardLatestAndTypes(t *testing.T) {
	b := NewBoard(4)
	b.Record(sensor.NewReading(sensor.Pressure, 1013), Meta{Source: "watch", ReceivedAt: epoch})
	b.Record(sensor.NewReading(sensor.Temperature, 20), Meta{Source: "watch", ReceivedAt: epoch})
	b.Record(sensor.NewReading(sensor.Temperature, 21), Meta{Source: "watch", ReceivedAt: epoch})

	latest := b.Latest()
	require.Len(t, latest, 2)
	assert.True(t, latest[sensor.Temperature].Reading.Equal(sensor.NewReading(sensor.Temperature, 21)))
	assert.Equal(t, []sensor.Type{sensor.Temperature, sensor.Pressure}, b.Types())

	// The returned map is a copy.
	delete(latest, sensor.Pressure)
	assert.Len(t, b.Latest(), 2)
}

func TestBoardWindowIsBounded(t *testing.T) {
	b := NewBoard(3)
	assert.Nil(t, b.Window(sensor.Light))

	for i := 1; i <= 5; i++ {
		b.Record(sensor.NewReading(sensor.Light, float32(i)), Meta{})
	}
	want := [][]float32{{3}, {4}, {5}}
	if diff := cmp.Diff(want, b.Window(sensor.Light)); diff != "" {
		t.Errorf("window mismatch (-want +got):\n%s", diff)
	}

	b.Record(sensor.NewReading(sensor.Light, 6), Meta{})
	assert.Equal(t, [][]float32{{4}, {5}, {6}}, b.Window(sensor.Light))
}

func TestBoardDefaultWindowSize(t *testing.T) {
	b := NewBoard(0)
	for i := 0; i < DefaultWindowSize+10; i++ {
		b.Record(sensor.NewReading(sensor.HeartRate, float32(i)), Meta{})
	}
	w := b.Window(sensor.HeartRate)
	require.Len(t, w, DefaultWindowSize)
	assert.Equal(t, float32(10), w[0][0])
}

func TestBoardSummary(t *testing.T) {
	b := NewBoard(10)
	_, ok := b.Summary(sensor.Accelerometer)
	assert.False(t, ok)

	b.Record(sensor.NewReading(sensor.Accelerometer, 1, 10, -1), Meta{})
	b.Record(sensor.NewReading(sensor.Accelerometer, 3, 10, -5), Meta{})

	sum, ok := b.Summary(sensor.Accelerometer)
	require.True(t, ok)
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, "m/s²", sum.Unit)
	require.Len(t, sum.Components, 3)

	x := sum.Components[0]
	assert.InDelta(t, 2.0, float64(x.Mean), 1e-9)
	assert.InDelta(t, math.Sqrt2, float64(x.StdDev), 1e-9)
	assert.Equal(t, Number(1), x.Min)
	assert.Equal(t, Number(3), x.Max)

	assert.Equal(t, Number(0), sum.Components[1].StdDev)
	assert.Equal(t, Number(-5), sum.Components[2].Min)
}

func TestBoardSummarySingleReading(t *testing.T) {
	b := NewBoard(10)
	b.Record(sensor.NewReading(sensor.Proximity, 5), Meta{})

	sum, ok := b.Summary(sensor.Proximity)
	require.True(t, ok)
	assert.Equal(t, Number(5), sum.Components[0].Mean)
	assert.Equal(t, Number(0), sum.Components[0].StdDev)
}

func TestSummaryJSONHandlesNaN(t *testing.T) {
	b := NewBoard(10)
	b.Record(sensor.NewReading(sensor.Temperature, float32(math.NaN())), Meta{})
	b.Record(sensor.NewReading(sensor.Temperature, 20), Meta{})

	sum, ok := b.Summary(sensor.Temperature)
	require.True(t, ok)

	data, err := json.Marshal(sum)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "TEMPERATURE",
		"unit": "°C",
		"count": 2,
		"components": [{"mean": null, "stddev": null, "min": 20, "max": 20}]
	}`, string(data))
}
