// Package source produces sensor samples for the emitting side: a simulator
// for development without hardware and a line parser for replaying text
// fixtures.
package source

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/banshee-data/sensor.link/internal/sensor"
	"github.com/banshee-data/sensor.link/internal/timeutil"
)

// DefaultInterval is how often the simulator samples each sensor.
const DefaultInterval = 20 * time.Millisecond

// Simulator generates plausible readings for a set of sensor types. Every
// tick produces one sample per type, timestamped with the clock's
// monotonic nanoseconds.
type Simulator struct {
	clock    timeutil.Clock
	interval time.Duration
	types    []sensor.Type
	rng      *rand.Rand
	step     int
}

// NewSimulator returns a Simulator for types, sampling every interval. With
// no types it simulates all of them.
func NewSimulator(clock timeutil.Clock, interval time.Duration, types ...sensor.Type) *Simulator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if len(types) == 0 {
		types = sensor.Types()
	}
	return &Simulator{
		clock:    clock,
		interval: interval,
		types:    append([]sensor.Type(nil), types...),
		rng:      rand.New(rand.NewPCG(1, 2)),
	}
}

// Run emits samples on every tick until ctx is done. Simulator is the sole
// producer on out; Run does not close it.
func (s *Simulator) Run(ctx context.Context, out chan<- sensor.Sample) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if err := s.Emit(ctx, out); err != nil {
				return err
			}
		}
	}
}

// Emit sends one sample per configured type.
func (s *Simulator) Emit(ctx context.Context, out chan<- sensor.Sample) error {
	ts := s.clock.Nanos()
	phase := float64(s.step) / 50
	s.step++

	for _, t := range s.types {
		sample := sensor.Sample{Type: t, TimestampNanos: ts, Values: s.values(t, phase)}
		select {
		case out <- sample:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Simulator) noise(scale float64) float32 {
	return float32(s.rng.NormFloat64() * scale)
}

// values returns a slowly varying signal with a little noise for t.
func (s *Simulator) values(t sensor.Type, phase float64) []float32 {
	sin, cos := float32(math.Sin(phase)), float32(math.Cos(phase))
	switch t {
	case sensor.Accelerometer:
		return []float32{0.3*sin + s.noise(0.05), 0.3*cos + s.noise(0.05), 9.81 + s.noise(0.05)}
	case sensor.Gyroscope:
		return []float32{0.1*cos + s.noise(0.01), s.noise(0.01), -0.1*sin + s.noise(0.01)}
	case sensor.Magnetometer:
		return []float32{22 + 3*cos + s.noise(0.5), 5 + 3*sin + s.noise(0.5), -40 + s.noise(0.5)}
	case sensor.HeartRate:
		return []float32{72 + 6*sin + s.noise(1)}
	case sensor.Light:
		return []float32{320 + 40*cos + s.noise(5)}
	case sensor.Temperature:
		return []float32{21.5 + 0.5*sin + s.noise(0.05)}
	case sensor.Humidity:
		return []float32{45 + 5*cos + s.noise(0.5)}
	case sensor.Proximity:
		if sin > 0.8 {
			return []float32{0}
		}
		return []float32{5}
	case sensor.Pressure:
		return []float32{1013.25 + 2*sin + s.noise(0.1)}
	}
	return make([]float32, t.Arity())
}
