package relay

import (
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sensor.link/internal/sensor"
)

// DefaultWindowSize is the number of recent readings a Board keeps per type.
const DefaultWindowSize = 120

// Entry is the most recent reading of one type.
type Entry struct {
	Reading    sensor.Reading `json:"reading"`
	Source     string         `json:"source"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Board holds what the receiving side displays: the latest reading per type
// and a bounded window of recent components. It lives only in memory.
type Board struct {
	mu         sync.RWMutex
	windowSize int
	latest     map[sensor.Type]Entry
	windows    map[sensor.Type]*ring
}

// NewBoard returns a Board keeping windowSize readings per type. A
// non-positive size falls back to DefaultWindowSize.
func NewBoard(windowSize int) *Board {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Board{
		windowSize: windowSize,
		latest:     make(map[sensor.Type]Entry),
		windows:    make(map[sensor.Type]*ring),
	}
}

// Record stores r. It has the Sink signature so a Board can be handed to a
// Receiver directly.
func (b *Board) Record(r sensor.Reading, m Meta) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest[r.Type()] = Entry{Reading: r, Source: m.Source, ReceivedAt: m.ReceivedAt}
	w, ok := b.windows[r.Type()]
	if !ok {
		w = newRing(b.windowSize)
		b.windows[r.Type()] = w
	}
	w.push(r.Values())
}

// Latest returns a copy of the latest entry per type.
func (b *Board) Latest() map[sensor.Type]Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[sensor.Type]Entry, len(b.latest))
	for t, e := range b.latest {
		out[t] = e
	}
	return out
}

// Types returns the types that have at least one reading, in tag order.
func (b *Board) Types() []sensor.Type {
	b.mu.RLock()
	defer b.mu.RUnlock()
	types := make([]sensor.Type, 0, len(b.latest))
	for t := range b.latest {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Window returns the recent components of type t, oldest first.
func (b *Board) Window(t sensor.Type) [][]float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	w, ok := b.windows[t]
	if !ok {
		return nil
	}
	return w.values()
}

// Number is a float64 that encodes NaN and ±Inf as JSON null.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// ComponentSummary describes one component across the window.
type ComponentSummary struct {
	Mean   Number `json:"mean"`
	StdDev Number `json:"stddev"`
	Min    Number `json:"min"`
	Max    Number `json:"max"`
}

// Summary describes the window of one type.
type Summary struct {
	Type       sensor.Type        `json:"type"`
	Unit       string             `json:"unit"`
	Count      int                `json:"count"`
	Components []ComponentSummary `json:"components"`
}

// Summary computes per-component statistics over the window of type t. It
// reports false when no reading of t has been recorded.
func (b *Board) Summary(t sensor.Type) (Summary, bool) {
	window := b.Window(t)
	if len(window) == 0 {
		return Summary{}, false
	}

	sum := Summary{Type: t, Unit: t.Unit(), Count: len(window)}
	column := make([]float64, len(window))
	for c := 0; c < t.Arity(); c++ {
		for i, vals := range window {
			column[i] = float64(vals[c])
		}
		mean, std := stat.MeanStdDev(column, nil)
		if len(column) < 2 {
			std = 0
		}
		sum.Components = append(sum.Components, ComponentSummary{
			Mean:   Number(mean),
			StdDev: Number(std),
			Min:    Number(floats.Min(column)),
			Max:    Number(floats.Max(column)),
		})
	}
	return sum, true
}

// ring is a fixed-capacity FIFO of component slices.
type ring struct {
	buf  [][]float32
	next int
	full bool
}

func newRing(size int) *ring {
	return &ring{buf: make([][]float32, size)}
}

func (r *ring) push(v []float32) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) values() [][]float32 {
	if !r.full {
		return append([][]float32(nil), r.buf[:r.next]...)
	}
	out := make([][]float32, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}
