package sensor

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Reading is a typed sensor sample without its timestamp. The component
// slice is private and copied on the way in and out, so a Reading never
// changes after construction.
type Reading struct {
	typ    Type
	values []float32
}

// NewReading builds a Reading from the given components. The arity is not
// checked here; Validate (and the codec) report a mismatch.
func NewReading(t Type, values ...float32) Reading {
	return Reading{typ: t, values: append([]float32(nil), values...)}
}

// Type returns the sensor type of the reading.
func (r Reading) Type() Type { return r.typ }

// Len returns the number of components.
func (r Reading) Len() int { return len(r.values) }

// At returns component i.
func (r Reading) At(i int) float32 { return r.values[i] }

// Values returns a copy of the components.
func (r Reading) Values() []float32 {
	return append([]float32(nil), r.values...)
}

// Validate reports an unknown type or a component count that does not match
// the type's arity.
func (r Reading) Validate() error {
	if !r.typ.Valid() {
		return fmt.Errorf("unknown sensor type %d", uint8(r.typ))
	}
	if len(r.values) != r.typ.Arity() {
		return fmt.Errorf("%s expects %d components, got %d", r.typ, r.typ.Arity(), len(r.values))
	}
	return nil
}

// Equal reports whether both readings have the same type and bit-identical
// components. NaN equals NaN when the payload bits match.
func (r Reading) Equal(other Reading) bool {
	if r.typ != other.typ || len(r.values) != len(other.values) {
		return false
	}
	for i := range r.values {
		if math.Float32bits(r.values[i]) != math.Float32bits(other.values[i]) {
			return false
		}
	}
	return true
}

func (r Reading) String() string {
	parts := make([]string, len(r.values))
	for i, v := range r.values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("%s[%s]", r.typ, strings.Join(parts, ", "))
}

type readingJSON struct {
	Type   Type      `json:"type"`
	Values []float32 `json:"values"`
	Unit   string    `json:"unit"`
}

// MarshalJSON renders the reading for the display API. Non-finite values
// are not representable in JSON and are emitted as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	values := make([]*float32, len(r.values))
	for i := range r.values {
		v := r.values[i]
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			continue
		}
		values[i] = &v
	}
	return json.Marshal(struct {
		Type   Type       `json:"type"`
		Values []*float32 `json:"values"`
		Unit   string     `json:"unit"`
	}{r.typ, values, r.typ.Unit()})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON with finite values.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var aux readingJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = NewReading(aux.Type, aux.Values...)
	return nil
}

// Sample is what a sensor source delivers: a reading plus the source's
// event timestamp in nanoseconds. Timestamps are expected to be
// non-decreasing per type.
type Sample struct {
	Type           Type
	TimestampNanos int64
	Values         []float32
}

// Reading converts the sample into an immutable Reading.
func (s Sample) Reading() Reading {
	return NewReading(s.Type, s.Values...)
}
