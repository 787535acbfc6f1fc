// Package sensor defines the sensor types carried over the link and the
// reading values produced from them.
package sensor

import (
	"fmt"
	"strings"
)

// Type identifies a physical sensor. The numeric value is the wire tag, so
// reordering or renumbering the constants breaks compatibility with peers.
type Type uint8

const (
	Accelerometer Type = 0
	Gyroscope     Type = 1
	Magnetometer  Type = 2
	HeartRate     Type = 3
	Light         Type = 4
	Temperature   Type = 5
	Humidity      Type = 6
	Proximity     Type = 7
	Pressure      Type = 8
)

// descriptor holds the fixed properties of a sensor type.
type descriptor struct {
	name  string
	arity int
	unit  string
}

// descriptors is indexed by Type. A new sensor type needs one row here and
// nothing else; the codec derives its frame layout from the arity.
var descriptors = [...]descriptor{
	Accelerometer: {name: "ACCELEROMETER", arity: 3, unit: "m/s²"},
	Gyroscope:     {name: "GYROSCOPE", arity: 3, unit: "rad/s"},
	Magnetometer:  {name: "MAGNETOMETER", arity: 3, unit: "µT"},
	HeartRate:     {name: "HEART_RATE", arity: 1, unit: "bpm"},
	Light:         {name: "LIGHT", arity: 1, unit: "lx"},
	Temperature:   {name: "TEMPERATURE", arity: 1, unit: "°C"},
	Humidity:      {name: "HUMIDITY", arity: 1, unit: "%"},
	Proximity:     {name: "PROXIMITY", arity: 1, unit: "cm"},
	Pressure:      {name: "PRESSURE", arity: 1, unit: "hPa"},
}

// Count is the number of defined sensor types.
const Count = len(descriptors)

// Valid reports whether t is one of the defined sensor types.
func (t Type) Valid() bool {
	return int(t) < len(descriptors)
}

// Arity returns the number of float components a reading of this type
// carries, or 0 for an undefined type.
func (t Type) Arity() int {
	if !t.Valid() {
		return 0
	}
	return descriptors[t].arity
}

// Unit returns the display unit for the type.
func (t Type) Unit() string {
	if !t.Valid() {
		return ""
	}
	return descriptors[t].unit
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
	return descriptors[t].name
}

// MarshalText encodes the type by name so JSON maps keyed by Type read well.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown sensor type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType looks up a sensor type by name. Matching ignores case and
// accepts '-' in place of '_' ("heart-rate" parses as HEART_RATE).
func ParseType(name string) (Type, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	for i, d := range descriptors {
		if d.name == normalized {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown sensor type %q", name)
}

// Types returns every defined sensor type in tag order.
func Types() []Type {
	types := make([]Type, len(descriptors))
	for i := range descriptors {
		types[i] = Type(i)
	}
	return types
}
