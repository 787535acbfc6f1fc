package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor.link/internal/codec"
	"github.com/banshee-data/sensor.link/internal/link"
	"github.com/banshee-data/sensor.link/internal/sensor"
)

func TestDumpFrame(t *testing.T) {
	var buf bytes.Buffer
	ok := dump(&buf, "05 41 ac 00 00", options{})
	require.True(t, ok)
	assert.Equal(t, "TEMPERATURE[21.5] °C\n", buf.String())
}

func TestDumpErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bad hex", "zz", "invalid hex"},
		{"truncated", "0541ac", "truncated frame"},
		{"unknown tag", "c800000000", "unknown sensor type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.False(t, dump(&buf, tt.input, options{}))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestDumpEnvelopeJSON(t *testing.T) {
	frame, err := codec.Encode(sensor.NewReading(sensor.Light, 300))
	require.NoError(t, err)
	env, err := link.EncodeEnvelope(link.Message{Source: "watch", Dest: "phone", Path: link.SensorPath, Payload: frame})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.True(t, dump(&buf, hex.EncodeToString(env), options{envelope: true, json: true}))
	assert.JSONEq(t,
		`{"source":"watch","dest":"phone","path":"`+link.SensorPath+`","reading":{"type":"LIGHT","values":[300],"unit":"lx"}}`,
		buf.String())

	buf.Reset()
	require.True(t, dump(&buf, hex.EncodeToString(env), options{envelope: true}))
	assert.True(t, strings.HasPrefix(buf.String(), "watch -> phone "+link.SensorPath))

	env[len(env)-1] ^= 0xFF
	buf.Reset()
	assert.False(t, dump(&buf, hex.EncodeToString(env), options{envelope: true}))
	assert.Contains(t, buf.String(), "corrupt envelope")
}

func TestDumpAll(t *testing.T) {
	in := strings.NewReader("# fixture\n0541ac0000\n\n0541ac\n0841000000\n")
	var out bytes.Buffer
	failed, err := dumpAll(in, &out, options{})
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 3, strings.Count(out.String(), "\n"))
}
