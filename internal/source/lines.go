package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/sensor.link/internal/monitoring"
	"github.com/banshee-data/sensor.link/internal/sensor"
)

// ErrMalformedLine is returned by ParseLine for text that is not
// TYPE,TIMESTAMP_NANOS,V1[,V2...].
var ErrMalformedLine = errors.New("malformed sample line")

// ParseLine parses one fixture line such as "TEMPERATURE,123456789,21.5".
// The component count is not checked here; the emitter rejects readings
// whose arity does not match their type.
func ParseLine(line string) (sensor.Sample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 3 {
		return sensor.Sample{}, fmt.Errorf("%w: %q has %d fields, want at least 3", ErrMalformedLine, line, len(fields))
	}

	t, err := sensor.ParseType(strings.TrimSpace(fields[0]))
	if err != nil {
		return sensor.Sample{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return sensor.Sample{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedLine, err)
	}

	values := make([]float32, 0, len(fields)-2)
	for _, f := range fields[2:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return sensor.Sample{}, fmt.Errorf("%w: value: %v", ErrMalformedLine, err)
		}
		values = append(values, float32(v))
	}

	return sensor.Sample{Type: t, TimestampNanos: ts, Values: values}, nil
}

// ScanLines parses r line by line and sends each sample to out. Blank lines
// and lines starting with '#' are skipped; malformed lines are logged and
// skipped. It returns the number of samples sent.
func ScanLines(ctx context.Context, r io.Reader, out chan<- sensor.Sample) (int, error) {
	scan := bufio.NewScanner(r)
	sent, lineNo := 0, 0
	for scan.Scan() {
		lineNo++
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		sample, err := ParseLine(line)
		if err != nil {
			monitoring.Logf("fixture line %d: %v", lineNo, err)
			continue
		}

		select {
		case out <- sample:
			sent++
		case <-ctx.Done():
			return sent, ctx.Err()
		}
	}
	return sent, scan.Err()
}
