package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor.link/internal/codec"
	"github.com/banshee-data/sensor.link/internal/link"
	"github.com/banshee-data/sensor.link/internal/relay"
	"github.com/banshee-data/sensor.link/internal/sampler"
	"github.com/banshee-data/sensor.link/internal/sensor"
	"github.com/banshee-data/sensor.link/internal/testutil"
	"github.com/banshee-data/sensor.link/internal/timeutil"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type testRig struct {
	watch    *link.LoopbackLink
	phone    *link.LoopbackLink
	emitter  *relay.Emitter
	receiver *relay.Receiver
	board    *relay.Board
	mux      *http.ServeMux
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	watch, phone := link.NewLoopbackPair("watch", "phone")
	t.Cleanup(func() {
		watch.Close()
		phone.Close()
	})
	board := relay.NewBoard(16)
	rig := &testRig{
		watch:    watch,
		phone:    phone,
		emitter:  relay.NewEmitter(sampler.New(100*time.Millisecond), codec.Codec{}, watch, "phone"),
		receiver: relay.NewReceiver(codec.Codec{}, timeutil.NewMockClock(epoch), board.Record),
		board:    board,
	}
	rig.mux = NewServer(watch, nil).WithEmitter(rig.emitter).WithReceiver(rig.receiver, board).ServeMux()
	return rig
}

func (rig *testRig) get(path string) *httptest.ResponseRecorder {
	w := testutil.NewTestRecorder()
	rig.mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, path))
	return w
}

func TestEndpointsUnavailableWithoutParts(t *testing.T) {
	mux := NewServer(nil, nil).ServeMux()
	for _, path := range []string{"/api/readings", "/api/readings/temperature/summary", "/api/sampler", "/api/link", "/api/links", "/api/links/1", "/api/charts/readings?type=light"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			testutil.AssertStatusCode(t, w.Code, http.StatusServiceUnavailable)
		})
	}
}

func TestShowReadings(t *testing.T) {
	rig := newTestRig(t)
	rig.board.Record(sensor.NewReading(sensor.Temperature, 21.5), relay.Meta{Source: "watch", ReceivedAt: epoch})
	rig.board.Record(sensor.NewReading(sensor.Accelerometer, 0, 0, 9.81), relay.Meta{Source: "watch", ReceivedAt: epoch})

	w := rig.get("/api/readings")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got map[string]struct {
		Reading struct {
			Type   string    `json:"type"`
			Values []float64 `json:"values"`
			Unit   string    `json:"unit"`
		} `json:"reading"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, []float64{21.5}, got["TEMPERATURE"].Reading.Values)
	assert.Equal(t, "°C", got["TEMPERATURE"].Reading.Unit)
	assert.Equal(t, "watch", got["ACCELEROMETER"].Source)
	assert.Len(t, got["ACCELEROMETER"].Reading.Values, 3)
}

func TestShowReadingSummary(t *testing.T) {
	rig := newTestRig(t)
	rig.board.Record(sensor.NewReading(sensor.Temperature, 21), relay.Meta{Source: "watch"})
	rig.board.Record(sensor.NewReading(sensor.Temperature, 23), relay.Meta{Source: "watch"})

	w := rig.get("/api/readings/temperature/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Type       string `json:"type"`
		Count      int    `json:"count"`
		Components []struct {
			Mean float64 `json:"mean"`
			Min  float64 `json:"min"`
			Max  float64 `json:"max"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "TEMPERATURE", got.Type)
	assert.Equal(t, 2, got.Count)
	require.Len(t, got.Components, 1)
	assert.InDelta(t, 22.0, got.Components[0].Mean, 1e-9)
	assert.Equal(t, 21.0, got.Components[0].Min)
	assert.Equal(t, 23.0, got.Components[0].Max)

	testutil.AssertStatusCode(t, rig.get("/api/readings/humidity/summary").Code, http.StatusNotFound)
	testutil.AssertStatusCode(t, rig.get("/api/readings/location/summary").Code, http.StatusBadRequest)
	testutil.AssertStatusCode(t, rig.get("/api/readings/temperature/latest").Code, http.StatusNotFound)
}

func TestShowSamplerAndLink(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	ok, err := rig.emitter.Offer(ctx, sensor.Sample{Type: sensor.Light, TimestampNanos: 0, Values: []float32{300}})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = rig.emitter.Offer(ctx, sensor.Sample{Type: sensor.Light, TimestampNanos: int64(10 * time.Millisecond), Values: []float32{301}})
	require.NoError(t, err)
	require.False(t, ok)

	w := rig.get("/api/sampler")
	require.Equal(t, http.StatusOK, w.Code)
	var smp struct {
		MinInterval string `json:"min_interval"`
		Types       map[string]struct {
			Approved uint64 `json:"approved"`
			Rejected uint64 `json:"rejected"`
		} `json:"types"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &smp))
	assert.Equal(t, "100ms", smp.MinInterval)
	assert.Equal(t, uint64(1), smp.Types["LIGHT"].Approved)
	assert.Equal(t, uint64(1), smp.Types["LIGHT"].Rejected)

	w = rig.get("/api/link")
	require.Equal(t, http.StatusOK, w.Code)
	var lk linkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lk))
	assert.Equal(t, "watch", lk.LocalID)
	assert.Equal(t, "phone", lk.PeerID)
	assert.Equal(t, uint64(1), lk.Link.Sent)
	require.NotNil(t, lk.Emitter)
	assert.Equal(t, relay.EmitterStats{Offered: 2, Emitted: 1, Throttled: 1}, *lk.Emitter)
	require.NotNil(t, lk.Receiver)
}

func TestMethodNotAllowed(t *testing.T) {
	rig := newTestRig(t)
	for _, path := range []string{"/api/readings", "/api/sampler", "/api/link", "/api/charts/readings?type=light"} {
		w := httptest.NewRecorder()
		rig.mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
	}
}

func TestShowReadingsChart(t *testing.T) {
	rig := newTestRig(t)
	for _, v := range []float32{1, 2, 3} {
		rig.board.Record(sensor.NewReading(sensor.Gyroscope, v, -v, 0), relay.Meta{})
	}

	w := rig.get("/api/charts/readings?type=gyroscope")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "GYROSCOPE")
	assert.Contains(t, body, "echarts")

	testutil.AssertStatusCode(t, rig.get("/api/charts/readings").Code, http.StatusBadRequest)
	testutil.AssertStatusCode(t, rig.get("/api/charts/readings?type=sonar").Code, http.StatusBadRequest)
}

func TestComponentName(t *testing.T) {
	assert.Equal(t, "TEMPERATURE", componentName(sensor.Temperature, 0, 1))
	assert.Equal(t, "y", componentName(sensor.Accelerometer, 1, 3))
	assert.Equal(t, "3", componentName(sensor.Accelerometer, 3, 4))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/readings?x=1", nil))

	testutil.AssertStatusCode(t, w.Code, http.StatusTeapot)
	out := buf.String()
	if !strings.Contains(out, "/api/readings?x=1") || !strings.Contains(out, "418") {
		t.Errorf("log line %q missing request URI or status", out)
	}
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"302"+colorReset, statusCodeColor(302))
	assert.Equal(t, colorBoldRed+"503"+colorReset, statusCodeColor(503))
	assert.Equal(t, "100", statusCodeColor(100))
}
