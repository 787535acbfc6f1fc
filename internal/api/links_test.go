package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor.link/internal/db"
	"github.com/banshee-data/sensor.link/internal/link"
)

func setupLinkServer(t *testing.T) *http.ServeMux {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Failed to create DB: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewServer(nil, database).ServeMux()
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

func TestLinkConfigEndpoints(t *testing.T) {
	mux := setupLinkServer(t)

	w := doJSON(t, mux, http.MethodGet, "/api/links", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	req := LinkConfigRequest{
		Name:      "Wrist UART",
		Transport: "Serial",
		PeerID:    "phone",
		PortPath:  "/dev/ttyUSB0",
		Parity:    "none",
		Enabled:   true,
	}
	w = doJSON(t, mux, http.MethodPost, "/api/links", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created db.LinkConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Positive(t, created.ID)
	want := db.LinkConfig{
		ID:          created.ID,
		Name:        "Wrist UART",
		Transport:   "serial",
		PeerID:      "phone",
		PortPath:    "/dev/ttyUSB0",
		BaudRate:    link.DefaultBaudRate,
		DataBits:    8,
		StopBits:    1,
		Parity:      "N",
		TopicPrefix: link.DefaultTopicPrefix,
		Enabled:     true,
	}
	if diff := cmp.Diff(want, created, cmpopts.IgnoreFields(db.LinkConfig{}, "CreatedAt", "UpdatedAt")); diff != "" {
		t.Errorf("created config mismatch (-want +got):\n%s", diff)
	}

	t.Run("duplicate name conflicts", func(t *testing.T) {
		w := doJSON(t, mux, http.MethodPost, "/api/links", req)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("get by id", func(t *testing.T) {
		w := doJSON(t, mux, http.MethodGet, "/api/links/1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got db.LinkConfig
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "Wrist UART", got.Name)
	})

	t.Run("update", func(t *testing.T) {
		upd := req
		upd.Transport = "mqtt"
		upd.PortPath = ""
		upd.Broker = "tcp://localhost:1883"
		upd.TopicPrefix = "lab"
		w := doJSON(t, mux, http.MethodPut, "/api/links/1", upd)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got db.LinkConfig
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "mqtt", got.Transport)
		assert.Equal(t, "lab", got.TopicPrefix)
	})

	t.Run("update missing", func(t *testing.T) {
		w := doJSON(t, mux, http.MethodPut, "/api/links/99", req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := doJSON(t, mux, http.MethodDelete, "/api/links/1", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		w = doJSON(t, mux, http.MethodGet, "/api/links/1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		w = doJSON(t, mux, http.MethodDelete, "/api/links/1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLinkConfigEndpointErrors(t *testing.T) {
	mux := setupLinkServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad json", http.MethodPost, "/api/links", "not an object", http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/links", LinkConfigRequest{Transport: "loopback"}, http.StatusBadRequest},
		{"unknown transport", http.MethodPost, "/api/links", LinkConfigRequest{Name: "x", Transport: "pigeon"}, http.StatusBadRequest},
		{"bad port path", http.MethodPost, "/api/links", LinkConfigRequest{Name: "x", Transport: "serial", PortPath: "/etc/passwd"}, http.StatusBadRequest},
		{"mqtt without broker", http.MethodPost, "/api/links", LinkConfigRequest{Name: "x", Transport: "mqtt"}, http.StatusBadRequest},
		{"missing id", http.MethodGet, "/api/links/", nil, http.StatusBadRequest},
		{"invalid id", http.MethodGet, "/api/links/abc", nil, http.StatusBadRequest},
		{"collection method", http.MethodDelete, "/api/links", nil, http.StatusMethodNotAllowed},
		{"item method", http.MethodPost, "/api/links/1", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, mux, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}
