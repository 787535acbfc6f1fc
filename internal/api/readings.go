package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/banshee-data/sensor.link/internal/link"
	"github.com/banshee-data/sensor.link/internal/relay"
	"github.com/banshee-data/sensor.link/internal/sampler"
	"github.com/banshee-data/sensor.link/internal/sensor"
)

// showReadings handles GET /api/readings, the latest reading per type.
func (s *Server) showReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.board == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "receiver not running")
		return
	}
	writeJSON(w, http.StatusOK, s.board.Latest())
}

// showReadingSummary handles GET /api/readings/{type}/summary
func (s *Server) showReadingSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.board == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "receiver not running")
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/readings/"), "/"), "/")
	if len(parts) != 2 || parts[1] != "summary" {
		writeJSONError(w, http.StatusNotFound, "Not found")
		return
	}
	t, err := sensor.ParseType(parts[0])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, ok := s.board.Summary(t)
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no %s readings yet", t))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type samplerResponse struct {
	MinInterval string                            `json:"min_interval"`
	Types       map[sensor.Type]sampler.TypeStats `json:"types"`
}

// showSampler handles GET /api/sampler
func (s *Server) showSampler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.emitter == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "emitter not running")
		return
	}
	smp := s.emitter.Sampler()
	writeJSON(w, http.StatusOK, samplerResponse{
		MinInterval: smp.MinInterval().String(),
		Types:       smp.Stats(),
	})
}

type linkResponse struct {
	LocalID  string               `json:"local_id"`
	PeerID   string               `json:"peer_id,omitempty"`
	Link     link.Stats           `json:"link"`
	Emitter  *relay.EmitterStats  `json:"emitter,omitempty"`
	Receiver *relay.ReceiverStats `json:"receiver,omitempty"`
}

// showLink handles GET /api/link, transport and relay counters.
func (s *Server) showLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.link == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "link not configured")
		return
	}

	resp := linkResponse{LocalID: s.link.LocalID(), Link: s.link.Stats()}
	if s.emitter != nil {
		st := s.emitter.Stats()
		resp.PeerID = s.emitter.Dest()
		resp.Emitter = &st
	}
	if s.receiver != nil {
		st := s.receiver.Stats()
		resp.Receiver = &st
	}
	writeJSON(w, http.StatusOK, resp)
}
