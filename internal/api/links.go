package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/sensor.link/internal/db"
)

// LinkConfigRequest represents the request body for creating/updating link configs
type LinkConfigRequest struct {
	Name        string `json:"name"`
	Transport   string `json:"transport"`
	PeerID      string `json:"peer_id"`
	PortPath    string `json:"port_path"`
	BaudRate    int    `json:"baud_rate"`
	DataBits    int    `json:"data_bits"`
	StopBits    int    `json:"stop_bits"`
	Parity      string `json:"parity"`
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

func (req LinkConfigRequest) toConfig(id int) *db.LinkConfig {
	return &db.LinkConfig{
		ID:          id,
		Name:        req.Name,
		Transport:   strings.ToLower(req.Transport),
		PeerID:      req.PeerID,
		PortPath:    req.PortPath,
		BaudRate:    req.BaudRate,
		DataBits:    req.DataBits,
		StopBits:    req.StopBits,
		Parity:      req.Parity,
		Broker:      req.Broker,
		TopicPrefix: req.TopicPrefix,
		Enabled:     req.Enabled,
		Description: req.Description,
	}
}

// validate runs the store's checks so bad input answers 400 rather than
// surfacing as a write failure.
func (req LinkConfigRequest) validate() error {
	if req.PortPath != "" && !isValidPortPath(req.PortPath) {
		return errors.New("invalid port path, must start with /dev/tty or /dev/serial")
	}
	return req.toConfig(0).Validate()
}

// handleLinkConfigsOrCreate handles GET and POST to /api/links
func (s *Server) handleLinkConfigsOrCreate(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "link config store not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.listLinkConfigs(w, r)
	case http.MethodPost:
		s.createLinkConfig(w, r)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listLinkConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.db.GetLinkConfigs()
	if err != nil {
		log.Printf("Error fetching link configs: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to fetch link configurations")
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

// handleLinkConfigByID handles GET/PUT/DELETE /api/links/:id
func (s *Server) handleLinkConfigByID(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "link config store not configured")
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/links/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing config ID")
		return
	}
	id, err := strconv.Atoi(pathParts[0])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid config ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getLinkConfig(w, id)
	case http.MethodPut:
		s.updateLinkConfig(w, r, id)
	case http.MethodDelete:
		s.deleteLinkConfig(w, id)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) getLinkConfig(w http.ResponseWriter, id int) {
	config, err := s.db.GetLinkConfig(id)
	if err != nil {
		log.Printf("Error fetching link config %d: %v", id, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to fetch link configuration")
		return
	}
	if config == nil {
		writeJSONError(w, http.StatusNotFound, "Configuration not found")
		return
	}
	writeJSON(w, http.StatusOK, config)
}

func (s *Server) createLinkConfig(w http.ResponseWriter, r *http.Request) {
	var req LinkConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	config := req.toConfig(0)
	if err := s.db.CreateLinkConfig(config); err != nil {
		log.Printf("Error creating link config: %v", err)
		if isUniqueViolation(err) {
			writeJSONError(w, http.StatusConflict, "Configuration with this name already exists")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "Failed to create link configuration")
		return
	}
	writeJSON(w, http.StatusCreated, config)
}

func (s *Server) updateLinkConfig(w http.ResponseWriter, r *http.Request, id int) {
	var req LinkConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.db.UpdateLinkConfig(req.toConfig(id)); err != nil {
		log.Printf("Error updating link config %d: %v", id, err)
		switch {
		case errors.Is(err, db.ErrNotFound):
			writeJSONError(w, http.StatusNotFound, "Configuration not found")
		case isUniqueViolation(err):
			writeJSONError(w, http.StatusConflict, "Configuration with this name already exists")
		default:
			writeJSONError(w, http.StatusInternalServerError, "Failed to update link configuration")
		}
		return
	}

	// Fetch the updated config to return it
	updated, err := s.db.GetLinkConfig(id)
	if err != nil || updated == nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Configuration updated but failed to fetch: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteLinkConfig(w http.ResponseWriter, id int) {
	if err := s.db.DeleteLinkConfig(id); err != nil {
		log.Printf("Error deleting link config %d: %v", id, err)
		if errors.Is(err, db.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "Configuration not found")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "Failed to delete link configuration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// isValidPortPath validates that a port path is in an allowed format
func isValidPortPath(path string) bool {
	return strings.HasPrefix(path, "/dev/tty") || strings.HasPrefix(path, "/dev/serial")
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
