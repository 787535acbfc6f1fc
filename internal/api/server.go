package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/sensor.link/internal/db"
	"github.com/banshee-data/sensor.link/internal/link"
	"github.com/banshee-data/sensor.link/internal/relay"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes the relay state and the link config store over HTTP.
// Any of its parts may be nil; the matching endpoints then answer 503.
type Server struct {
	link     link.Link
	db       *db.DB
	emitter  *relay.Emitter
	receiver *relay.Receiver
	board    *relay.Board
}

func NewServer(l link.Link, database *db.DB) *Server {
	return &Server{
		link: l,
		db:   database,
	}
}

// WithEmitter attaches the sending side for /api/sampler and /api/link.
func (s *Server) WithEmitter(e *relay.Emitter) *Server {
	s.emitter = e
	return s
}

// WithReceiver attaches the receiving side and the board it fills.
func (s *Server) WithReceiver(r *relay.Receiver, b *relay.Board) *Server {
	s.receiver = r
	s.board = b
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/readings", s.showReadings)
	mux.HandleFunc("/api/readings/", s.showReadingSummary)
	mux.HandleFunc("/api/sampler", s.showSampler)
	mux.HandleFunc("/api/link", s.showLink)
	mux.HandleFunc("/api/links", s.handleLinkConfigsOrCreate)
	mux.HandleFunc("/api/links/", s.handleLinkConfigByID)
	mux.HandleFunc("/api/charts/readings", s.showReadingsChart)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
