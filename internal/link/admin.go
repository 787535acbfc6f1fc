package link

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"tailscale.com/tsweb"
)

// attachAdminRoutes mounts the debug endpoints shared by every link type.
// They are reachable only over localhost or a tailnet.
func attachAdminRoutes(mux *http.ServeMux, l Link) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("link-stats", "link counters as JSON", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(struct {
			LocalID string `json:"local_id"`
			Stats
		}{LocalID: l.LocalID(), Stats: l.Stats()}); err != nil {
			http.Error(w, "Failed to encode stats", http.StatusInternalServerError)
		}
	})

	// Server-Sent Events stream of inbound messages, one event per message.
	debug.HandleSilentFunc("link-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := l.Subscribe()
		defer l.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case msg, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", formatTail(msg)); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}

func formatTail(msg Message) string {
	return fmt.Sprintf("%s -> %s %s %s", msg.Source, msg.Dest, msg.Path, hex.EncodeToString(msg.Payload))
}
