// Package http exposes framegate snapshots over HTTP: a middleware that
// tags requests and responses with the current performance level, a JSON
// snapshot endpoint and a beacon endpoint for remote rendering clients.
package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mushtruk/framegate"
)

// Config holds configuration for the snapshot middleware.
type Config struct {
	SkipPaths    []string
	LevelHeader  string
	DeviceHeader string
	ScoreHeader  string
	// ModeHeader is set to "1" while low performance mode is on.
	ModeHeader string
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/readiness",
		},
		LevelHeader:  "X-Performance-Level",
		DeviceHeader: "X-Device-Tier",
		ScoreHeader:  "X-Performance-Score",
		ModeHeader:   "X-Low-Performance-Mode",
	}
}

// Middleware attaches the store's current snapshot to each request context
// and mirrors it into response headers. Handlers read it back with
// framegate.FromContext. An empty header name disables that header.
func Middleware(store *framegate.Store, cfg Config) func(http.Handler) http.Handler {
	skipPaths := cfg.SkipPaths

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			for _, skipPrefix := range skipPaths {
				if strings.HasPrefix(path, skipPrefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			snap := store.Load()
			h := w.Header()
			if cfg.LevelHeader != "" {
				h.Set(cfg.LevelHeader, snap.Level.String())
			}
			if cfg.DeviceHeader != "" {
				h.Set(cfg.DeviceHeader, snap.Metrics.DeviceTier.String())
			}
			if cfg.ScoreHeader != "" {
				h.Set(cfg.ScoreHeader, strconv.FormatFloat(float64(snap.Score), 'f', 2, 64))
			}
			if cfg.ModeHeader != "" && snap.LowPerformanceMode {
				h.Set(cfg.ModeHeader, "1")
			}

			next.ServeHTTP(w, r.WithContext(framegate.NewContext(r.Context(), snap)))
		})
	}
}

// SnapshotResponse is the JSON body served by SnapshotHandler and the
// beacon endpoint.
type SnapshotResponse struct {
	Session   string             `json:"session,omitempty"`
	Snapshot  framegate.Snapshot `json:"snapshot"`
	Classes   []string           `json:"classes"`
	Variables map[string]string  `json:"variables"`
}

// NewSnapshotResponse pairs snap with its root classes and variables.
func NewSnapshotResponse(session string, snap framegate.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		Session:   session,
		Snapshot:  snap,
		Classes:   framegate.RootClasses(snap),
		Variables: framegate.RootVariables(snap),
	}
}

// SnapshotHandler serves the store's current snapshot as JSON.
func SnapshotHandler(store *framegate.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, NewSnapshotResponse("", store.Load()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
