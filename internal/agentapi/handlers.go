package agentapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"medialib/internal/cache"
	"medialib/internal/logging"
	"medialib/internal/pipeline"
	"medialib/internal/syncclient"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPort is the port the control API listens on.
const DefaultPort = "8877"

// Handlers serves the agent control API.
type Handlers struct {
	scanner *pipeline.Scanner
	store   *cache.Store
	client  *syncclient.Client
}

// New creates the control API handlers.
func New(scanner *pipeline.Scanner, store *cache.Store, client *syncclient.Client) *Handlers {
	return &Handlers{scanner: scanner, store: store, client: client}
}

// Routes registers the control API routes on the given router. The
// Prometheus exporter is mounted here so the agent's pipeline, hash,
// and outbox metrics are scrapable on the control port.
func (h *Handlers) Routes(router *mux.Router) {
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	agentRouter := router.PathPrefix("/agent").Subrouter()
	agentRouter.HandleFunc("/ping", h.Ping).Methods("GET")
	agentRouter.HandleFunc("/stats", h.Stats).Methods("GET")
	agentRouter.HandleFunc("/ls", h.List).Methods("GET")
	agentRouter.HandleFunc("/cache_info", h.CacheInfo).Methods("GET")
	agentRouter.HandleFunc("/clear_cache", h.ClearCache).Methods("POST")
	agentRouter.HandleFunc("/compact_cache", h.CompactCache).Methods("POST")
	agentRouter.HandleFunc("/scan_now", h.ScanNow).Methods("POST")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logging.Error("failed to encode JSON error response: %v", err)
	}
}

// Ping reports liveness.
func (h *Handlers) Ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]bool{"ok": true})
}

// statsResponse wraps scan stats with a host load snapshot.
type statsResponse struct {
	pipeline.Stats
	System systemSnapshot `json:"system"`
}

// Stats returns the current or most recent scan snapshot together with
// host CPU, memory, and load readings.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statsResponse{
		Stats:  h.scanner.Stats(),
		System: collectSystem(r.Context()),
	})
}

type dirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type listResponse struct {
	Path  string     `json:"path"`
	Dirs  []dirEntry `json:"dirs"`
	Files []dirEntry `json:"files"`
}

// List browses a directory on the agent host, directories first, both
// groups sorted case-insensitively. Used by the server operator to
// pick remote roots.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			writeJSONError(w, "not found", http.StatusNotFound)
		case os.IsPermission(err):
			writeJSONError(w, "permission denied", http.StatusForbidden)
		default:
			writeJSONError(w, "failed to read directory", http.StatusInternalServerError)
		}
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	resp := listResponse{Path: path, Dirs: []dirEntry{}, Files: []dirEntry{}}
	for _, e := range entries {
		item := dirEntry{Name: e.Name(), Path: filepath.Join(path, e.Name())}
		if e.IsDir() {
			resp.Dirs = append(resp.Dirs, item)
		} else {
			resp.Files = append(resp.Files, item)
		}
	}

	writeJSON(w, resp)
}

// CacheInfo reports cache size, row counts, and freshness timestamps.
func (h *Handlers) CacheInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.store.Info(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, info)
}

// ClearCache empties the agent cache. The next scan rebuilds it.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	logging.Info("agent cache cleared")
	writeJSON(w, map[string]bool{"ok": true, "cleared": true})
}

// CompactCache reclaims free pages in the cache database.
func (h *Handlers) CompactCache(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Compact(r.Context()); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

// ScanNow triggers a scan cycle in the background, unless one is
// already running.
func (h *Handlers) ScanNow(w http.ResponseWriter, _ *http.Request) {
	if !h.scanner.TryStart() {
		writeJSON(w, map[string]interface{}{"ok": true, "started": false, "message": "already running"})
		return
	}

	go func() {
		defer h.scanner.Finish()

		ctx, cancel := context.WithTimeout(context.Background(), 24*time.Hour)
		defer cancel()

		cfg, err := h.client.FetchConfig(ctx)
		if err != nil {
			logging.Error("scan_now: failed to fetch config: %v", err)
			return
		}
		if len(cfg.RemoteRoots) == 0 {
			logging.Warn("scan_now: no remote roots configured")
			return
		}

		if _, err := h.scanner.RunCycle(ctx, cfg); err != nil {
			logging.Error("scan_now: cycle failed: %v", err)
		}
	}()

	writeJSON(w, map[string]interface{}{"ok": true, "started": true})
}
