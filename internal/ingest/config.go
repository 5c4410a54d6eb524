package ingest

import (
	"encoding/json"
	"net/http"

	"medialib/internal/logging"
	"medialib/internal/syncclient"
)

// Config serves the agent operating configuration. Remote roots come
// from the catalog so edits take effect on the agents' next poll.
func (h *Handlers) Config(w http.ResponseWriter, r *http.Request) {
	cfg := h.base

	roots, err := h.cat.RemoteRoots(r.Context())
	if err != nil {
		logging.Error("failed to load remote roots: %v", err)
		writeJSONError(w, "failed to load remote roots", http.StatusInternalServerError)
		return
	}
	cfg.RemoteRoots = roots

	writeJSON(w, cfg)
}

// ListRemoteRoots returns the configured remote scan roots.
func (h *Handlers) ListRemoteRoots(w http.ResponseWriter, r *http.Request) {
	roots, err := h.cat.RemoteRoots(r.Context())
	if err != nil {
		writeJSONError(w, "failed to load remote roots", http.StatusInternalServerError)
		return
	}
	if roots == nil {
		roots = []string{}
	}
	writeJSON(w, map[string][]string{"remote_roots": roots})
}

type remoteRootRequest struct {
	Path string `json:"path"`
}

// AddRemoteRoot adds a path to the remote scan root list.
func (h *Handlers) AddRemoteRoot(w http.ResponseWriter, r *http.Request) {
	var req remoteRootRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	if err := h.cat.AddRemoteRoot(r.Context(), req.Path); err != nil {
		logging.Error("failed to add remote root %s: %v", req.Path, err)
		writeJSONError(w, "failed to add remote root", http.StatusInternalServerError)
		return
	}

	logging.Info("remote root added: %s", req.Path)
	writeJSONStatus(w, "added")
}

// RemoveRemoteRoot removes a path from the remote scan root list.
func (h *Handlers) RemoveRemoteRoot(w http.ResponseWriter, r *http.Request) {
	var req remoteRootRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	if err := h.cat.RemoveRemoteRoot(r.Context(), req.Path); err != nil {
		logging.Error("failed to remove remote root %s: %v", req.Path, err)
		writeJSONError(w, "failed to remove remote root", http.StatusInternalServerError)
		return
	}

	logging.Info("remote root removed: %s", req.Path)
	writeJSONStatus(w, "removed")
}

// BaseConfig returns the configuration served before remote roots are
// attached. Useful for tests and startup logging.
func (h *Handlers) BaseConfig() syncclient.AgentConfig {
	return h.base
}
