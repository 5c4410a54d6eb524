package ingest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"medialib/internal/catalog"
	"medialib/internal/logging"
)

// Files lists cataloged files, newest observation order first by path
// grouping, with optional limit and offset query parameters.
func (h *Handlers) Files(w http.ResponseWriter, r *http.Request) {
	limit := 0
	offset := 0
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o > 0 {
		offset = o
	}

	rows, err := h.cat.LibraryRows(r.Context(), limit, offset)
	if err != nil {
		logging.Error("failed to list files: %v", err)
		writeJSONError(w, "failed to list files", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []catalog.FileRow{}
	}

	writeJSON(w, map[string]interface{}{"files": rows, "count": len(rows)})
}

// Duplicates returns duplicate groups. Suspected duplicates (sampled
// hash plus size match, no full hash) are included unless suspected=false.
func (h *Handlers) Duplicates(w http.ResponseWriter, r *http.Request) {
	includeSuspected := true
	if v := r.URL.Query().Get("suspected"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeJSONError(w, "suspected must be a boolean", http.StatusBadRequest)
			return
		}
		includeSuspected = parsed
	}

	rows, err := h.cat.Duplicates(r.Context(), includeSuspected)
	if err != nil {
		logging.Error("failed to list duplicates: %v", err)
		writeJSONError(w, "failed to list duplicates", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []catalog.DuplicateRow{}
	}

	writeJSON(w, map[string]interface{}{"duplicates": rows, "count": len(rows)})
}

// Junk lists junk candidates awaiting review.
func (h *Handlers) Junk(w http.ResponseWriter, r *http.Request) {
	rows, err := h.cat.ListJunk(r.Context())
	if err != nil {
		logging.Error("failed to list junk candidates: %v", err)
		writeJSONError(w, "failed to list junk candidates", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []catalog.JunkRow{}
	}

	writeJSON(w, map[string]interface{}{"junk": rows, "count": len(rows)})
}

type junkDeleteRequest struct {
	Path string `json:"path"`
}

// DeleteJunk removes a path from the junk candidate queue.
func (h *Handlers) DeleteJunk(w http.ResponseWriter, r *http.Request) {
	var req junkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	if err := h.cat.DeleteJunk(r.Context(), req.Path); err != nil {
		logging.Error("failed to delete junk candidate %s: %v", req.Path, err)
		writeJSONError(w, "failed to delete junk candidate", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "deleted")
}

// UnknownExtensions returns extensions seen on files that no category
// currently claims, with occurrence counts.
func (h *Handlers) UnknownExtensions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.cat.UnknownExtensions(r.Context())
	if err != nil {
		logging.Error("failed to list unknown extensions: %v", err)
		writeJSONError(w, "failed to list unknown extensions", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []catalog.ExtensionCount{}
	}

	writeJSON(w, map[string]interface{}{"extensions": rows, "count": len(rows)})
}

type extensionCategoryRequest struct {
	Ext      string `json:"ext"`
	Category string `json:"category"`
}

// SetExtensionCategory reassigns every cataloged file with the given
// extension to a category. Used to promote extensions surfaced by
// UnknownExtensions.
func (h *Handlers) SetExtensionCategory(w http.ResponseWriter, r *http.Request) {
	var req extensionCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ext == "" || req.Category == "" {
		writeJSONError(w, "ext and category are required", http.StatusBadRequest)
		return
	}

	switch req.Category {
	case "video", "image", "subtitle", "xml", "other", "unknown":
	default:
		writeJSONError(w, "invalid category", http.StatusBadRequest)
		return
	}

	if err := h.cat.SetCategoryForExtension(r.Context(), req.Ext, req.Category); err != nil {
		logging.Error("failed to set category for %s: %v", req.Ext, err)
		writeJSONError(w, "failed to set category", http.StatusInternalServerError)
		return
	}

	logging.Info("extension %s reassigned to category %s", req.Ext, req.Category)
	writeJSONStatus(w, "updated")
}

// Stats summarizes catalog contents.
func (h *Handlers) Stats(w http.ResponseWriter, _ *http.Request) {
	stats := h.cat.GetStats()
	total := 0
	for _, n := range stats.FilesByKind {
		total += n
	}

	writeJSON(w, map[string]interface{}{
		"total_files":     total,
		"files_by_kind":   stats.FilesByKind,
		"junk_candidates": stats.JunkCandidates,
		"remote_roots":    stats.RemoteRoots,
	})
}
