package ingest

import (
	"net/http"

	"medialib/internal/catalog"
	"medialib/internal/syncclient"

	"github.com/gorilla/mux"
)

// Handlers serves the ingestion and catalog read API.
type Handlers struct {
	cat  *catalog.Catalog
	base syncclient.AgentConfig
}

// New creates the API handlers. base is the agent configuration served
// at /ingest/config; remote roots are read from the catalog per request.
func New(cat *catalog.Catalog, base syncclient.AgentConfig) *Handlers {
	return &Handlers{cat: cat, base: base}
}

// Routes registers all API routes on the given router.
func (h *Handlers) Routes(router *mux.Router) {
	router.HandleFunc("/", h.Root).Methods("GET")
	router.HandleFunc("/health", h.Health).Methods("GET")

	ingestRouter := router.PathPrefix("/ingest").Subrouter()
	ingestRouter.HandleFunc("/config", h.Config).Methods("GET")
	ingestRouter.HandleFunc("/batch", h.Batch).Methods("POST")
	ingestRouter.HandleFunc("/remote_roots", h.ListRemoteRoots).Methods("GET")
	ingestRouter.HandleFunc("/remote_roots", h.AddRemoteRoot).Methods("POST")
	ingestRouter.HandleFunc("/remote_roots", h.RemoveRemoteRoot).Methods("DELETE")

	catalogRouter := router.PathPrefix("/catalog").Subrouter()
	catalogRouter.HandleFunc("/files", h.Files).Methods("GET")
	catalogRouter.HandleFunc("/duplicates", h.Duplicates).Methods("GET")
	catalogRouter.HandleFunc("/junk", h.Junk).Methods("GET")
	catalogRouter.HandleFunc("/junk", h.DeleteJunk).Methods("DELETE")
	catalogRouter.HandleFunc("/unknown_extensions", h.UnknownExtensions).Methods("GET")
	catalogRouter.HandleFunc("/extension_category", h.SetExtensionCategory).Methods("POST")
	catalogRouter.HandleFunc("/stats", h.Stats).Methods("GET")
}

// Root returns a service banner with the primary endpoints.
func (h *Handlers) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]interface{}{
		"service":   "MediaLib Ingestion API",
		"endpoints": []string{"/health", "/ingest/config", "/ingest/batch"},
	})
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]bool{"ok": true})
}
