// Package api provides the HTTP handlers for the synchronization ops API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"idsync/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler serves the ops API on top of the repositories, the sync engine
// and the housekeeping sweep.
type Handler struct {
	systems   domain.ConnectedSystemRepository
	objects   domain.ObjectRepository
	metaverse domain.MetaverseRepository
	rules     domain.SyncRuleRepository
	exports   domain.PendingExportRepository
	runs      domain.RunRepository
	engine    runEngine
	sweeper   sweeper
	logger    *slog.Logger
}

// Deps carries the collaborators a Handler needs.
type Deps struct {
	Systems   domain.ConnectedSystemRepository
	Objects   domain.ObjectRepository
	Metaverse domain.MetaverseRepository
	Rules     domain.SyncRuleRepository
	Exports   domain.PendingExportRepository
	Runs      domain.RunRepository
	Engine    runEngine
	Sweeper   sweeper
	Logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(d Deps) *Handler {
	return &Handler{
		systems:   d.Systems,
		objects:   d.Objects,
		metaverse: d.Metaverse,
		rules:     d.Rules,
		exports:   d.Exports,
		runs:      d.Runs,
		engine:    d.Engine,
		sweeper:   d.Sweeper,
		logger:    d.Logger.With("component", "api"),
	}
}

// Routes mounts every endpoint on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/systems", func(r chi.Router) {
		r.Get("/", h.listSystems)
		r.Post("/", h.createSystem)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.getSystem)
			r.Get("/object-types", h.listObjectTypes)
			r.Post("/object-types", h.createObjectType)
			r.Get("/objects", h.listObjects)
			r.Get("/sync-rules", h.listSyncRules)
			r.Get("/pending-exports", h.listPendingExports)
			r.Get("/runs", h.listRuns)
		})
	})

	r.Route("/policies", func(r chi.Router) {
		r.Get("/{objectType}", h.getTypePolicy)
		r.Put("/{objectType}", h.putTypePolicy)
	})

	r.Route("/sync-rules", func(r chi.Router) {
		r.Post("/", h.createSyncRule)
		r.Get("/{name}", h.getSyncRule)
		r.Put("/{name}", h.updateSyncRule)
	})

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", h.triggerRun)
		r.Get("/", h.listRunsByQuery)
		r.Get("/{id}", h.getRun)
		r.Get("/{id}/items", h.listRunItems)
	})

	r.Route("/metaverse-objects", func(r chi.Router) {
		r.Get("/", h.listMetaverseObjects)
		r.Get("/search", h.searchMetaverseObjects)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getMetaverseObject)
			r.Delete("/", h.deleteMetaverseObject)
			r.Get("/connectors", h.listConnectorObjects)
		})
	})

	r.Post("/housekeeping/sweep", h.triggerSweep)

	return r
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := httpStatusFromDomainError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, errorBody{Code: status, Message: err.Error()})
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

// pageParams reads ?page= and ?pageSize=, clamping to sane bounds.
func pageParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// systemByName resolves the {name} path parameter to a connected system.
func (h *Handler) systemByName(r *http.Request) (*domain.ConnectedSystem, error) {
	return h.systems.GetByName(r.Context(), chi.URLParam(r, "name"))
}
