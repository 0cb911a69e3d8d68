package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"idsync/internal/domain"
)

// runEngine is the slice of the sync engine the API needs.
type runEngine interface {
	PerformFullImport(ctx context.Context, profile domain.RunProfile) (*domain.SyncRun, error)
	PerformDeltaImport(ctx context.Context, profile domain.RunProfile) (*domain.SyncRun, error)
	PerformFullSync(ctx context.Context, profile domain.RunProfile) (*domain.SyncRun, error)
	PerformDeltaSync(ctx context.Context, profile domain.RunProfile) (*domain.SyncRun, error)
}

type triggerRunRequest struct {
	System   string `json:"system"`
	RunType  string `json:"runType"`
	PageSize int    `json:"pageSize"`
}

// triggerRun executes the requested run profile synchronously and returns
// the finished run. A run that recorded per-object errors still completes;
// only connector and infrastructure failures produce an error status here.
func (h *Handler) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRunRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	runType := domain.RunType(req.RunType)
	if !runType.Valid() {
		h.writeError(w, domain.ErrValidation("unknown run type %q", req.RunType))
		return
	}
	sys, err := h.systems.GetByName(r.Context(), req.System)
	if err != nil {
		h.writeError(w, err)
		return
	}
	profile := domain.RunProfile{
		ConnectedSystemID: sys.ID,
		RunType:           runType,
		PageSize:          req.PageSize,
	}

	var run *domain.SyncRun
	switch runType {
	case domain.RunFullImport:
		run, err = h.engine.PerformFullImport(r.Context(), profile)
	case domain.RunDeltaImport:
		run, err = h.engine.PerformDeltaImport(r.Context(), profile)
	case domain.RunFullSync:
		run, err = h.engine.PerformFullSync(r.Context(), profile)
	case domain.RunDeltaSync:
		run, err = h.engine.PerformDeltaSync(r.Context(), profile)
	}
	if err != nil {
		// The run record, if one was started, already carries the failure.
		if run != nil {
			h.writeJSON(w, http.StatusBadGateway, runToAPI(run))
			return
		}
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, runToAPI(run))
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, runToAPI(run))
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	sys, err := h.systemByName(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeRunPage(w, r, sys.ID)
}

// listRunsByQuery is listRuns with the system passed as ?system= instead of
// a path segment.
func (h *Handler) listRunsByQuery(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("system")
	if name == "" {
		h.writeError(w, domain.ErrValidation("system query parameter is required"))
		return
	}
	sys, err := h.systems.GetByName(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeRunPage(w, r, sys.ID)
}

func (h *Handler) writeRunPage(w http.ResponseWriter, r *http.Request, systemID string) {
	page, pageSize := pageParams(r)
	runs, total, err := h.runs.ListRuns(r.Context(), systemID, page, pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := make([]Run, len(runs))
	for i := range runs {
		data[i] = runToAPI(&runs[i])
	}
	h.writeJSON(w, http.StatusOK, listPage[Run]{Data: data, Total: total, Page: page, PageSize: pageSize})
}

func (h *Handler) listRunItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.runs.GetRun(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	items, err := h.runs.ListItems(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := make([]RunItem, len(items))
	for i, item := range items {
		data[i] = runItemToAPI(item)
	}
	h.writeJSON(w, http.StatusOK, listPage[RunItem]{Data: data, Page: 1, PageSize: len(data)})
}
