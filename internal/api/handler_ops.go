package api

import (
	"context"
	"net/http"

	"idsync/internal/service/housekeeping"
)

// sweeper is the slice of the housekeeping service the API needs.
type sweeper interface {
	Sweep(ctx context.Context) (*housekeeping.SweepReport, error)
}

func (h *Handler) triggerSweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}
