package api

import "net/http"

func (h *Handler) listPendingExports(w http.ResponseWriter, r *http.Request) {
	sys, err := h.systemByName(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	page, pageSize := pageParams(r)
	exports, total, err := h.exports.ListBySystem(r.Context(), sys.ID, page, pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := make([]PendingExport, len(exports))
	for i, p := range exports {
		data[i] = pendingExportToAPI(p)
	}
	h.writeJSON(w, http.StatusOK, listPage[PendingExport]{Data: data, Total: total, Page: page, PageSize: pageSize})
}
