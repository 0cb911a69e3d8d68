package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"idsync/internal/domain"
)

func (h *Handler) listMetaverseObjects(w http.ResponseWriter, r *http.Request) {
	objectType := r.URL.Query().Get("objectType")
	if objectType == "" {
		h.writeError(w, domain.ErrValidation("objectType query parameter is required"))
		return
	}
	page, pageSize := pageParams(r)
	objects, total, err := h.metaverse.List(r.Context(), objectType, page, pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := make([]MetaverseObject, len(objects))
	for i, m := range objects {
		data[i] = metaverseObjectToAPI(m)
	}
	h.writeJSON(w, http.StatusOK, listPage[MetaverseObject]{Data: data, Total: total, Page: page, PageSize: pageSize})
}

// searchMetaverseObjects finds objects by one attribute value, the same
// lookup the matching phase uses.
func (h *Handler) searchMetaverseObjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	objectType := q.Get("objectType")
	attribute := q.Get("attribute")
	if objectType == "" || attribute == "" {
		h.writeError(w, domain.ErrValidation("objectType and attribute query parameters are required"))
		return
	}
	kind := domain.AttributeKind(q.Get("kind"))
	if kind == "" {
		kind = domain.KindText
	}
	value, err := domain.ParseValue(kind, q.Get("value"))
	if err != nil {
		h.writeError(w, domain.ErrValidation("value: %v", err))
		return
	}
	objects, err := h.metaverse.FindByAttribute(r.Context(), objectType, attribute, value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := make([]MetaverseObject, len(objects))
	for i, m := range objects {
		data[i] = metaverseObjectToAPI(m)
	}
	h.writeJSON(w, http.StatusOK, listPage[MetaverseObject]{Data: data, Page: 1, PageSize: len(data)})
}

func (h *Handler) getMetaverseObject(w http.ResponseWriter, r *http.Request) {
	m, err := h.metaverse.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, metaverseObjectToAPI(m))
}

// deleteMetaverseObject removes a metaverse object by operator request.
// Joined connector-space objects block the deletion.
func (h *Handler) deleteMetaverseObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := h.metaverse.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	linked, err := h.objects.ListByMetaverseObject(r.Context(), m.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	for _, o := range linked {
		if o.JoinType != domain.JoinTypeNotJoined {
			h.writeError(w, domain.ErrConflict("metaverse object %s still has joined connector objects", m.ID))
			return
		}
	}
	if err := h.metaverse.Delete(r.Context(), m.ID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listConnectorObjects(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.metaverse.GetByID(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	objects, err := h.objects.ListByMetaverseObject(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := make([]ConnectorObject, len(objects))
	for i, o := range objects {
		data[i] = connectorObjectToAPI(o)
	}
	h.writeJSON(w, http.StatusOK, listPage[ConnectorObject]{Data: data, Page: 1, PageSize: len(data)})
}
