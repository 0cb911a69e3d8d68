package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"idsync/internal/domain"
)

type createSystemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) createSystem(w http.ResponseWriter, r *http.Request) {
	var req createSystemRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	sys, err := h.systems.Create(r.Context(), &domain.ConnectedSystem{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, systemToAPI(sys))
}

func (h *Handler) listSystems(w http.ResponseWriter, r *http.Request) {
	systems, err := h.systems.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := make([]System, len(systems))
	for i := range systems {
		data[i] = systemToAPI(&systems[i])
	}
	h.writeJSON(w, http.StatusOK, listPage[System]{Data: data, Page: 1, PageSize: len(data)})
}

func (h *Handler) getSystem(w http.ResponseWriter, r *http.Request) {
	sys, err := h.systemByName(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, systemToAPI(sys))
}

type createObjectTypeRequest struct {
	Name                string            `json:"name"`
	ExternalIDAttribute string            `json:"externalIdAttribute"`
	Attributes          []AttributeSchema `json:"attributes"`
}

func (h *Handler) createObjectType(w http.ResponseWriter, r *http.Request) {
	sys, err := h.systemByName(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req createObjectTypeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	schema := &domain.ObjectTypeSchema{
		ConnectedSystemID:   sys.ID,
		Name:                req.Name,
		ExternalIDAttribute: req.ExternalIDAttribute,
		Attributes:          make([]domain.AttributeSchema, len(req.Attributes)),
	}
	for i, a := range req.Attributes {
		schema.Attributes[i] = domain.AttributeSchema{
			Name:        a.Name,
			Kind:        domain.AttributeKind(a.Kind),
			MultiValued: a.MultiValued,
		}
	}
	created, err := h.systems.CreateObjectType(r.Context(), schema)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, objectTypeToAPI(created))
}

func (h *Handler) listObjectTypes(w http.ResponseWriter, r *http.Request) {
	sys, err := h.systemByName(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	types, err := h.systems.ListObjectTypes(r.Context(), sys.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := make([]ObjectType, len(types))
	for i := range types {
		data[i] = objectTypeToAPI(&types[i])
	}
	h.writeJSON(w, http.StatusOK, listPage[ObjectType]{Data: data, Page: 1, PageSize: len(data)})
}

func (h *Handler) listObjects(w http.ResponseWriter, r *http.Request) {
	sys, err := h.systemByName(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	page, pageSize := pageParams(r)
	objects, err := h.objects.ListBySystem(r.Context(), sys.ID, page, pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	total, err := h.objects.CountBySystem(r.Context(), sys.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := make([]ConnectorObject, len(objects))
	for i, o := range objects {
		data[i] = connectorObjectToAPI(o)
	}
	h.writeJSON(w, http.StatusOK, listPage[ConnectorObject]{Data: data, Total: total, Page: page, PageSize: pageSize})
}

func (h *Handler) getTypePolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.systems.GetMetaverseTypePolicy(r.Context(), chi.URLParam(r, "objectType"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, policyToAPI(policy))
}

type putTypePolicyRequest struct {
	DeletionRule                  string `json:"deletionRule"`
	GracePeriodDays               *int   `json:"gracePeriodDays"`
	RemoveContributedOnObsoletion bool   `json:"removeContributedOnObsoletion"`
}

func (h *Handler) putTypePolicy(w http.ResponseWriter, r *http.Request) {
	var req putTypePolicyRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	policy := &domain.MetaverseTypePolicy{
		ObjectType:                    chi.URLParam(r, "objectType"),
		DeletionRule:                  domain.DeletionRule(req.DeletionRule),
		GracePeriodDays:               req.GracePeriodDays,
		RemoveContributedOnObsoletion: req.RemoveContributedOnObsoletion,
	}
	if !policy.DeletionRule.Valid() {
		h.writeError(w, domain.ErrValidation("unknown deletion rule %q", req.DeletionRule))
		return
	}
	if err := h.systems.UpsertMetaverseTypePolicy(r.Context(), policy); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, policyToAPI(policy))
}
