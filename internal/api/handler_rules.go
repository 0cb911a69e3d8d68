package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"idsync/internal/domain"
)

type syncRuleRequest struct {
	Name                string          `json:"name"`
	System              string          `json:"system"`
	Direction           string          `json:"direction"`
	Enabled             *bool           `json:"enabled"`
	ObjectType          string          `json:"objectType"`
	MetaverseObjectType string          `json:"metaverseObjectType"`
	ProjectToMetaverse  bool            `json:"projectToMetaverse"`
	Priority            int             `json:"priority"`
	MatchingRules       []MatchingRule  `json:"matchingRules"`
	AttributeFlows      []AttributeFlow `json:"attributeFlows"`
	Scoping             []ScopeGroup    `json:"scoping"`
}

func (req *syncRuleRequest) toDomain(systemID string) (*domain.SyncRule, error) {
	rule := &domain.SyncRule{
		ConnectedSystemID:   systemID,
		Name:                req.Name,
		Direction:           domain.RuleDirection(req.Direction),
		Enabled:             req.Enabled == nil || *req.Enabled,
		ObjectType:          req.ObjectType,
		MetaverseObjectType: req.MetaverseObjectType,
		ProjectToMetaverse:  req.ProjectToMetaverse,
		Priority:            req.Priority,
	}
	for _, m := range req.MatchingRules {
		rule.MatchingRules = append(rule.MatchingRules, domain.ObjectMatchingRule{
			Order: m.Order, SourceAttributes: m.SourceAttributes, TargetAttribute: m.TargetAttribute,
		})
	}
	for _, f := range req.AttributeFlows {
		rule.AttributeFlows = append(rule.AttributeFlows, domain.AttributeFlowRule{
			Order: f.Order, SourceAttributes: f.SourceAttributes, TargetAttribute: f.TargetAttribute,
		})
	}
	for _, g := range req.Scoping {
		group, err := scopeGroupFromAPI(g)
		if err != nil {
			return nil, err
		}
		rule.Scoping = append(rule.Scoping, group)
	}
	return rule, nil
}

func scopeGroupFromAPI(g ScopeGroup) (domain.ScopingCriteriaGroup, error) {
	out := domain.ScopingCriteriaGroup{Combinator: domain.GroupCombinator(g.Combinator)}
	if out.Combinator == "" {
		out.Combinator = domain.CombinatorAll
	}
	for _, c := range g.Criteria {
		kind := domain.AttributeKind(c.Kind)
		if kind == "" {
			kind = domain.KindText
		}
		value, err := domain.ParseValue(kind, c.Value)
		if err != nil {
			return out, domain.ErrValidation("criterion %s: %v", c.Attribute, err)
		}
		out.Criteria = append(out.Criteria, domain.ScopingCriterion{
			Attribute:  c.Attribute,
			Comparator: domain.Comparator(c.Comparator),
			Value:      value,
		})
	}
	for _, child := range g.Groups {
		group, err := scopeGroupFromAPI(child)
		if err != nil {
			return out, err
		}
		out.Groups = append(out.Groups, group)
	}
	return out, nil
}

func (h *Handler) createSyncRule(w http.ResponseWriter, r *http.Request) {
	var req syncRuleRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	sys, err := h.systems.GetByName(r.Context(), req.System)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rule, err := req.toDomain(sys.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	created, err := h.rules.Create(r.Context(), rule)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, syncRuleToAPI(created))
}

func (h *Handler) getSyncRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, syncRuleToAPI(rule))
}

func (h *Handler) updateSyncRule(w http.ResponseWriter, r *http.Request) {
	existing, err := h.rules.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req syncRuleRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Name != "" && req.Name != existing.Name {
		h.writeError(w, domain.ErrValidation("rule name cannot be changed"))
		return
	}
	req.Name = existing.Name

	systemID := existing.ConnectedSystemID
	if req.System != "" {
		sys, err := h.systems.GetByName(r.Context(), req.System)
		if err != nil {
			h.writeError(w, err)
			return
		}
		systemID = sys.ID
	}
	rule, err := req.toDomain(systemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rule.ID = existing.ID
	if err := h.rules.Update(r.Context(), rule); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, syncRuleToAPI(rule))
}

func (h *Handler) listSyncRules(w http.ResponseWriter, r *http.Request) {
	sys, err := h.systemByName(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rules, err := h.rules.ListBySystem(r.Context(), sys.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := make([]SyncRule, len(rules))
	for i, rule := range rules {
		data[i] = syncRuleToAPI(rule)
	}
	h.writeJSON(w, http.StatusOK, listPage[SyncRule]{Data: data, Page: 1, PageSize: len(data)})
}
