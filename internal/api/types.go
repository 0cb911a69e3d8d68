package api

import (
	"time"

	"idsync/internal/domain"
)

// listPage is the envelope for paginated collection responses.
type listPage[T any] struct {
	Data     []T   `json:"data"`
	Total    int64 `json:"total,omitempty"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

type System struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func systemToAPI(s *domain.ConnectedSystem) System {
	return System{ID: s.ID, Name: s.Name, Description: s.Description, CreatedAt: s.CreatedAt}
}

type AttributeSchema struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	MultiValued bool   `json:"multiValued,omitempty"`
}

type ObjectType struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	ExternalIDAttribute string            `json:"externalIdAttribute"`
	Attributes          []AttributeSchema `json:"attributes"`
}

func objectTypeToAPI(t *domain.ObjectTypeSchema) ObjectType {
	out := ObjectType{
		ID:                  t.ID,
		Name:                t.Name,
		ExternalIDAttribute: t.ExternalIDAttribute,
		Attributes:          make([]AttributeSchema, len(t.Attributes)),
	}
	for i, a := range t.Attributes {
		out.Attributes[i] = AttributeSchema{Name: a.Name, Kind: string(a.Kind), MultiValued: a.MultiValued}
	}
	return out
}

type TypePolicy struct {
	ObjectType                    string `json:"objectType"`
	DeletionRule                  string `json:"deletionRule"`
	GracePeriodDays               *int   `json:"gracePeriodDays,omitempty"`
	RemoveContributedOnObsoletion bool   `json:"removeContributedOnObsoletion,omitempty"`
}

func policyToAPI(p *domain.MetaverseTypePolicy) TypePolicy {
	return TypePolicy{
		ObjectType:                    p.ObjectType,
		DeletionRule:                  string(p.DeletionRule),
		GracePeriodDays:               p.GracePeriodDays,
		RemoveContributedOnObsoletion: p.RemoveContributedOnObsoletion,
	}
}

type MatchingRule struct {
	Order            int      `json:"order"`
	SourceAttributes []string `json:"sourceAttributes"`
	TargetAttribute  string   `json:"targetAttribute"`
}

type AttributeFlow struct {
	Order            int      `json:"order"`
	SourceAttributes []string `json:"sourceAttributes"`
	TargetAttribute  string   `json:"targetAttribute"`
}

// Criterion carries the comparison value in wire form, paired with its kind.
type Criterion struct {
	Attribute  string `json:"attribute"`
	Comparator string `json:"comparator"`
	Kind       string `json:"kind,omitempty"`
	Value      string `json:"value"`
}

type ScopeGroup struct {
	Combinator string       `json:"combinator,omitempty"`
	Criteria   []Criterion  `json:"criteria,omitempty"`
	Groups     []ScopeGroup `json:"groups,omitempty"`
}

type SyncRule struct {
	ID                  string          `json:"id"`
	ConnectedSystemID   string          `json:"connectedSystemId"`
	Name                string          `json:"name"`
	Direction           string          `json:"direction"`
	Enabled             bool            `json:"enabled"`
	ObjectType          string          `json:"objectType"`
	MetaverseObjectType string          `json:"metaverseObjectType"`
	ProjectToMetaverse  bool            `json:"projectToMetaverse,omitempty"`
	Priority            int             `json:"priority"`
	MatchingRules       []MatchingRule  `json:"matchingRules,omitempty"`
	AttributeFlows      []AttributeFlow `json:"attributeFlows,omitempty"`
	Scoping             []ScopeGroup    `json:"scoping,omitempty"`
}

func syncRuleToAPI(r *domain.SyncRule) SyncRule {
	out := SyncRule{
		ID:                  r.ID,
		ConnectedSystemID:   r.ConnectedSystemID,
		Name:                r.Name,
		Direction:           string(r.Direction),
		Enabled:             r.Enabled,
		ObjectType:          r.ObjectType,
		MetaverseObjectType: r.MetaverseObjectType,
		ProjectToMetaverse:  r.ProjectToMetaverse,
		Priority:            r.Priority,
	}
	for _, m := range r.MatchingRules {
		out.MatchingRules = append(out.MatchingRules, MatchingRule{
			Order: m.Order, SourceAttributes: m.SourceAttributes, TargetAttribute: m.TargetAttribute,
		})
	}
	for _, f := range r.AttributeFlows {
		out.AttributeFlows = append(out.AttributeFlows, AttributeFlow{
			Order: f.Order, SourceAttributes: f.SourceAttributes, TargetAttribute: f.TargetAttribute,
		})
	}
	for _, g := range r.Scoping {
		out.Scoping = append(out.Scoping, scopeGroupToAPI(g))
	}
	return out
}

func scopeGroupToAPI(g domain.ScopingCriteriaGroup) ScopeGroup {
	out := ScopeGroup{Combinator: string(g.Combinator)}
	for _, c := range g.Criteria {
		out.Criteria = append(out.Criteria, Criterion{
			Attribute:  c.Attribute,
			Comparator: string(c.Comparator),
			Kind:       string(c.Value.Kind()),
			Value:      c.Value.Canonical(),
		})
	}
	for _, child := range g.Groups {
		out.Groups = append(out.Groups, scopeGroupToAPI(child))
	}
	return out
}

type Run struct {
	ID                string     `json:"id"`
	ConnectedSystemID string     `json:"connectedSystemId"`
	RunType           string     `json:"runType"`
	Status            string     `json:"status"`
	StartedAt         time.Time  `json:"startedAt"`
	FinishedAt        *time.Time `json:"finishedAt,omitempty"`
	ObjectsProcessed  int        `json:"objectsProcessed"`
	ErrorCount        int        `json:"errorCount"`
}

func runToAPI(r *domain.SyncRun) Run {
	return Run{
		ID:                r.ID,
		ConnectedSystemID: r.ConnectedSystemID,
		RunType:           string(r.RunType),
		Status:            string(r.Status),
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		ObjectsProcessed:  r.ObjectsProcessed,
		ErrorCount:        r.ErrorCount,
	}
}

type RunItem struct {
	ObjectID      string    `json:"objectId"`
	ObjectType    string    `json:"objectType"`
	ErrorType     *string   `json:"errorType,omitempty"`
	AttributeName string    `json:"attributeName,omitempty"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func runItemToAPI(i domain.RunItem) RunItem {
	out := RunItem{
		ObjectID:      i.ObjectID,
		ObjectType:    i.ObjectType,
		AttributeName: i.AttributeName,
		Message:       i.Message,
		CreatedAt:     i.CreatedAt,
	}
	if i.ErrorType != nil {
		s := string(*i.ErrorType)
		out.ErrorType = &s
	}
	return out
}

type MetaverseAttribute struct {
	Name          string                `json:"name"`
	Value         domain.AttributeValue `json:"value"`
	ContributedBy *string               `json:"contributedBy,omitempty"`
}

type MetaverseObject struct {
	ID                 string               `json:"id"`
	ObjectType         string               `json:"objectType"`
	Attributes         []MetaverseAttribute `json:"attributes"`
	LastDisconnectedAt *time.Time           `json:"lastDisconnectedAt,omitempty"`
	DeletionEligibleAt *time.Time           `json:"deletionEligibleAt,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
	LastUpdated        *time.Time           `json:"lastUpdated,omitempty"`
}

func metaverseObjectToAPI(m *domain.MetaverseObject) MetaverseObject {
	out := MetaverseObject{
		ID:                 m.ID,
		ObjectType:         m.ObjectType,
		Attributes:         make([]MetaverseAttribute, len(m.Attributes)),
		LastDisconnectedAt: m.LastDisconnectedAt,
		DeletionEligibleAt: m.DeletionEligibleAt,
		CreatedAt:          m.CreatedAt,
		LastUpdated:        m.LastUpdated,
	}
	for i, a := range m.Attributes {
		out.Attributes[i] = MetaverseAttribute{Name: a.Name, Value: a.Value, ContributedBy: a.ContributedBy}
	}
	return out
}

type ObjectAttribute struct {
	Name  string                `json:"name"`
	Value domain.AttributeValue `json:"value"`
}

type ConnectorObject struct {
	ID                string            `json:"id"`
	ConnectedSystemID string            `json:"connectedSystemId"`
	ObjectType        string            `json:"objectType"`
	ExternalID        string            `json:"externalId,omitempty"`
	Status            string            `json:"status"`
	JoinType          string            `json:"joinType"`
	MetaverseObjectID *string           `json:"metaverseObjectId,omitempty"`
	JoinedAt          *time.Time        `json:"joinedAt,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	LastUpdated       *time.Time        `json:"lastUpdated,omitempty"`
	Attributes        []ObjectAttribute `json:"attributes"`
}

func connectorObjectToAPI(o *domain.ConnectedSystemObject) ConnectorObject {
	out := ConnectorObject{
		ID:                o.ID,
		ConnectedSystemID: o.ConnectedSystemID,
		ObjectType:        o.ObjectType,
		ExternalID:        o.ExternalID(),
		Status:            string(o.Status),
		JoinType:          string(o.JoinType),
		MetaverseObjectID: o.MetaverseObjectID,
		JoinedAt:          o.JoinedAt,
		CreatedAt:         o.CreatedAt,
		LastUpdated:       o.LastUpdated,
		Attributes:        make([]ObjectAttribute, len(o.Attributes)),
	}
	for i, a := range o.Attributes {
		out.Attributes[i] = ObjectAttribute{Name: a.Name, Value: a.Value}
	}
	return out
}

type AttributeChange struct {
	Type  string                `json:"type"`
	Name  string                `json:"name"`
	Value domain.AttributeValue `json:"value"`
}

type PendingExport struct {
	ID                      string            `json:"id"`
	ConnectedSystemObjectID string            `json:"connectedSystemObjectId"`
	ChangeType              string            `json:"changeType"`
	Status                  string            `json:"status"`
	ErrorCount              int               `json:"errorCount"`
	Changes                 []AttributeChange `json:"changes"`
	CreatedAt               time.Time         `json:"createdAt"`
	LastUpdated             *time.Time        `json:"lastUpdated,omitempty"`
}

func pendingExportToAPI(p *domain.PendingExport) PendingExport {
	out := PendingExport{
		ID:                      p.ID,
		ConnectedSystemObjectID: p.ConnectedSystemObjectID,
		ChangeType:              string(p.ChangeType),
		Status:                  string(p.Status),
		ErrorCount:              p.ErrorCount,
		Changes:                 make([]AttributeChange, len(p.Changes)),
		CreatedAt:               p.CreatedAt,
		LastUpdated:             p.LastUpdated,
	}
	for i, c := range p.Changes {
		out.Changes[i] = AttributeChange{Type: string(c.Type), Name: c.Name, Value: c.Value}
	}
	return out
}
