package domain

import (
	"strings"
	"time"
)

// MetaverseAttribute is one value on a metaverse object, tagged with the
// connected system that contributed it. A nil contributor means the value is
// managed internally rather than flowed from a connector.
type MetaverseAttribute struct {
	Name          string
	Value         AttributeValue
	ContributedBy *string
}

// MetaverseObject is the de-duplicated cross-system representation of one
// real-world entity.
type MetaverseObject struct {
	ID                 string
	ObjectType         string
	Attributes         []MetaverseAttribute
	LastDisconnectedAt *time.Time
	DeletionEligibleAt *time.Time
	CreatedAt          time.Time
	LastUpdated        *time.Time
}

// ValuesOf returns all values of the named attribute, matching the name
// case-insensitively.
func (m *MetaverseObject) ValuesOf(name string) []AttributeValue {
	var out []AttributeValue
	for _, a := range m.Attributes {
		if strings.EqualFold(a.Name, name) {
			out = append(out, a.Value)
		}
	}
	return out
}

// ContributedValues returns the values of the named attribute that were
// contributed by the given connected system.
func (m *MetaverseObject) ContributedValues(name, systemID string) []AttributeValue {
	var out []AttributeValue
	for _, a := range m.Attributes {
		if strings.EqualFold(a.Name, name) && a.ContributedBy != nil && *a.ContributedBy == systemID {
			out = append(out, a.Value)
		}
	}
	return out
}

// HasValue reports whether the named attribute carries a value equal to v,
// regardless of contributor.
func (m *MetaverseObject) HasValue(name string, v AttributeValue) bool {
	for _, have := range m.ValuesOf(name) {
		if have.Equal(v) {
			return true
		}
	}
	return false
}

// ClearDisconnect removes pending-disconnect bookkeeping. Called when an
// object (re)joins a metaverse object that was awaiting deletion.
func (m *MetaverseObject) ClearDisconnect() {
	m.LastDisconnectedAt = nil
	m.DeletionEligibleAt = nil
}

// PendingChangeSet stages the attribute additions and removals implied for
// one metaverse object by processing one connector-space object. It is
// produced by the flow processor, applied atomically by the orchestrator,
// and never outlives the object being processed.
type PendingChangeSet struct {
	MetaverseObjectID string
	Additions         []MetaverseAttribute
	Removals          []MetaverseAttribute
}

// NewPendingChangeSet creates an empty change set for one metaverse object.
func NewPendingChangeSet(mvoID string) *PendingChangeSet {
	return &PendingChangeSet{MetaverseObjectID: mvoID}
}

// Add stages an attribute addition contributed by the given system.
func (cs *PendingChangeSet) Add(name string, v AttributeValue, contributedBy *string) {
	cs.Additions = append(cs.Additions, MetaverseAttribute{Name: name, Value: v, ContributedBy: contributedBy})
}

// Remove stages an attribute removal.
func (cs *PendingChangeSet) Remove(a MetaverseAttribute) {
	cs.Removals = append(cs.Removals, a)
}

// Empty reports whether the change set stages nothing.
func (cs *PendingChangeSet) Empty() bool {
	return len(cs.Additions) == 0 && len(cs.Removals) == 0
}

// Merge folds another change set for the same metaverse object into cs.
func (cs *PendingChangeSet) Merge(other *PendingChangeSet) {
	if other == nil {
		return
	}
	cs.Additions = append(cs.Additions, other.Additions...)
	cs.Removals = append(cs.Removals, other.Removals...)
}
