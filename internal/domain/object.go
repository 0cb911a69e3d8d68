package domain

import (
	"strings"
	"time"
)

// ObjectStatus is the lifecycle status of a connector-space object.
type ObjectStatus string

const (
	StatusNormal              ObjectStatus = "normal"
	StatusObsolete            ObjectStatus = "obsolete"
	StatusPendingProvisioning ObjectStatus = "pending_provisioning"
)

// JoinType records how (and whether) a connector-space object is linked to
// a metaverse object.
type JoinType string

const (
	JoinTypeNotJoined   JoinType = "not_joined"
	JoinTypeJoined      JoinType = "joined"
	JoinTypeProjected   JoinType = "projected"
	JoinTypeProvisioned JoinType = "provisioned"
)

// ObjectAttribute is one named value on a connector-space object.
// Multi-valued attributes appear as several entries sharing a name.
type ObjectAttribute struct {
	Name  string
	Value AttributeValue
}

// ConnectedSystemObject is one record as observed in one connected system.
// At most one exists per (connected system, object type, external-id value);
// lookups that find more must fail loudly.
type ConnectedSystemObject struct {
	ID                  string
	ConnectedSystemID   string
	ObjectType          string
	ExternalIDAttribute string
	Status              ObjectStatus
	JoinType            JoinType
	MetaverseObjectID   *string
	JoinedAt            *time.Time
	CreatedAt           time.Time
	LastUpdated         *time.Time
	Attributes          []ObjectAttribute
}

// ExternalID returns the object's external-id value as text, or "" when the
// designated attribute carries no value.
func (o *ConnectedSystemObject) ExternalID() string {
	vals := o.ValuesOf(o.ExternalIDAttribute)
	if len(vals) == 0 {
		return ""
	}
	return vals[0].Canonical()
}

// ValuesOf returns all values of the named attribute, matching the name
// case-insensitively, in stored order.
func (o *ConnectedSystemObject) ValuesOf(name string) []AttributeValue {
	var out []AttributeValue
	for _, a := range o.Attributes {
		if strings.EqualFold(a.Name, name) {
			out = append(out, a.Value)
		}
	}
	return out
}

// HasValue reports whether the named attribute carries a value equal to v.
func (o *ConnectedSystemObject) HasValue(name string, v AttributeValue) bool {
	for _, have := range o.ValuesOf(name) {
		if have.Equal(v) {
			return true
		}
	}
	return false
}

// Touch stamps LastUpdated. Every semantic mutation of the object must go
// through this before persisting.
func (o *ConnectedSystemObject) Touch(now time.Time) {
	t := now.UTC()
	o.LastUpdated = &t
}

// MarkObsolete transitions the object to Obsolete and stamps LastUpdated in
// the same operation, so the timestamp cannot be forgotten at a call site.
func (o *ConnectedSystemObject) MarkObsolete(now time.Time) {
	o.Status = StatusObsolete
	o.Touch(now)
}

// ClearJoin severs the link to a metaverse object. Join type, link and join
// timestamp are cleared together and LastUpdated is stamped.
func (o *ConnectedSystemObject) ClearJoin(now time.Time) {
	o.MetaverseObjectID = nil
	o.JoinedAt = nil
	o.JoinType = JoinTypeNotJoined
	o.Touch(now)
}

// SetJoin links the object to a metaverse object with the given join type
// and stamps the join timestamp and LastUpdated.
func (o *ConnectedSystemObject) SetJoin(mvoID string, jt JoinType, now time.Time) {
	id := mvoID
	t := now.UTC()
	o.MetaverseObjectID = &id
	o.JoinedAt = &t
	o.JoinType = jt
	o.Touch(now)
}

// Deletable reports whether the object may be removed from the store:
// Obsolete and not linked to a metaverse object.
func (o *ConnectedSystemObject) Deletable() bool {
	return o.Status == StatusObsolete && o.MetaverseObjectID == nil
}

// ModifiedSince is the delta-run inclusion predicate: created strictly after
// the watermark, or updated strictly after it. A record touched exactly at
// the watermark is excluded so the next run's watermark never re-includes it.
func (o *ConnectedSystemObject) ModifiedSince(w time.Time) bool {
	if o.CreatedAt.After(w) {
		return true
	}
	return o.LastUpdated != nil && o.LastUpdated.After(w)
}
