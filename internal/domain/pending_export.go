package domain

import "time"

// ExportChangeType is the kind of outbound change a pending export carries.
type ExportChangeType string

const (
	ExportCreate ExportChangeType = "create"
	ExportUpdate ExportChangeType = "update"
	ExportDelete ExportChangeType = "delete"
)

// ExportStatus tracks a pending export through confirmation.
type ExportStatus string

const (
	// ExportPending is the initial state: queued, not yet confirmed.
	ExportPending ExportStatus = "pending"
	// ExportNotImported means a confirming import ran but did not observe
	// (all of) the expected values.
	ExportNotImported ExportStatus = "export_not_imported"
)

// AttributeChangeType is the per-attribute operation within an export.
type AttributeChangeType string

const (
	AttributeAdd    AttributeChangeType = "add"
	AttributeUpdate AttributeChangeType = "update"
	AttributeRemove AttributeChangeType = "remove"
)

// AttributeChange is one expected post-export attribute state.
type AttributeChange struct {
	Type  AttributeChangeType
	Name  string
	Value AttributeValue
}

// PendingExport is one queued outbound change batch against a
// connector-space object, awaiting confirmation from a subsequent import.
// Only the export reconciler mutates it.
type PendingExport struct {
	ID                      string
	ConnectedSystemObjectID string
	ChangeType              ExportChangeType
	Status                  ExportStatus
	ErrorCount              int
	Changes                 []AttributeChange
	CreatedAt               time.Time
	LastUpdated             *time.Time
}

// Satisfied reports whether one attribute change is confirmed by the live
// state of the target object: adds and updates require the value to be
// present, removes require it to be absent.
func (c AttributeChange) Satisfied(o *ConnectedSystemObject) bool {
	switch c.Type {
	case AttributeAdd, AttributeUpdate:
		return o.HasValue(c.Name, c.Value)
	case AttributeRemove:
		return !o.HasValue(c.Name, c.Value)
	}
	return false
}
