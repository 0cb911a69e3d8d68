package domain

import (
	"context"
	"time"
)

// ConnectedSystemRepository persists connected systems and their schemas.
type ConnectedSystemRepository interface {
	Create(ctx context.Context, s *ConnectedSystem) (*ConnectedSystem, error)
	GetByID(ctx context.Context, id string) (*ConnectedSystem, error)
	GetByName(ctx context.Context, name string) (*ConnectedSystem, error)
	List(ctx context.Context) ([]ConnectedSystem, error)

	CreateObjectType(ctx context.Context, t *ObjectTypeSchema) (*ObjectTypeSchema, error)
	GetObjectType(ctx context.Context, systemID, name string) (*ObjectTypeSchema, error)
	ListObjectTypes(ctx context.Context, systemID string) ([]ObjectTypeSchema, error)

	UpsertMetaverseTypePolicy(ctx context.Context, p *MetaverseTypePolicy) error
	GetMetaverseTypePolicy(ctx context.Context, objectType string) (*MetaverseTypePolicy, error)
}

// ObjectRepository persists connector-space objects and their attribute
// values. Attribute writes are batched: ReplaceAttributes swaps an object's
// whole value set in one transaction.
type ObjectRepository interface {
	Create(ctx context.Context, o *ConnectedSystemObject) (*ConnectedSystemObject, error)
	Update(ctx context.Context, o *ConnectedSystemObject) error
	GetByID(ctx context.Context, id string) (*ConnectedSystemObject, error)
	Delete(ctx context.Context, id string) error

	// FindByExternalID returns the single object of the given type whose
	// external-id attribute equals value. More than one match is an
	// AmbiguousMatchError, never a silent pick.
	FindByExternalID(ctx context.Context, systemID, objectType, value string) (*ConnectedSystemObject, error)
	// FindByExternalIDAnyType is FindByExternalID without the type filter,
	// used by reference resolution. Returns every match.
	FindByExternalIDAnyType(ctx context.Context, systemID, value string) ([]*ConnectedSystemObject, error)

	ListByMetaverseObject(ctx context.Context, mvoID string) ([]*ConnectedSystemObject, error)
	// JoinedFromSystem returns the objects from one connected system joined
	// to the given metaverse object (the 1:1 conflict check).
	JoinedFromSystem(ctx context.Context, mvoID, systemID string) ([]*ConnectedSystemObject, error)

	CountBySystem(ctx context.Context, systemID string) (int64, error)
	ListBySystem(ctx context.Context, systemID string, page, pageSize int) ([]*ConnectedSystemObject, error)

	// CountModifiedSince / ListModifiedSince implement the delta watermark
	// predicate: created or last-updated strictly after the watermark.
	CountModifiedSince(ctx context.Context, systemID string, watermark time.Time) (int64, error)
	ListModifiedSince(ctx context.Context, systemID string, watermark time.Time, page, pageSize int) ([]*ConnectedSystemObject, error)

	ReplaceAttributes(ctx context.Context, objectID string, attrs []ObjectAttribute) error
	// DeleteObsoleteUnjoined removes objects that are Obsolete and carry no
	// metaverse link. Returns the number removed.
	DeleteObsoleteUnjoined(ctx context.Context, systemID string) (int64, error)
}

// MetaverseRepository persists metaverse objects and their attribute values.
type MetaverseRepository interface {
	Create(ctx context.Context, m *MetaverseObject) (*MetaverseObject, error)
	Update(ctx context.Context, m *MetaverseObject) error
	GetByID(ctx context.Context, id string) (*MetaverseObject, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, objectType string, page, pageSize int) ([]*MetaverseObject, int64, error)

	// FindByAttribute returns the metaverse objects of the given type whose
	// named attribute carries a value equal to v (text compared
	// case-insensitively). Used by the matching phase.
	FindByAttribute(ctx context.Context, objectType, attribute string, v AttributeValue) ([]*MetaverseObject, error)

	// ApplyChangeSet applies staged additions and removals to the stored
	// attribute values as one transaction.
	ApplyChangeSet(ctx context.Context, cs *PendingChangeSet) error

	// ListDeletionEligible returns objects whose deletion-eligible date is
	// at or before now. The caller re-checks the joined count before
	// deleting.
	ListDeletionEligible(ctx context.Context, now time.Time) ([]*MetaverseObject, error)
}

// SyncRuleRepository persists sync rules.
type SyncRuleRepository interface {
	Create(ctx context.Context, r *SyncRule) (*SyncRule, error)
	Update(ctx context.Context, r *SyncRule) error
	GetByID(ctx context.Context, id string) (*SyncRule, error)
	GetByName(ctx context.Context, name string) (*SyncRule, error)
	ListBySystem(ctx context.Context, systemID string) ([]*SyncRule, error)
	// ListEnabled returns the enabled rules for one system and direction in
	// priority order.
	ListEnabled(ctx context.Context, systemID string, direction RuleDirection) ([]*SyncRule, error)
}

// PendingExportRepository persists queued outbound changes.
type PendingExportRepository interface {
	Create(ctx context.Context, p *PendingExport) (*PendingExport, error)
	Update(ctx context.Context, p *PendingExport) error
	Delete(ctx context.Context, id string) error
	GetByObject(ctx context.Context, objectID string) ([]*PendingExport, error)
	ListBySystem(ctx context.Context, systemID string, page, pageSize int) ([]*PendingExport, int64, error)
}

// RunRepository records run-profile executions and their per-object items.
type RunRepository interface {
	CreateRun(ctx context.Context, r *SyncRun) (*SyncRun, error)
	FinishRun(ctx context.Context, r *SyncRun) error
	GetRun(ctx context.Context, id string) (*SyncRun, error)
	ListRuns(ctx context.Context, systemID string, page, pageSize int) ([]SyncRun, int64, error)
	// LastCompleted returns the most recent completed run of the given type
	// for a system, or nil when none exists (first-run watermark).
	LastCompleted(ctx context.Context, systemID string, runType RunType) (*SyncRun, error)

	AddItem(ctx context.Context, item *RunItem) error
	ListItems(ctx context.Context, runID string) ([]RunItem, error)
}

// Connector is the boundary to one external system. Implementations fetch
// raw records; errors propagate unmodified and abort the run.
type Connector interface {
	// FullImport enumerates every record visible in the external system.
	FullImport(ctx context.Context) ([]RawRecord, error)
	// DeltaImport enumerates records changed since the connector's own
	// change marker. Connectors that cannot do deltas return their full set.
	DeltaImport(ctx context.Context) ([]RawRecord, error)
}

// ConnectorRegistry resolves the connector for a connected system.
type ConnectorRegistry interface {
	For(systemName string) (Connector, error)
}
