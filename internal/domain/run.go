package domain

import "time"

// RunType is the kind of run-profile execution.
type RunType string

const (
	RunFullImport  RunType = "full_import"
	RunDeltaImport RunType = "delta_import"
	RunFullSync    RunType = "full_sync"
	RunDeltaSync   RunType = "delta_sync"
)

// Valid reports whether t is a declared run type.
func (t RunType) Valid() bool {
	switch t {
	case RunFullImport, RunDeltaImport, RunFullSync, RunDeltaSync:
		return true
	}
	return false
}

// RunProfile describes one requested run: which system, what kind of run,
// and the page size for delta retrieval.
type RunProfile struct {
	ConnectedSystemID string
	RunType           RunType
	PageSize          int
}

// RunStatus is the outcome of a run-profile execution.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// SyncRun is one run-profile execution.
type SyncRun struct {
	ID                string
	ConnectedSystemID string
	RunType           RunType
	Status            RunStatus
	StartedAt         time.Time
	FinishedAt        *time.Time
	ObjectsProcessed  int
	ErrorCount        int
}

// RunItemError classifies per-object errors recorded during a run.
type RunItemError string

const (
	ErrDuplicateImportedAttributes RunItemError = "DuplicateImportedAttributes"
	ErrUnexpectedAttribute         RunItemError = "UnexpectedAttribute"
	ErrInvalidAttributeValue       RunItemError = "InvalidAttributeValue"
	ErrCouldNotJoinExistingJoin    RunItemError = "CouldNotJoinDueToExistingJoin"
	ErrAmbiguousReference          RunItemError = "AmbiguousReference"
)

// RunItem is the activity record for one processed object. ErrorType is nil
// when the object processed cleanly.
type RunItem struct {
	ID            int64
	RunID         string
	ObjectID      string
	ObjectType    string
	ErrorType     *RunItemError
	AttributeName string
	Message       string
	CreatedAt     time.Time
}

// ObjectError is a per-object classified error: recorded against the run,
// object skipped, run continues.
type ObjectError struct {
	Type      RunItemError
	ObjectID  string
	Attribute string
	Message   string
}

func (e *ObjectError) Error() string { return e.Message }

// NewObjectError builds a classified per-object error.
func NewObjectError(t RunItemError, objectID, attribute, message string) *ObjectError {
	return &ObjectError{Type: t, ObjectID: objectID, Attribute: attribute, Message: message}
}

// ChangeType is the change kind of a raw imported record.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// RawAttribute is one named attribute entry of a raw imported record.
// Values are wire-form strings; empty entries are deliberate absence and
// are dropped during normalization.
type RawAttribute struct {
	Name   string
	Kind   AttributeKind
	Values []string
}

// RawRecord is one record as handed over by a connector.
type RawRecord struct {
	ObjectType string
	ChangeType ChangeType
	Attributes []RawAttribute
}
