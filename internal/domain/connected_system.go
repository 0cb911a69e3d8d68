package domain

import (
	"strings"
	"time"
)

// ConnectedSystem is one external system (HR feed, directory, application)
// whose records are reconciled into the metaverse.
type ConnectedSystem struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Validate checks that the system definition is well-formed.
func (s *ConnectedSystem) Validate() error {
	if s.Name == "" {
		return ErrValidation("name is required")
	}
	return nil
}

// AttributeSchema declares one attribute of an object type.
type AttributeSchema struct {
	Name        string
	Kind        AttributeKind
	MultiValued bool
}

// ObjectTypeSchema declares the shape of objects of one type within a
// connected system: its attributes and which of them is the external id.
type ObjectTypeSchema struct {
	ID                  string
	ConnectedSystemID   string
	Name                string
	ExternalIDAttribute string
	Attributes          []AttributeSchema
}

// Validate checks that the object type definition is well-formed.
func (t *ObjectTypeSchema) Validate() error {
	if t.Name == "" {
		return ErrValidation("object type name is required")
	}
	if t.ExternalIDAttribute == "" {
		return ErrValidation("object type %s: external id attribute is required", t.Name)
	}
	if t.AttributeByName(t.ExternalIDAttribute) == nil {
		return ErrValidation("object type %s: external id attribute %q is not in the schema", t.Name, t.ExternalIDAttribute)
	}
	seen := make(map[string]bool, len(t.Attributes))
	for _, a := range t.Attributes {
		if !a.Kind.Valid() {
			return ErrValidation("object type %s: attribute %s has unknown kind %q", t.Name, a.Name, a.Kind)
		}
		key := strings.ToLower(a.Name)
		if seen[key] {
			return ErrValidation("object type %s: duplicate attribute %s", t.Name, a.Name)
		}
		seen[key] = true
	}
	return nil
}

// AttributeByName looks up an attribute schema case-insensitively.
// Returns nil when the name is not part of the schema.
func (t *ObjectTypeSchema) AttributeByName(name string) *AttributeSchema {
	for i := range t.Attributes {
		if strings.EqualFold(t.Attributes[i].Name, name) {
			return &t.Attributes[i]
		}
	}
	return nil
}

// MetaverseTypePolicy holds the per-metaverse-object-type policies that
// govern the deletion lifecycle and obsoletion cleanup.
type MetaverseTypePolicy struct {
	ObjectType                    string
	DeletionRule                  DeletionRule
	GracePeriodDays               *int
	RemoveContributedOnObsoletion bool
}

// DeletionRule governs metaverse-object deletion bookkeeping.
type DeletionRule string

const (
	// DeletionManual never schedules deletion; objects are removed only by
	// an operator.
	DeletionManual DeletionRule = "manual"
	// DeletionWhenLastDisconnected schedules deletion once the last joined
	// connector-space object disconnects, after an optional grace period.
	DeletionWhenLastDisconnected DeletionRule = "when_last_connector_disconnected"
)

// Valid reports whether r is a declared deletion rule.
func (r DeletionRule) Valid() bool {
	return r == DeletionManual || r == DeletionWhenLastDisconnected
}
