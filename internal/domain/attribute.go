package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AttributeKind declares the payload type of an attribute value.
type AttributeKind string

const (
	KindText      AttributeKind = "text"
	KindNumber    AttributeKind = "number"
	KindDateTime  AttributeKind = "datetime"
	KindBoolean   AttributeKind = "boolean"
	KindGUID      AttributeKind = "guid"
	KindBinary    AttributeKind = "binary"
	KindReference AttributeKind = "reference"
)

// Valid reports whether k is one of the declared attribute kinds.
func (k AttributeKind) Valid() bool {
	switch k {
	case KindText, KindNumber, KindDateTime, KindBoolean, KindGUID, KindBinary, KindReference:
		return true
	}
	return false
}

// AttributeValue is a tagged union holding exactly one payload, selected by
// Kind. Payload fields are unexported; values are built through the typed
// constructors so a value can never carry the wrong payload for its kind.
//
// Reference values carry the raw external-id text they were imported with
// (the unresolved form) and, once resolved, the id of the object they point
// to. Both stay populated together.
type AttributeValue struct {
	kind          AttributeKind
	text          string
	number        int64
	when          time.Time
	boolean       bool
	guid          uuid.UUID
	binary        []byte
	referenceID   string
	unresolvedRef string
}

// TextValue builds a text attribute value.
func TextValue(s string) AttributeValue {
	return AttributeValue{kind: KindText, text: s}
}

// NumberValue builds a numeric attribute value.
func NumberValue(n int64) AttributeValue {
	return AttributeValue{kind: KindNumber, number: n}
}

// DateTimeValue builds a datetime attribute value, normalized to UTC.
func DateTimeValue(t time.Time) AttributeValue {
	return AttributeValue{kind: KindDateTime, when: t.UTC()}
}

// BoolValue builds a boolean attribute value.
func BoolValue(b bool) AttributeValue {
	return AttributeValue{kind: KindBoolean, boolean: b}
}

// GUIDValue builds an identifier attribute value.
func GUIDValue(id uuid.UUID) AttributeValue {
	return AttributeValue{kind: KindGUID, guid: id}
}

// BinaryValue builds a binary attribute value.
func BinaryValue(b []byte) AttributeValue {
	return AttributeValue{kind: KindBinary, binary: b}
}

// ReferenceValue builds an unresolved reference carrying only the raw
// external-id text.
func ReferenceValue(externalID string) AttributeValue {
	return AttributeValue{kind: KindReference, unresolvedRef: externalID}
}

// ResolvedReferenceValue builds a reference that keeps both the raw
// external-id text and the id of the resolved object.
func ResolvedReferenceValue(externalID, objectID string) AttributeValue {
	return AttributeValue{kind: KindReference, unresolvedRef: externalID, referenceID: objectID}
}

// Kind returns the declared payload kind.
func (v AttributeValue) Kind() AttributeKind { return v.kind }

// IsZero reports whether v is the zero value (no payload at all).
func (v AttributeValue) IsZero() bool { return v.kind == "" }

// Text returns the text payload. Zero unless Kind is text.
func (v AttributeValue) Text() string { return v.text }

// Number returns the numeric payload. Zero unless Kind is number.
func (v AttributeValue) Number() int64 { return v.number }

// Time returns the datetime payload. Zero unless Kind is datetime.
func (v AttributeValue) Time() time.Time { return v.when }

// Bool returns the boolean payload. Zero unless Kind is boolean.
func (v AttributeValue) Bool() bool { return v.boolean }

// GUID returns the identifier payload. Zero unless Kind is guid.
func (v AttributeValue) GUID() uuid.UUID { return v.guid }

// Binary returns the binary payload. Nil unless Kind is binary.
func (v AttributeValue) Binary() []byte { return v.binary }

// ReferenceID returns the resolved object id of a reference value and
// whether it has been resolved.
func (v AttributeValue) ReferenceID() (string, bool) {
	return v.referenceID, v.referenceID != ""
}

// UnresolvedReference returns the raw external-id text of a reference value.
func (v AttributeValue) UnresolvedReference() string { return v.unresolvedRef }

// WithResolvedReference returns a copy of a reference value with the
// resolved object id set. The raw external-id text is retained.
func (v AttributeValue) WithResolvedReference(objectID string) AttributeValue {
	v.referenceID = objectID
	return v
}

// Equal compares two values by kind and typed payload. Text comparison is
// exact; references compare by resolved id when both sides are resolved,
// otherwise by the raw external-id text.
func (v AttributeValue) Equal(o AttributeValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.number == o.number
	case KindDateTime:
		return v.when.Equal(o.when)
	case KindBoolean:
		return v.boolean == o.boolean
	case KindGUID:
		return v.guid == o.guid
	case KindBinary:
		return string(v.binary) == string(o.binary)
	case KindReference:
		if v.referenceID != "" && o.referenceID != "" {
			return v.referenceID == o.referenceID
		}
		return v.unresolvedRef == o.unresolvedRef
	}
	return false
}

// EqualFold is Equal with case-insensitive text comparison. Non-text kinds
// fall back to Equal.
func (v AttributeValue) EqualFold(o AttributeValue) bool {
	if v.kind == KindText && o.kind == KindText {
		return strings.EqualFold(v.text, o.text)
	}
	return v.Equal(o)
}

// Canonical returns the storage encoding of the payload: text as-is, numbers
// in decimal, datetimes in UTC RFC 3339, booleans as "0"/"1", guids
// lowercased, binary in base64. Reference values canonicalize to the raw
// external-id text; the resolved id is persisted separately.
func (v AttributeValue) Canonical() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatInt(v.number, 10)
	case KindDateTime:
		return v.when.UTC().Format(time.RFC3339Nano)
	case KindBoolean:
		if v.boolean {
			return "1"
		}
		return "0"
	case KindGUID:
		return strings.ToLower(v.guid.String())
	case KindBinary:
		return base64.StdEncoding.EncodeToString(v.binary)
	case KindReference:
		return v.unresolvedRef
	}
	return ""
}

// ParseValue decodes a wire-form string into a typed value for the declared
// kind. Reference values come back unresolved.
func ParseValue(kind AttributeKind, raw string) (AttributeValue, error) {
	switch kind {
	case KindText:
		return TextValue(raw), nil
	case KindNumber:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return AttributeValue{}, ErrValidation("invalid number %q", raw)
		}
		return NumberValue(n), nil
	case KindDateTime:
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
		if err != nil {
			// Date-only form is common in HR feeds.
			t, err = time.Parse("2006-01-02", strings.TrimSpace(raw))
			if err != nil {
				return AttributeValue{}, ErrValidation("invalid datetime %q", raw)
			}
		}
		return DateTimeValue(t), nil
	case KindBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "1", "yes":
			return BoolValue(true), nil
		case "false", "0", "no":
			return BoolValue(false), nil
		}
		return AttributeValue{}, ErrValidation("invalid boolean %q", raw)
	case KindGUID:
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return AttributeValue{}, ErrValidation("invalid guid %q", raw)
		}
		return GUIDValue(id), nil
	case KindBinary:
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return AttributeValue{}, ErrValidation("invalid base64 payload")
		}
		return BinaryValue(b), nil
	case KindReference:
		return ReferenceValue(raw), nil
	}
	return AttributeValue{}, ErrValidation("unknown attribute kind %q", kind)
}

// ValueFromCanonical rebuilds a value from its persisted form. refID and
// unresolved are only consulted for reference values.
func ValueFromCanonical(kind AttributeKind, canonical, refID, unresolved string) (AttributeValue, error) {
	if kind == KindReference {
		v := ReferenceValue(unresolved)
		if refID != "" {
			v = v.WithResolvedReference(refID)
		}
		return v, nil
	}
	return ParseValue(kind, canonical)
}

// String renders the value for logs and error messages.
func (v AttributeValue) String() string {
	if v.kind == KindReference {
		if v.referenceID != "" {
			return fmt.Sprintf("ref(%s->%s)", v.unresolvedRef, v.referenceID)
		}
		return fmt.Sprintf("ref(%s)", v.unresolvedRef)
	}
	return v.Canonical()
}

// MarshalJSON renders the value for the ops API.
func (v AttributeValue) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind        AttributeKind `json:"kind"`
		Value       string        `json:"value"`
		ReferenceID string        `json:"reference_id,omitempty"`
	}{Kind: v.kind, Value: v.Canonical(), ReferenceID: v.referenceID}
	return json.Marshal(out)
}
