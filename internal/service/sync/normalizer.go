package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"idsync/internal/domain"
)

// Normalizer converts raw imported records into validated attribute sets
// for one connected system's schema.
type Normalizer struct {
	resolver *ReferenceResolver
}

func NewNormalizer(resolver *ReferenceResolver) *Normalizer {
	return &Normalizer{resolver: resolver}
}

// Normalize validates a raw record against the object type schema and
// returns the attribute values to store. Validation failures come back as
// classified ObjectErrors so the run can record them and move on; only
// infrastructure failures are plain errors.
//
// Null and empty entries are deliberate absence: they are dropped, never
// stored, so a value that disappears from the feed surfaces as a removal on
// the next flow pass.
func (n *Normalizer) Normalize(ctx context.Context, schema *domain.ObjectTypeSchema, rec domain.RawRecord) ([]domain.ObjectAttribute, error) {
	objectID := rawExternalID(schema, rec)

	seen := make(map[string]bool, len(rec.Attributes))
	for _, ra := range rec.Attributes {
		key := strings.ToLower(ra.Name)
		if seen[key] {
			return nil, domain.NewObjectError(domain.ErrDuplicateImportedAttributes, objectID, ra.Name,
				fmt.Sprintf("attribute %q imported more than once", ra.Name))
		}
		seen[key] = true
	}

	var out []domain.ObjectAttribute
	for _, ra := range rec.Attributes {
		attrSchema := schema.AttributeByName(ra.Name)
		if attrSchema == nil {
			return nil, domain.NewObjectError(domain.ErrUnexpectedAttribute, objectID, ra.Name,
				fmt.Sprintf("attribute %q is not in the %s schema", ra.Name, schema.Name))
		}

		for _, raw := range ra.Values {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			v, err := domain.ParseValue(attrSchema.Kind, raw)
			if err != nil {
				return nil, domain.NewObjectError(domain.ErrInvalidAttributeValue, objectID, attrSchema.Name,
					fmt.Sprintf("attribute %q: %v", attrSchema.Name, err))
			}
			if attrSchema.Kind == domain.KindReference {
				v, err = n.resolveReference(ctx, schema.ConnectedSystemID, objectID, attrSchema.Name, raw)
				if err != nil {
					return nil, err
				}
			}
			out = append(out, domain.ObjectAttribute{Name: attrSchema.Name, Value: v})
		}
	}
	return out, nil
}

// resolveReference keeps the raw external-id text alongside the resolved
// link; an unresolvable reference is stored unresolved and retried next run.
func (n *Normalizer) resolveReference(ctx context.Context, systemID, objectID, attribute, raw string) (domain.AttributeValue, error) {
	target, err := n.resolver.Resolve(ctx, systemID, raw)
	if err != nil {
		var ambiguous *domain.AmbiguousMatchError
		if errors.As(err, &ambiguous) {
			return domain.AttributeValue{}, domain.NewObjectError(domain.ErrAmbiguousReference, objectID, attribute,
				err.Error())
		}
		return domain.AttributeValue{}, err
	}
	if target == nil {
		return domain.ReferenceValue(raw), nil
	}
	return domain.ResolvedReferenceValue(raw, target.ID), nil
}

// rawExternalID pulls the external-id value straight off the raw record for
// error context; validation has not run yet so it may be empty.
func rawExternalID(schema *domain.ObjectTypeSchema, rec domain.RawRecord) string {
	for _, ra := range rec.Attributes {
		if strings.EqualFold(ra.Name, schema.ExternalIDAttribute) {
			for _, v := range ra.Values {
				if strings.TrimSpace(v) != "" {
					return v
				}
			}
		}
	}
	return ""
}
