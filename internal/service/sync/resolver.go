package sync

import (
	"context"

	"idsync/internal/domain"
)

// ReferenceResolver resolves raw external-id text to connector-space objects
// within one connected system.
type ReferenceResolver struct {
	objects domain.ObjectRepository
}

func NewReferenceResolver(objects domain.ObjectRepository) *ReferenceResolver {
	return &ReferenceResolver{objects: objects}
}

// Resolve returns the object whose external-id attribute equals externalID,
// or nil when no object carries it yet (the reference stays unresolved and
// is retried on the next run). The lookup spans object types: two objects of
// different types sharing an external-id value is an AmbiguousMatchError,
// never a silent pick.
func (r *ReferenceResolver) Resolve(ctx context.Context, systemID, externalID string) (*domain.ConnectedSystemObject, error) {
	matches, err := r.objects.FindByExternalIDAnyType(ctx, systemID, externalID)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, domain.ErrAmbiguousMatch("reference %q matches %d objects in system %s",
			externalID, len(matches), systemID)
	}
}
