package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"idsync/internal/domain"
)

// ObjectRepo persists connector-space objects and their attribute values.
type ObjectRepo struct {
	db *sql.DB
}

func NewObjectRepo(db *sql.DB) *ObjectRepo {
	return &ObjectRepo{db: db}
}

const csoColumns = `id, connected_system_id, object_type, external_id_attribute,
	status, join_type, metaverse_object_id, joined_at, created_at, last_updated`

func (r *ObjectRepo) Create(ctx context.Context, o *domain.ConnectedSystemObject) (*domain.ConnectedSystemObject, error) {
	out := *o
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	if out.Status == "" {
		out.Status = domain.StatusNormal
	}
	if out.JoinType == "" {
		out.JoinType = domain.JoinTypeNotJoined
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO connector_space_objects (`+csoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.ConnectedSystemID, out.ObjectType, out.ExternalIDAttribute,
		string(out.Status), string(out.JoinType), nullString(out.MetaverseObjectID),
		nullTime(out.JoinedAt), out.CreatedAt, nullTime(out.LastUpdated))
	if err != nil {
		return nil, mapDBError(err)
	}
	if err := replaceObjectValues(ctx, tx, out.ID, out.Attributes); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update persists the object row. Attribute values are written separately
// through ReplaceAttributes so that a page's worth of value churn stays
// batched.
func (r *ObjectRepo) Update(ctx context.Context, o *domain.ConnectedSystemObject) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE connector_space_objects SET status = ?, join_type = ?, metaverse_object_id = ?,
		 joined_at = ?, last_updated = ? WHERE id = ?`,
		string(o.Status), string(o.JoinType), nullString(o.MetaverseObjectID),
		nullTime(o.JoinedAt), nullTime(o.LastUpdated), o.ID)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("connector-space object %s not found", o.ID)
	}
	return nil
}

func (r *ObjectRepo) GetByID(ctx context.Context, id string) (*domain.ConnectedSystemObject, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+csoColumns+` FROM connector_space_objects WHERE id = ?`, id)
	o, err := scanObject(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadAttributes(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *ObjectRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM connector_space_objects WHERE id = ?`, id)
	return mapDBError(err)
}

// FindByExternalID returns the single object of one type whose external-id
// attribute equals value. Several matches violate the uniqueness invariant
// and fail loudly as an AmbiguousMatchError.
func (r *ObjectRepo) FindByExternalID(ctx context.Context, systemID, objectType, value string) (*domain.ConnectedSystemObject, error) {
	objs, err := r.findByExternalID(ctx, systemID, &objectType, value)
	if err != nil {
		return nil, err
	}
	switch len(objs) {
	case 0:
		return nil, domain.ErrNotFound("no %s object with external id %q", objectType, value)
	case 1:
		return objs[0], nil
	default:
		return nil, domain.ErrAmbiguousMatch("external id %q matches %d %s objects in system %s",
			value, len(objs), objectType, systemID)
	}
}

// FindByExternalIDAnyType returns every object in the system whose
// external-id attribute equals value, across object types. Reference
// resolution uses this to detect cross-type collisions.
func (r *ObjectRepo) FindByExternalIDAnyType(ctx context.Context, systemID, value string) ([]*domain.ConnectedSystemObject, error) {
	return r.findByExternalID(ctx, systemID, nil, value)
}

func (r *ObjectRepo) findByExternalID(ctx context.Context, systemID string, objectType *string, value string) ([]*domain.ConnectedSystemObject, error) {
	query := `SELECT ` + prefixColumns("o", csoColumns) + `
		FROM connector_space_objects o
		JOIN cso_attribute_values v ON v.object_id = o.id AND v.name = o.external_id_attribute
		WHERE o.connected_system_id = ? AND v.value = ?`
	args := []any{systemID, value}
	if objectType != nil {
		query += ` AND o.object_type = ?`
		args = append(args, *objectType)
	}
	query += ` ORDER BY o.created_at, o.id`
	return r.queryObjects(ctx, query, args...)
}

func (r *ObjectRepo) ListByMetaverseObject(ctx context.Context, mvoID string) ([]*domain.ConnectedSystemObject, error) {
	return r.queryObjects(ctx,
		`SELECT `+csoColumns+` FROM connector_space_objects
		 WHERE metaverse_object_id = ? ORDER BY created_at, id`, mvoID)
}

func (r *ObjectRepo) JoinedFromSystem(ctx context.Context, mvoID, systemID string) ([]*domain.ConnectedSystemObject, error) {
	return r.queryObjects(ctx,
		`SELECT `+csoColumns+` FROM connector_space_objects
		 WHERE metaverse_object_id = ? AND connected_system_id = ? ORDER BY created_at, id`,
		mvoID, systemID)
}

func (r *ObjectRepo) CountBySystem(ctx context.Context, systemID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM connector_space_objects WHERE connected_system_id = ?`, systemID).Scan(&n)
	return n, err
}

func (r *ObjectRepo) ListBySystem(ctx context.Context, systemID string, page, pageSize int) ([]*domain.ConnectedSystemObject, error) {
	return r.queryObjects(ctx,
		`SELECT `+csoColumns+` FROM connector_space_objects
		 WHERE connected_system_id = ? ORDER BY created_at, id LIMIT ? OFFSET ?`,
		systemID, pageSize, offsetFor(page, pageSize))
}

// Watermark predicate: created strictly after W, or updated strictly after W.
// Strict comparison keeps a record touched exactly at the watermark out of
// the next run.
const modifiedSinceWhere = `connected_system_id = ?
	AND (created_at > ? OR (last_updated IS NOT NULL AND last_updated > ?))`

func (r *ObjectRepo) CountModifiedSince(ctx context.Context, systemID string, watermark time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM connector_space_objects WHERE `+modifiedSinceWhere,
		systemID, watermark.UTC(), watermark.UTC()).Scan(&n)
	return n, err
}

func (r *ObjectRepo) ListModifiedSince(ctx context.Context, systemID string, watermark time.Time, page, pageSize int) ([]*domain.ConnectedSystemObject, error) {
	return r.queryObjects(ctx,
		`SELECT `+csoColumns+` FROM connector_space_objects WHERE `+modifiedSinceWhere+`
		 ORDER BY created_at, id LIMIT ? OFFSET ?`,
		systemID, watermark.UTC(), watermark.UTC(), pageSize, offsetFor(page, pageSize))
}

// ReplaceAttributes swaps an object's whole value set in one transaction.
func (r *ObjectRepo) ReplaceAttributes(ctx context.Context, objectID string, attrs []domain.ObjectAttribute) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := replaceObjectValues(ctx, tx, objectID, attrs); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ObjectRepo) DeleteObsoleteUnjoined(ctx context.Context, systemID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM connector_space_objects
		 WHERE connected_system_id = ? AND status = ? AND metaverse_object_id IS NULL`,
		systemID, string(domain.StatusObsolete))
	if err != nil {
		return 0, mapDBError(err)
	}
	return res.RowsAffected()
}

func (r *ObjectRepo) queryObjects(ctx context.Context, query string, args ...any) ([]*domain.ConnectedSystemObject, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objs []*domain.ConnectedSystemObject
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range objs {
		if err := r.loadAttributes(ctx, o); err != nil {
			return nil, err
		}
	}
	return objs, nil
}

func (r *ObjectRepo) loadAttributes(ctx context.Context, o *domain.ConnectedSystemObject) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, kind, value, reference_id, unresolved_reference
		 FROM cso_attribute_values WHERE object_id = ? ORDER BY ord, id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, kind, value string
		var refID, unresolved sql.NullString
		if err := rows.Scan(&name, &kind, &value, &refID, &unresolved); err != nil {
			return err
		}
		v, err := domain.ValueFromCanonical(domain.AttributeKind(kind), value, refID.String, unresolved.String)
		if err != nil {
			return err
		}
		o.Attributes = append(o.Attributes, domain.ObjectAttribute{Name: name, Value: v})
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(row rowScanner) (*domain.ConnectedSystemObject, error) {
	var o domain.ConnectedSystemObject
	var status, joinType string
	var mvoID sql.NullString
	var joinedAt, lastUpdated sql.NullTime
	err := row.Scan(&o.ID, &o.ConnectedSystemID, &o.ObjectType, &o.ExternalIDAttribute,
		&status, &joinType, &mvoID, &joinedAt, &o.CreatedAt, &lastUpdated)
	if err != nil {
		return nil, mapDBError(err)
	}
	o.Status = domain.ObjectStatus(status)
	o.JoinType = domain.JoinType(joinType)
	o.MetaverseObjectID = stringPtr(mvoID)
	o.JoinedAt = timePtr(joinedAt)
	o.LastUpdated = timePtr(lastUpdated)
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

func replaceObjectValues(ctx context.Context, tx *sql.Tx, objectID string, attrs []domain.ObjectAttribute) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cso_attribute_values WHERE object_id = ?`, objectID); err != nil {
		return err
	}
	for i, a := range attrs {
		v := a.Value
		refID, _ := v.ReferenceID()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cso_attribute_values (object_id, ord, name, kind, value, reference_id, unresolved_reference)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			objectID, i, a.Name, string(v.Kind()), v.Canonical(),
			sqlNullable(refID), sqlNullable(v.UnresolvedReference()))
		if err != nil {
			return err
		}
	}
	return nil
}

func sqlNullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// prefixColumns qualifies each column in a comma-joined list with a table
// alias for use in joins.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, alias+"."+strings.TrimSpace(p))
	}
	return strings.Join(out, ", ")
}
