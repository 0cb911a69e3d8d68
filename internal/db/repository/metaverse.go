package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"idsync/internal/domain"
)

// MetaverseRepo persists metaverse objects and their contributed attribute
// values.
type MetaverseRepo struct {
	db *sql.DB
}

func NewMetaverseRepo(db *sql.DB) *MetaverseRepo {
	return &MetaverseRepo{db: db}
}

const mvoColumns = `id, object_type, last_disconnected_at, deletion_eligible_at, created_at, last_updated`

func (r *MetaverseRepo) Create(ctx context.Context, m *domain.MetaverseObject) (*domain.MetaverseObject, error) {
	out := *m
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO metaverse_objects (`+mvoColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		out.ID, out.ObjectType, nullTime(out.LastDisconnectedAt),
		nullTime(out.DeletionEligibleAt), out.CreatedAt, nullTime(out.LastUpdated))
	if err != nil {
		return nil, mapDBError(err)
	}
	return &out, nil
}

// Update persists the deletion bookkeeping and timestamp fields. Attribute
// values only change through ApplyChangeSet.
func (r *MetaverseRepo) Update(ctx context.Context, m *domain.MetaverseObject) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE metaverse_objects SET last_disconnected_at = ?, deletion_eligible_at = ?, last_updated = ?
		 WHERE id = ?`,
		nullTime(m.LastDisconnectedAt), nullTime(m.DeletionEligibleAt), nullTime(m.LastUpdated), m.ID)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("metaverse object %s not found", m.ID)
	}
	return nil
}

func (r *MetaverseRepo) GetByID(ctx context.Context, id string) (*domain.MetaverseObject, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mvoColumns+` FROM metaverse_objects WHERE id = ?`, id)
	m, err := scanMetaverseObject(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadAttributes(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MetaverseRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metaverse_objects WHERE id = ?`, id)
	return mapDBError(err)
}

func (r *MetaverseRepo) List(ctx context.Context, objectType string, page, pageSize int) ([]*domain.MetaverseObject, int64, error) {
	where, args := ``, []any{}
	if objectType != "" {
		where = ` WHERE object_type = ?`
		args = append(args, objectType)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM metaverse_objects`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + mvoColumns + ` FROM metaverse_objects` + where +
		` ORDER BY created_at, id LIMIT ? OFFSET ?`
	args = append(args, pageSize, offsetFor(page, pageSize))
	objs, err := r.queryObjects(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return objs, total, nil
}

// FindByAttribute returns the metaverse objects of one type whose named
// attribute equals v. Text values compare case-insensitively; everything
// else compares on the canonical encoding.
func (r *MetaverseRepo) FindByAttribute(ctx context.Context, objectType, attribute string, v domain.AttributeValue) ([]*domain.MetaverseObject, error) {
	cmp := `v.value = ?`
	if v.Kind() == domain.KindText {
		cmp = `v.value = ? COLLATE NOCASE`
	}
	return r.queryObjects(ctx,
		`SELECT DISTINCT `+prefixColumns("m", mvoColumns)+`
		 FROM metaverse_objects m
		 JOIN mvo_attribute_values v ON v.object_id = m.id
		 WHERE m.object_type = ? AND v.name = ? AND v.kind = ? AND `+cmp+`
		 ORDER BY m.created_at, m.id`,
		objectType, attribute, string(v.Kind()), v.Canonical())
}

// ApplyChangeSet applies staged additions and removals in one transaction
// and stamps last_updated. Removals match on name, kind, canonical value,
// and contributor.
func (r *MetaverseRepo) ApplyChangeSet(ctx context.Context, cs *domain.PendingChangeSet) error {
	if cs == nil || cs.Empty() {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rem := range cs.Removals {
		query := `DELETE FROM mvo_attribute_values
			WHERE object_id = ? AND name = ? AND kind = ? AND value = ?`
		args := []any{cs.MetaverseObjectID, rem.Name, string(rem.Value.Kind()), rem.Value.Canonical()}
		if rem.ContributedBy != nil {
			query += ` AND contributed_by = ?`
			args = append(args, *rem.ContributedBy)
		} else {
			query += ` AND contributed_by IS NULL`
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	for _, add := range cs.Additions {
		v := add.Value
		refID, _ := v.ReferenceID()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO mvo_attribute_values (object_id, name, kind, value, reference_id, unresolved_reference, contributed_by)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			cs.MetaverseObjectID, add.Name, string(v.Kind()), v.Canonical(),
			sqlNullable(refID), sqlNullable(v.UnresolvedReference()), nullString(add.ContributedBy))
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE metaverse_objects SET last_updated = ? WHERE id = ?`, now, cs.MetaverseObjectID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *MetaverseRepo) ListDeletionEligible(ctx context.Context, now time.Time) ([]*domain.MetaverseObject, error) {
	return r.queryObjects(ctx,
		`SELECT `+mvoColumns+` FROM metaverse_objects
		 WHERE deletion_eligible_at IS NOT NULL AND deletion_eligible_at <= ?
		 ORDER BY deletion_eligible_at, id`, now.UTC())
}

func (r *MetaverseRepo) queryObjects(ctx context.Context, query string, args ...any) ([]*domain.MetaverseObject, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objs []*domain.MetaverseObject
	for rows.Next() {
		m, err := scanMetaverseObject(rows)
		if err != nil {
			return nil, err
		}
		objs = append(objs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, m := range objs {
		if err := r.loadAttributes(ctx, m); err != nil {
			return nil, err
		}
	}
	return objs, nil
}

func (r *MetaverseRepo) loadAttributes(ctx context.Context, m *domain.MetaverseObject) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, kind, value, reference_id, unresolved_reference, contributed_by
		 FROM mvo_attribute_values WHERE object_id = ? ORDER BY id`, m.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, kind, value string
		var refID, unresolved, contributor sql.NullString
		if err := rows.Scan(&name, &kind, &value, &refID, &unresolved, &contributor); err != nil {
			return err
		}
		v, err := domain.ValueFromCanonical(domain.AttributeKind(kind), value, refID.String, unresolved.String)
		if err != nil {
			return err
		}
		m.Attributes = append(m.Attributes, domain.MetaverseAttribute{
			Name:          name,
			Value:         v,
			ContributedBy: stringPtr(contributor),
		})
	}
	return rows.Err()
}

func scanMetaverseObject(row rowScanner) (*domain.MetaverseObject, error) {
	var m domain.MetaverseObject
	var disconnected, eligible, lastUpdated sql.NullTime
	err := row.Scan(&m.ID, &m.ObjectType, &disconnected, &eligible, &m.CreatedAt, &lastUpdated)
	if err != nil {
		return nil, mapDBError(err)
	}
	m.LastDisconnectedAt = timePtr(disconnected)
	m.DeletionEligibleAt = timePtr(eligible)
	m.LastUpdated = timePtr(lastUpdated)
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}
