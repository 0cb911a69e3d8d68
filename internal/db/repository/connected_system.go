package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"idsync/internal/domain"
)

// ConnectedSystemRepo persists connected systems, object type schemas, and
// metaverse type policies.
type ConnectedSystemRepo struct {
	db *sql.DB
}

func NewConnectedSystemRepo(db *sql.DB) *ConnectedSystemRepo {
	return &ConnectedSystemRepo{db: db}
}

func (r *ConnectedSystemRepo) Create(ctx context.Context, s *domain.ConnectedSystem) (*domain.ConnectedSystem, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := *s
	out.ID = uuid.NewString()
	out.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO connected_systems (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		out.ID, out.Name, out.Description, out.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &out, nil
}

func (r *ConnectedSystemRepo) GetByID(ctx context.Context, id string) (*domain.ConnectedSystem, error) {
	return r.get(ctx, `SELECT id, name, description, created_at FROM connected_systems WHERE id = ?`, id)
}

func (r *ConnectedSystemRepo) GetByName(ctx context.Context, name string) (*domain.ConnectedSystem, error) {
	return r.get(ctx, `SELECT id, name, description, created_at FROM connected_systems WHERE name = ?`, name)
}

func (r *ConnectedSystemRepo) get(ctx context.Context, query, arg string) (*domain.ConnectedSystem, error) {
	var s domain.ConnectedSystem
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &s, nil
}

func (r *ConnectedSystemRepo) List(ctx context.Context) ([]domain.ConnectedSystem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM connected_systems ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var systems []domain.ConnectedSystem
	for rows.Next() {
		var s domain.ConnectedSystem
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		systems = append(systems, s)
	}
	return systems, rows.Err()
}

func (r *ConnectedSystemRepo) CreateObjectType(ctx context.Context, t *domain.ObjectTypeSchema) (*domain.ObjectTypeSchema, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	out := *t
	out.ID = uuid.NewString()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO object_types (id, connected_system_id, name, external_id_attribute) VALUES (?, ?, ?, ?)`,
		out.ID, out.ConnectedSystemID, out.Name, out.ExternalIDAttribute)
	if err != nil {
		return nil, mapDBError(err)
	}
	for _, a := range out.Attributes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attribute_schemas (object_type_id, name, kind, multi_valued) VALUES (?, ?, ?, ?)`,
			out.ID, a.Name, string(a.Kind), boolToInt(a.MultiValued))
		if err != nil {
			return nil, mapDBError(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ConnectedSystemRepo) GetObjectType(ctx context.Context, systemID, name string) (*domain.ObjectTypeSchema, error) {
	var t domain.ObjectTypeSchema
	err := r.db.QueryRowContext(ctx,
		`SELECT id, connected_system_id, name, external_id_attribute FROM object_types
		 WHERE connected_system_id = ? AND name = ?`, systemID, name).
		Scan(&t.ID, &t.ConnectedSystemID, &t.Name, &t.ExternalIDAttribute)
	if err != nil {
		return nil, mapDBError(err)
	}
	if err := r.loadAttributeSchemas(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ConnectedSystemRepo) ListObjectTypes(ctx context.Context, systemID string) ([]domain.ObjectTypeSchema, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, connected_system_id, name, external_id_attribute FROM object_types
		 WHERE connected_system_id = ? ORDER BY name`, systemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []domain.ObjectTypeSchema
	for rows.Next() {
		var t domain.ObjectTypeSchema
		if err := rows.Scan(&t.ID, &t.ConnectedSystemID, &t.Name, &t.ExternalIDAttribute); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range types {
		if err := r.loadAttributeSchemas(ctx, &types[i]); err != nil {
			return nil, err
		}
	}
	return types, nil
}

func (r *ConnectedSystemRepo) loadAttributeSchemas(ctx context.Context, t *domain.ObjectTypeSchema) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, kind, multi_valued FROM attribute_schemas WHERE object_type_id = ? ORDER BY id`, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.AttributeSchema
		var kind string
		var multi int64
		if err := rows.Scan(&a.Name, &kind, &multi); err != nil {
			return err
		}
		a.Kind = domain.AttributeKind(kind)
		a.MultiValued = multi != 0
		t.Attributes = append(t.Attributes, a)
	}
	return rows.Err()
}

func (r *ConnectedSystemRepo) UpsertMetaverseTypePolicy(ctx context.Context, p *domain.MetaverseTypePolicy) error {
	if !p.DeletionRule.Valid() {
		return domain.ErrValidation("unknown deletion rule %q", p.DeletionRule)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO metaverse_type_policies (object_type, deletion_rule, grace_period_days, remove_contributed_on_obsoletion)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(object_type) DO UPDATE SET
		   deletion_rule = excluded.deletion_rule,
		   grace_period_days = excluded.grace_period_days,
		   remove_contributed_on_obsoletion = excluded.remove_contributed_on_obsoletion`,
		p.ObjectType, string(p.DeletionRule), nullInt(p.GracePeriodDays), boolToInt(p.RemoveContributedOnObsoletion))
	return mapDBError(err)
}

func (r *ConnectedSystemRepo) GetMetaverseTypePolicy(ctx context.Context, objectType string) (*domain.MetaverseTypePolicy, error) {
	var p domain.MetaverseTypePolicy
	var rule string
	var grace sql.NullInt64
	var remove int64
	err := r.db.QueryRowContext(ctx,
		`SELECT object_type, deletion_rule, grace_period_days, remove_contributed_on_obsoletion
		 FROM metaverse_type_policies WHERE object_type = ?`, objectType).
		Scan(&p.ObjectType, &rule, &grace, &remove)
	if err != nil {
		return nil, mapDBError(err)
	}
	p.DeletionRule = domain.DeletionRule(rule)
	p.GracePeriodDays = intPtr(grace)
	p.RemoveContributedOnObsoletion = remove != 0
	return &p, nil
}
