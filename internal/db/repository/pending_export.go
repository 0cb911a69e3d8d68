package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"idsync/internal/domain"
)

// PendingExportRepo persists queued outbound change batches and their
// per-attribute expected values.
type PendingExportRepo struct {
	db *sql.DB
}

func NewPendingExportRepo(db *sql.DB) *PendingExportRepo {
	return &PendingExportRepo{db: db}
}

const exportColumns = `id, object_id, change_type, status, error_count, created_at, last_updated`

func (r *PendingExportRepo) Create(ctx context.Context, p *domain.PendingExport) (*domain.PendingExport, error) {
	out := *p
	out.ID = uuid.NewString()
	if out.Status == "" {
		out.Status = domain.ExportPending
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pending_exports (`+exportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.ConnectedSystemObjectID, string(out.ChangeType), string(out.Status),
		out.ErrorCount, out.CreatedAt, nullTime(out.LastUpdated))
	if err != nil {
		return nil, mapDBError(err)
	}
	if err := insertExportChanges(ctx, tx, out.ID, out.Changes); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update rewrites the export row and its remaining expected changes. The
// reconciler shrinks the change list as a confirming import observes values.
func (r *PendingExportRepo) Update(ctx context.Context, p *domain.PendingExport) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE pending_exports SET status = ?, error_count = ?, last_updated = ? WHERE id = ?`,
		string(p.Status), p.ErrorCount, nullTime(p.LastUpdated), p.ID)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("pending export %s not found", p.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pending_export_changes WHERE pending_export_id = ?`, p.ID); err != nil {
		return err
	}
	if err := insertExportChanges(ctx, tx, p.ID, p.Changes); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PendingExportRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_exports WHERE id = ?`, id)
	return mapDBError(err)
}

func (r *PendingExportRepo) GetByObject(ctx context.Context, objectID string) ([]*domain.PendingExport, error) {
	return r.queryExports(ctx,
		`SELECT `+exportColumns+` FROM pending_exports WHERE object_id = ? ORDER BY created_at, id`,
		objectID)
}

func (r *PendingExportRepo) ListBySystem(ctx context.Context, systemID string, page, pageSize int) ([]*domain.PendingExport, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_exports p
		 JOIN connector_space_objects o ON o.id = p.object_id
		 WHERE o.connected_system_id = ?`, systemID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	exports, err := r.queryExports(ctx,
		`SELECT `+prefixColumns("p", exportColumns)+`
		 FROM pending_exports p
		 JOIN connector_space_objects o ON o.id = p.object_id
		 WHERE o.connected_system_id = ?
		 ORDER BY p.created_at, p.id LIMIT ? OFFSET ?`,
		systemID, pageSize, offsetFor(page, pageSize))
	if err != nil {
		return nil, 0, err
	}
	return exports, total, nil
}

func (r *PendingExportRepo) queryExports(ctx context.Context, query string, args ...any) ([]*domain.PendingExport, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []*domain.PendingExport
	for rows.Next() {
		var p domain.PendingExport
		var changeType, status string
		var lastUpdated sql.NullTime
		err := rows.Scan(&p.ID, &p.ConnectedSystemObjectID, &changeType, &status,
			&p.ErrorCount, &p.CreatedAt, &lastUpdated)
		if err != nil {
			return nil, err
		}
		p.ChangeType = domain.ExportChangeType(changeType)
		p.Status = domain.ExportStatus(status)
		p.CreatedAt = p.CreatedAt.UTC()
		p.LastUpdated = timePtr(lastUpdated)
		exports = append(exports, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range exports {
		if err := r.loadChanges(ctx, p); err != nil {
			return nil, err
		}
	}
	return exports, nil
}

func (r *PendingExportRepo) loadChanges(ctx context.Context, p *domain.PendingExport) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT change_type, name, kind, value FROM pending_export_changes
		 WHERE pending_export_id = ? ORDER BY id`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.AttributeChange
		var changeType, kind, value string
		if err := rows.Scan(&changeType, &c.Name, &kind, &value); err != nil {
			return err
		}
		c.Type = domain.AttributeChangeType(changeType)
		v, err := domain.ValueFromCanonical(domain.AttributeKind(kind), value, "", value)
		if err != nil {
			return err
		}
		c.Value = v
		p.Changes = append(p.Changes, c)
	}
	return rows.Err()
}

func insertExportChanges(ctx context.Context, tx *sql.Tx, exportID string, changes []domain.AttributeChange) error {
	for _, c := range changes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pending_export_changes (pending_export_id, change_type, name, kind, value)
			 VALUES (?, ?, ?, ?, ?)`,
			exportID, string(c.Type), c.Name, string(c.Value.Kind()), c.Value.Canonical())
		if err != nil {
			return err
		}
	}
	return nil
}
