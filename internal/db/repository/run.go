package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"idsync/internal/domain"
)

// RunRepo records run-profile executions and their per-object activity.
type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

const runColumns = `id, connected_system_id, run_type, status, started_at, finished_at, objects_processed, error_count`

func (r *RunRepo) CreateRun(ctx context.Context, run *domain.SyncRun) (*domain.SyncRun, error) {
	out := *run
	out.ID = uuid.NewString()
	if out.Status == "" {
		out.Status = domain.RunStatusRunning
	}
	if out.StartedAt.IsZero() {
		out.StartedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.ConnectedSystemID, string(out.RunType), string(out.Status),
		out.StartedAt, nullTime(out.FinishedAt), out.ObjectsProcessed, out.ErrorCount)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &out, nil
}

func (r *RunRepo) FinishRun(ctx context.Context, run *domain.SyncRun) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, finished_at = ?, objects_processed = ?, error_count = ?
		 WHERE id = ?`,
		string(run.Status), nullTime(run.FinishedAt), run.ObjectsProcessed, run.ErrorCount, run.ID)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("run %s not found", run.ID)
	}
	return nil
}

func (r *RunRepo) GetRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *RunRepo) ListRuns(ctx context.Context, systemID string, page, pageSize int) ([]domain.SyncRun, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_runs WHERE connected_system_id = ?`, systemID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs WHERE connected_system_id = ?
		 ORDER BY started_at DESC, id LIMIT ? OFFSET ?`,
		systemID, pageSize, offsetFor(page, pageSize))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []domain.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

// LastCompleted returns the most recent completed run of one type, or nil
// when the system has never completed one.
func (r *RunRepo) LastCompleted(ctx context.Context, systemID string, runType domain.RunType) (*domain.SyncRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs
		 WHERE connected_system_id = ? AND run_type = ? AND status = ?
		 ORDER BY started_at DESC LIMIT 1`,
		systemID, string(runType), string(domain.RunStatusCompleted)))
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

func (r *RunRepo) AddItem(ctx context.Context, item *domain.RunItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	var errType sql.NullString
	if item.ErrorType != nil {
		errType = sql.NullString{String: string(*item.ErrorType), Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO run_items (run_id, object_id, object_type, error_type, attribute_name, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.RunID, item.ObjectID, item.ObjectType, errType, item.AttributeName, item.Message, item.CreatedAt)
	if err != nil {
		return mapDBError(err)
	}
	item.ID, _ = res.LastInsertId()
	return nil
}

func (r *RunRepo) ListItems(ctx context.Context, runID string) ([]domain.RunItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, run_id, object_id, object_type, error_type, attribute_name, message, created_at
		 FROM run_items WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.RunItem
	for rows.Next() {
		var item domain.RunItem
		var errType sql.NullString
		err := rows.Scan(&item.ID, &item.RunID, &item.ObjectID, &item.ObjectType,
			&errType, &item.AttributeName, &item.Message, &item.CreatedAt)
		if err != nil {
			return nil, err
		}
		if errType.Valid {
			t := domain.RunItemError(errType.String)
			item.ErrorType = &t
		}
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanRun(row rowScanner) (*domain.SyncRun, error) {
	var run domain.SyncRun
	var runType, status string
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.ConnectedSystemID, &runType, &status,
		&run.StartedAt, &finished, &run.ObjectsProcessed, &run.ErrorCount)
	if err != nil {
		return nil, mapDBError(err)
	}
	run.RunType = domain.RunType(runType)
	run.Status = domain.RunStatus(status)
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = timePtr(finished)
	return &run, nil
}
