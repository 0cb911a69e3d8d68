package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"idsync/internal/domain"
)

// APIKeyRepo implements middleware.APIKeyLookup against the api_keys table.
type APIKeyRepo struct {
	db *sql.DB
}

func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo {
	return &APIKeyRepo{db: db}
}

// LookupPrincipalByAPIKeyHash returns the principal name for a key hash.
func (r *APIKeyRepo) LookupPrincipalByAPIKeyHash(ctx context.Context, keyHash string) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT principal_name FROM api_keys WHERE key_hash = ?`, keyHash).Scan(&name)
	if err != nil {
		return "", mapDBError(err)
	}
	return name, nil
}

func (r *APIKeyRepo) Create(ctx context.Context, principalName, keyHash string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, principal_name, key_hash, created_at) VALUES (?, ?, ?, ?)`,
		id, principalName, keyHash, time.Now().UTC())
	if err != nil {
		return "", mapDBError(err)
	}
	return id, nil
}

func (r *APIKeyRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("api key %s not found", id)
	}
	return nil
}
