// Package postgres implements the session ledger using PostgreSQL
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JohnGrosso13/r2up"
)

// Repo is a PostgreSQL-backed session ledger.
type Repo struct {
	pool      *pgxpool.Pool
	tableName string
}

func NewRepo(pool *pgxpool.Pool, tables r2up.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{pool: pool, tableName: tables.Sessions}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repo) Record(ctx context.Context, session r2up.UploadSession) error {
	if session.State == "" {
		session.State = r2up.SessionCreated
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (upload_id, object_key, owner_id, part_size, part_count, state)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.tableName)
	args := []any{session.UploadID, session.Key, session.OwnerID,
		session.PartSize, session.PartCount, string(session.State)}

	if session.ID != uuid.Nil {
		query = fmt.Sprintf(`
			INSERT INTO %s (id, upload_id, object_key, owner_id, part_size, part_count, state)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, r.tableName)
		args = append([]any{session.ID}, args...)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("record: %w", err)
	}

	return nil
}

func (r *Repo) SetState(ctx context.Context, uploadID string, state r2up.SessionState) error {
	if !state.IsValid() {
		return fmt.Errorf("set state: %w: %s", r2up.ErrInvalidInput, state)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET state = $1, updated_at = NOW()
		WHERE upload_id = $2
	`, r.tableName)

	result, err := r.pool.Exec(ctx, query, string(state), uploadID)
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("set state: %w", r2up.ErrNotFound)
	}

	return nil
}

func (r *Repo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]r2up.UploadSession, error) {
	query := fmt.Sprintf(`
		SELECT id, upload_id, object_key, owner_id, part_size, part_count, state, created_at, updated_at
		FROM %s
		WHERE state = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, r.tableName)

	rows, err := r.pool.Query(ctx, query, string(r2up.SessionCreated), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale: %w", err)
	}
	defer rows.Close()

	var sessions []r2up.UploadSession
	for rows.Next() {
		var s r2up.UploadSession
		var state string
		if err := rows.Scan(&s.ID, &s.UploadID, &s.Key, &s.OwnerID,
			&s.PartSize, &s.PartCount, &state, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list stale: scan: %w", err)
		}
		s.State = r2up.SessionState(state)
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stale: rows: %w", err)
	}

	return sessions, nil
}

// Get returns the session recorded for an upload id.
func (r *Repo) Get(ctx context.Context, uploadID string) (r2up.UploadSession, error) {
	query := fmt.Sprintf(`
		SELECT id, upload_id, object_key, owner_id, part_size, part_count, state, created_at, updated_at
		FROM %s
		WHERE upload_id = $1
	`, r.tableName)

	var s r2up.UploadSession
	var state string
	err := r.pool.QueryRow(ctx, query, uploadID).Scan(&s.ID, &s.UploadID, &s.Key, &s.OwnerID,
		&s.PartSize, &s.PartCount, &state, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r2up.UploadSession{}, r2up.ErrNotFound
		}
		return r2up.UploadSession{}, fmt.Errorf("get: %w", err)
	}

	s.State = r2up.SessionState(state)
	return s, nil
}
