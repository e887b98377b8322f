// Package sqlite implements the session ledger using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JohnGrosso13/r2up"
)

// Repo is a SQLite-backed session ledger.
type Repo struct {
	db        *sql.DB
	tableName string
}

func NewRepo(db *sql.DB, tables r2up.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{db: db, tableName: tables.Sessions}, nil
}

func (r *Repo) Record(ctx context.Context, session r2up.UploadSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}
	if session.State == "" {
		session.State = r2up.SessionCreated
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, upload_id, object_key, owner_id, part_size, part_count, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.tableName)

	_, err := r.db.ExecContext(ctx, query,
		session.ID.String(), session.UploadID, session.Key, session.OwnerID,
		session.PartSize, session.PartCount, string(session.State),
		session.CreatedAt.Format(time.RFC3339Nano), session.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	return nil
}

func (r *Repo) SetState(ctx context.Context, uploadID string, state r2up.SessionState) error {
	if !state.IsValid() {
		return fmt.Errorf("set state: %w: %s", r2up.ErrInvalidInput, state)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET state = ?, updated_at = ?
		WHERE upload_id = ?`, r.tableName)

	result, err := r.db.ExecContext(ctx, query, string(state), now, uploadID)
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set state: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("set state: %w", r2up.ErrNotFound)
	}

	return nil
}

func (r *Repo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]r2up.UploadSession, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, upload_id, object_key, owner_id, part_size, part_count, state, created_at, updated_at
		FROM %s
		WHERE state = ? AND created_at < ?
		ORDER BY created_at
		LIMIT ?`, r.tableName)

	rows, err := r.db.QueryContext(ctx, query,
		string(r2up.SessionCreated), cutoff.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []r2up.UploadSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list stale: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stale: rows: %w", err)
	}

	return sessions, nil
}

// Get returns the session recorded for an upload id.
func (r *Repo) Get(ctx context.Context, uploadID string) (r2up.UploadSession, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, upload_id, object_key, owner_id, part_size, part_count, state, created_at, updated_at
		FROM %s
		WHERE upload_id = ?`, r.tableName)

	row := r.db.QueryRowContext(ctx, query, uploadID)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r2up.UploadSession{}, r2up.ErrNotFound
		}
		return r2up.UploadSession{}, fmt.Errorf("get: %w", err)
	}

	return session, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (r2up.UploadSession, error) {
	var s r2up.UploadSession
	var idStr, state, createdAt, updatedAt string

	err := row.Scan(&idStr, &s.UploadID, &s.Key, &s.OwnerID,
		&s.PartSize, &s.PartCount, &state, &createdAt, &updatedAt)
	if err != nil {
		return r2up.UploadSession{}, err
	}

	s.ID, err = uuid.Parse(idStr)
	if err != nil {
		return r2up.UploadSession{}, fmt.Errorf("parse uuid: %w", err)
	}

	s.State = r2up.SessionState(state)

	s.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return r2up.UploadSession{}, fmt.Errorf("parse created_at: %w", err)
	}

	s.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return r2up.UploadSession{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return s, nil
}
