// Package postgres stores broadcast messages and inbox read markers.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clocklayer/internal/broadcast/models"
	id "clocklayer/pkg/domain"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, msg models.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, title, content, created_at) VALUES ($1, $2, $3, $4)`,
		msg.ID.String(), msg.Title, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// List returns up to limit messages, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]models.Message, error) {
	query := `SELECT id, title, content, created_at FROM messages ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg models.Message
			raw string
		)
		if err := rows.Scan(&raw, &msg.Title, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		u, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid message id %q: %w", raw, err)
		}
		msg.ID = id.MessageID(u)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (s *Store) LastRead(ctx context.Context, identityID id.IdentityID) (*time.Time, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT last_read_at FROM inbox_reads WHERE identity_id = $1`, string(identityID)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &at, nil
}

// MarkRead moves the read marker forward. An older timestamp never rewinds it.
func (s *Store) MarkRead(ctx context.Context, identityID id.IdentityID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO inbox_reads (identity_id, last_read_at) VALUES ($1, $2)
		ON CONFLICT (identity_id) DO UPDATE SET last_read_at = GREATEST(inbox_reads.last_read_at, EXCLUDED.last_read_at)`,
		string(identityID), at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
