// Package postgres is the production Profile Store. Records live in the
// user_records table; a trigger publishes every write on the
// user_records_changed channel, which drives live queries.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"clocklayer/internal/profile"
	"clocklayer/internal/profile/models"
	id "clocklayer/pkg/domain"
	"clocklayer/pkg/platform/sentinel"
	"clocklayer/pkg/platform/tx"
	"clocklayer/pkg/requestcontext"
)

// ChangeChannel is the NOTIFY channel written by the user_records trigger.
const ChangeChannel = "user_records_changed"

const selectColumns = `id, name, username, profile_image_url, phone, signup_user_agent, referred_by,
	task_ledger_id, task_ledger_points, has_completed_tasks, admitted_at, created_at, last_login_at, updated_at`

// NotificationSource is satisfied by *pq.Listener.
type NotificationSource interface {
	NotificationChannel() <-chan *pq.Notification
}

type Store struct {
	db     *sql.DB
	logger *slog.Logger
	feed   profile.Feed
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.feed.Logger = s.logger
	return s
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) conn(ctx context.Context) queryer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *Store) Get(ctx context.Context, identityID id.IdentityID) (*models.UserRecord, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+selectColumns+` FROM user_records WHERE id = $1`, string(identityID))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// MergeWrite locks the row (creating an empty one first if needed), applies
// the patch in Go, and writes the merged row back in the same transaction.
func (s *Store) MergeWrite(ctx context.Context, identityID id.IdentityID, patch models.Patch) (*models.UserRecord, error) {
	now := requestcontext.Now(ctx)
	var out *models.UserRecord
	err := tx.Run(ctx, s.db, func(ctx context.Context, t *sql.Tx) error {
		res, err := t.ExecContext(ctx,
			`INSERT INTO user_records (id, last_login_at, updated_at) VALUES ($1, $2, $2) ON CONFLICT (id) DO NOTHING`,
			string(identityID), now)
		if err != nil {
			return err
		}
		created, err := res.RowsAffected()
		if err != nil {
			return err
		}

		row := t.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM user_records WHERE id = $1 FOR UPDATE`, string(identityID))
		rec, err := scanRecord(row)
		if err != nil {
			return err
		}
		if !rec.Apply(patch, now) && created == 0 {
			out = rec
			return nil
		}

		_, err = t.ExecContext(ctx, `UPDATE user_records SET
			name = $2, username = $3, profile_image_url = $4, phone = $5, signup_user_agent = $6,
			referred_by = $7, task_ledger_id = $8, task_ledger_points = $9, has_completed_tasks = $10,
			admitted_at = $11, created_at = $12, last_login_at = $13, updated_at = $14
			WHERE id = $1`,
			string(rec.ID), rec.Name, rec.Username, nullString(rec.ProfileImageURL), nullString(rec.Phone),
			rec.SignupUserAgent, nullIdentity(rec.ReferredBy), nullString(rec.TaskLedgerID), rec.TaskLedgerPoints,
			rec.HasCompletedTasks, nullTime(rec.AdmittedAt), nullTime(rec.CreatedAt), rec.LastLoginAt, rec.UpdatedAt,
		)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.feed.NotifyRecord(out)
	return out, nil
}

func (s *Store) Find(ctx context.Context, filter models.Filter) ([]*models.UserRecord, error) {
	where, args := whereClause(filter)
	query := `SELECT ` + selectColumns + ` FROM user_records` + where + ` ORDER BY created_at ASC NULLS LAST, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]*models.UserRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, filter models.Filter, fn func(models.Snapshot)) (profile.Subscription, error) {
	return s.feed.Subscribe(ctx, filter, s.Find, fn), nil
}

// Listen forwards change notifications to live queries until ctx ends. The
// payload is the changed record's id; only live queries that record can
// affect are refreshed. A nil notification means the listener reconnected
// and may have missed events, so every live query refreshes.
func (s *Store) Listen(ctx context.Context, source NotificationSource) error {
	ch := source.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-ch:
			if !ok {
				return errors.New("postgres notification channel closed")
			}
			if n == nil {
				s.feed.Notify()
				continue
			}
			if n.Channel != ChangeChannel {
				continue
			}
			s.notifyChanged(ctx, id.IdentityID(n.Extra))
		}
	}
}

func (s *Store) notifyChanged(ctx context.Context, identityID id.IdentityID) {
	rec, err := s.Get(ctx, identityID)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.WarnContext(ctx, "changed record lookup failed, refreshing all live queries",
				"identity_id", identityID.String(), "error", err)
		}
		s.feed.Notify()
		return
	}
	s.feed.NotifyRecord(rec)
}

func whereClause(f models.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.HasCompletedTasks != nil {
		args = append(args, *f.HasCompletedTasks)
		conds = append(conds, fmt.Sprintf("has_completed_tasks = $%d", len(args)))
	}
	if f.ReferredBy != nil {
		args = append(args, string(*f.ReferredBy))
		conds = append(conds, fmt.Sprintf("referred_by = $%d", len(args)))
	}
	if f.Username != "" {
		args = append(args, f.Username)
		conds = append(conds, fmt.Sprintf("username = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.UserRecord, error) {
	var (
		rec                         models.UserRecord
		identity                    string
		image, phone, ref, ledgerID sql.NullString
		admittedAt, createdAt       sql.NullTime
	)
	err := row.Scan(&identity, &rec.Name, &rec.Username, &image, &phone, &rec.SignupUserAgent, &ref,
		&ledgerID, &rec.TaskLedgerPoints, &rec.HasCompletedTasks, &admittedAt, &createdAt, &rec.LastLoginAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.ID = id.IdentityID(identity)
	rec.ProfileImageURL = stringPtr(image)
	rec.Phone = stringPtr(phone)
	rec.TaskLedgerID = stringPtr(ledgerID)
	if ref.Valid {
		r := id.IdentityID(ref.String)
		rec.ReferredBy = &r
	}
	rec.AdmittedAt = timePtr(admittedAt)
	rec.CreatedAt = timePtr(createdAt)
	return &rec, nil
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullIdentity(p *id.IdentityID) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}
