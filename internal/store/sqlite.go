package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/benlos-peru/banquea-bot-whatsapp/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// DB exposes the underlying handle so the question provider can share it.
func (r *SQLiteRepo) DB() *sql.DB { return r.db }

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

const userColumns = `id, phone_number, state, preferred_day, preferred_hour,
	ever_subscribed, last_question_id, last_sent_at, last_slot_fired,
	answered_count, correct_count, created_at`

// GetByPhone returns the user addressed by phone, or ErrNotFound.
func (r *SQLiteRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone_number = ?`, phone)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// Upsert inserts or updates a user keyed by phone number and backfills the
// generated id on insert.
func (r *SQLiteRepo) Upsert(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
		u.CreatedAt = created
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (
			phone_number, state, preferred_day, preferred_hour,
			ever_subscribed, last_question_id, last_sent_at, last_slot_fired,
			answered_count, correct_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone_number) DO UPDATE SET
			state            = excluded.state,
			preferred_day    = excluded.preferred_day,
			preferred_hour   = excluded.preferred_hour,
			ever_subscribed  = excluded.ever_subscribed,
			last_question_id = excluded.last_question_id,
			last_sent_at     = excluded.last_sent_at,
			last_slot_fired  = excluded.last_slot_fired,
			answered_count   = excluded.answered_count,
			correct_count    = excluded.correct_count
		RETURNING id`,
		u.PhoneNumber, int(u.State), toNullInt(u.PreferredDay), toNullInt(u.PreferredHour),
		boolToInt(u.EverSubscribed), toNullInt64(u.LastQuestionID), toNullTime(u.LastSentAt),
		u.LastSlotFired, u.AnsweredCount, u.CorrectCount, created.Unix(),
	)
	return row.Scan(&u.ID)
}

// FindDue returns subscribed users matching (day, hour) that have not fired
// for slotKey yet.
func (r *SQLiteRepo) FindDue(ctx context.Context, day, hour int, slotKey string) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE state = ?
		  AND preferred_day = ?
		  AND preferred_hour = ?
		  AND last_slot_fired != ?
		ORDER BY id`,
		int(domain.StateSubscribed), day, hour, slotKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

// ClaimSlot marks slotKey fired for the user. The conditional UPDATE is the
// exactly-once gate: only the caller that flips last_slot_fired observes an
// affected row.
func (r *SQLiteRepo) ClaimSlot(ctx context.Context, userID int64, slotKey string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET last_slot_fired = ?, last_sent_at = ?
		WHERE id = ? AND last_slot_fired != ?`,
		slotKey, at.UTC().Unix(), userID, slotKey,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordAnswer appends one graded answer to the audit table.
func (r *SQLiteRepo) RecordAnswer(ctx context.Context, rec AnswerRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_responses (user_id, question_id, selected_option, is_correct, responded_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.UserID, rec.QuestionID, rec.Option, boolToInt(rec.Correct), rec.AnsweredAt.UTC().Unix(),
	)
	return err
}

// CountStats returns row counts for the admin endpoint.
func (r *SQLiteRepo) CountStats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&s.Users); err != nil {
		return s, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&s.Questions); err != nil {
		return s, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_responses`).Scan(&s.Responses); err != nil {
		return s, err
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		u         domain.User
		state     int
		day       sql.NullInt64
		hour      sql.NullInt64
		ever      int
		lastQ     sql.NullInt64
		lastSent  sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(
		&u.ID, &u.PhoneNumber, &state, &day, &hour,
		&ever, &lastQ, &lastSent, &u.LastSlotFired,
		&u.AnsweredCount, &u.CorrectCount, &createdAt,
	); err != nil {
		return nil, err
	}
	u.State = domain.State(state)
	u.PreferredDay = fromNullInt(day)
	u.PreferredHour = fromNullInt(hour)
	u.EverSubscribed = ever != 0
	u.LastQuestionID = fromNullInt64(lastQ)
	u.LastSentAt = fromNullTime(lastSent)
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}
