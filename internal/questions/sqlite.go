package questions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
)

// SQLiteProvider implements Provider over the bot's SQLite database. It
// shares the store's *sql.DB handle; the questions and question_options
// tables are created by the store migrations.
type SQLiteProvider struct {
	db *sql.DB
}

// NewSQLiteProvider wraps an open database handle.
func NewSQLiteProvider(db *sql.DB) *SQLiteProvider {
	return &SQLiteProvider{db: db}
}

// Next picks a random question the user has not been sent yet, falling back
// to the whole bank (minus excludeID) once the user has seen everything.
func (p *SQLiteProvider) Next(ctx context.Context, userID int64, excludeID int64) (*Question, error) {
	id, err := p.pickUnseen(ctx, userID, excludeID)
	if errors.Is(err, sql.ErrNoRows) {
		id, err = p.pickAny(ctx, excludeID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExhausted
	}
	if err != nil {
		return nil, fmt.Errorf("pick question: %w", err)
	}
	return p.Get(ctx, id)
}

func (p *SQLiteProvider) pickUnseen(ctx context.Context, userID, excludeID int64) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `
		SELECT id FROM questions
		WHERE id != ?
		  AND id NOT IN (SELECT question_id FROM user_responses WHERE user_id = ?)
		ORDER BY RANDOM()
		LIMIT 1`,
		excludeID, userID,
	).Scan(&id)
	return id, err
}

func (p *SQLiteProvider) pickAny(ctx context.Context, excludeID int64) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `
		SELECT id FROM questions
		WHERE id != ?
		ORDER BY RANDOM()
		LIMIT 1`,
		excludeID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) && excludeID != 0 {
		// Bank of one: repeating beats silence.
		err = p.db.QueryRowContext(ctx,
			`SELECT id FROM questions ORDER BY RANDOM() LIMIT 1`).Scan(&id)
	}
	return id, err
}

// Get loads one question with its options ordered by position.
func (p *SQLiteProvider) Get(ctx context.Context, id int64) (*Question, error) {
	q := &Question{ID: id}
	err := p.db.QueryRowContext(ctx,
		`SELECT text, area FROM questions WHERE id = ?`, id,
	).Scan(&q.Text, &q.Area)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load question %d: %w", id, err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT position, text, is_correct
		FROM question_options
		WHERE question_id = ?
		ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("load options for %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o       Option
			correct int
		)
		if err := rows.Scan(&o.Position, &o.Text, &correct); err != nil {
			return nil, err
		}
		o.Correct = correct != 0
		q.Options = append(q.Options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(q.Options) == 0 {
		return nil, fmt.Errorf("%w: question %d has no options", ErrNotFound, id)
	}
	return q, nil
}

// Shuffled returns the option list in a random display order. Positions are
// untouched so reply ids stay stable.
func Shuffled(opts []Option) []Option {
	out := make([]Option, len(opts))
	copy(out, opts)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
