// Package questions supplies multiple-choice medical questions to the
// conversation engine. The provider is an injected capability so the engine
// never reaches for a process-wide question cache.
package questions

import (
	"context"
	"errors"
)

var (
	// ErrExhausted means no question could be offered to the user.
	ErrExhausted = errors.New("no questions available")
	// ErrNotFound means the referenced question does not exist.
	ErrNotFound = errors.New("question not found")
)

// Option is one answer choice. Position is the stable 1-based identifier
// embedded in list reply ids; display order may differ.
type Option struct {
	Position int
	Text     string
	Correct  bool
}

// Question is a prompt plus its answer options.
type Question struct {
	ID      int64
	Text    string
	Area    string
	Options []Option
}

// CorrectOption returns the first correct option.
func (q *Question) CorrectOption() (Option, bool) {
	for _, o := range q.Options {
		if o.Correct {
			return o, true
		}
	}
	return Option{}, false
}

// Provider picks questions for users and grades their answers.
type Provider interface {
	// Next returns a question for the user, preferring questions the user
	// has never been sent and never repeating excludeID when another
	// question exists. Returns ErrExhausted when the bank is empty.
	Next(ctx context.Context, userID int64, excludeID int64) (*Question, error)

	// Get loads a question by id, options in stable position order.
	Get(ctx context.Context, id int64) (*Question, error)
}
