package store

import (
	"context"
	"errors"
	"time"

	"github.com/benlos-peru/banquea-bot-whatsapp/internal/domain"
)

// ErrNotFound is returned when a user lookup matches no row.
var ErrNotFound = errors.New("user not found")

// AnswerRecord is one graded answer persisted for auditing.
type AnswerRecord struct {
	UserID     int64
	QuestionID int64
	Option     int
	Correct    bool
	AnsweredAt time.Time
}

// Stats is the admin-facing counts snapshot.
type Stats struct {
	Users     int `json:"users"`
	Questions int `json:"questions"`
	Responses int `json:"responses"`
}

// Repo defines storage operations for users, scheduling and answer audit.
// All user mutations happen under the caller's per-user lock; the repo
// itself only guarantees that each statement is atomic.
type Repo interface {
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Upsert(ctx context.Context, u *domain.User) error

	// FindDue returns subscribed users whose preferred (day, hour) matches
	// and who have not yet fired for slotKey.
	FindDue(ctx context.Context, day, hour int, slotKey string) ([]domain.User, error)

	// ClaimSlot atomically marks slotKey as fired for the user and reports
	// whether this call won the claim. A second call for the same slot
	// returns false.
	ClaimSlot(ctx context.Context, userID int64, slotKey string, at time.Time) (bool, error)

	RecordAnswer(ctx context.Context, rec AnswerRecord) error
	CountStats(ctx context.Context) (Stats, error)
	Close() error
}
