package domain

import "time"

// State is the persisted position of a user inside the conversation flow.
type State int

const (
	StateUncontacted State = iota
	StateAwaitingConfirmation
	StateAwaitingDay
	StateAwaitingHour
	StateSubscribed
	StateAwaitingQuestionResponse
)

func (s State) String() string {
	switch s {
	case StateUncontacted:
		return "UNCONTACTED"
	case StateAwaitingConfirmation:
		return "AWAITING_CONFIRMATION"
	case StateAwaitingDay:
		return "AWAITING_DAY"
	case StateAwaitingHour:
		return "AWAITING_HOUR"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateAwaitingQuestionResponse:
		return "AWAITING_QUESTION_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is one of the enumerated conversation states.
func (s State) Valid() bool {
	return s >= StateUncontacted && s <= StateAwaitingQuestionResponse
}

// User represents one WhatsApp subscriber and their question schedule.
//
// PreferredDay (0=Lunes..6=Domingo) and PreferredHour (0..23) are both set
// exactly when the user reaches StateSubscribed. LastSlotFired records the
// last schedule slot a question was dispatched for, so the same slot is
// never fired twice.
type User struct {
	ID             int64
	PhoneNumber    string
	State          State
	PreferredDay   *int
	PreferredHour  *int
	EverSubscribed bool
	LastQuestionID *int64
	LastSentAt     *time.Time
	LastSlotFired  string // Slot.Key() of the last dispatched slot, "" if none
	AnsweredCount  int
	CorrectCount   int
	CreatedAt      time.Time
}

// Subscribed reports whether the user has a complete schedule.
func (u *User) Subscribed() bool {
	return u.State == StateSubscribed && u.PreferredDay != nil && u.PreferredHour != nil
}
