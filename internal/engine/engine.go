// Package engine holds the conversation state machine. Given a user's
// persisted state and one typed inbound event it computes the next state and
// the outbound messages to send. The engine never talks to the transport or
// the store itself; callers persist the mutated user and execute the
// returned intents.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benlos-peru/banquea-bot-whatsapp/internal/domain"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/questions"
)

// GradedAnswer reports an accepted, graded answer so the caller can persist
// the audit record.
type GradedAnswer struct {
	QuestionID int64
	Option     int
	Correct    bool
}

// Result is the outcome of one transition.
type Result struct {
	Intents []domain.SendIntent
	Answer  *GradedAnswer
}

// Engine computes conversation transitions.
type Engine struct {
	questions questions.Provider
	now       func() time.Time
}

// New builds an engine around a question provider.
func New(provider questions.Provider) *Engine {
	return &Engine{questions: provider, now: time.Now}
}

// Handle applies one inbound event to the user's current state, mutating u
// in place and returning the messages to send. Unrecognized or out-of-flow
// events leave the state unchanged and produce a fallback reply.
func (e *Engine) Handle(ctx context.Context, u *domain.User, ev domain.Event) (Result, error) {
	switch u.State {
	case domain.StateUncontacted:
		// Any inbound contact from an uncontacted user starts onboarding.
		return e.Contact(ctx, u)

	case domain.StateAwaitingConfirmation:
		if ev.Kind == domain.EventButtonReply {
			switch ev.Button {
			case domain.ButtonYes:
				if u.EverSubscribed {
					// Returning user keeps their schedule; go straight to a question.
					return e.Dispatch(ctx, u)
				}
				u.State = domain.StateAwaitingDay
				return Result{Intents: []domain.SendIntent{dayListIntent(u.PhoneNumber)}}, nil
			case domain.ButtonNo:
				u.State = domain.StateUncontacted
				return Result{Intents: []domain.SendIntent{domain.Text(u.PhoneNumber, textGoodbye)}}, nil
			}
		}
		return e.fallback(u), nil

	case domain.StateAwaitingDay:
		if ev.Kind == domain.EventListReply && ev.Day >= 0 {
			day := ev.Day
			u.PreferredDay = &day
			u.State = domain.StateAwaitingHour
			return Result{Intents: []domain.SendIntent{domain.Text(u.PhoneNumber, textHourPrompt)}}, nil
		}
		return e.fallback(u), nil

	case domain.StateAwaitingHour:
		if ev.Kind == domain.EventFreeText {
			if ev.Hour < 0 {
				// Out-of-range or non-numeric: stay put and re-prompt.
				return Result{Intents: []domain.SendIntent{domain.Text(u.PhoneNumber, textHourReprompt)}}, nil
			}
			return e.subscribe(ctx, u, ev.Hour)
		}
		return e.fallback(u), nil

	case domain.StateSubscribed:
		if ev.Kind == domain.EventCommand && ev.Command == domain.CommandForceNewQuestion {
			return e.Dispatch(ctx, u)
		}
		return e.fallback(u), nil

	case domain.StateAwaitingQuestionResponse:
		if ev.Kind == domain.EventCommand && ev.Command == domain.CommandForceNewQuestion {
			// Pending unanswered question is discarded.
			return e.Dispatch(ctx, u)
		}
		if ev.Kind == domain.EventListReply && ev.Answer != nil {
			return e.grade(ctx, u, *ev.Answer)
		}
		return e.fallback(u), nil

	default:
		return Result{}, fmt.Errorf("user %s in invalid state %d", u.PhoneNumber, u.State)
	}
}

// Contact starts (or restarts) onboarding. The welcome template differs for
// users that completed onboarding before, so a user who declined once never
// sees the first-time copy twice.
func (e *Engine) Contact(_ context.Context, u *domain.User) (Result, error) {
	tpl := templateWelcome
	if u.EverSubscribed {
		tpl = templateReturning
	}
	u.State = domain.StateAwaitingConfirmation
	return Result{Intents: []domain.SendIntent{
		domain.Template(u.PhoneNumber, tpl),
		confirmButtonsIntent(u.PhoneNumber),
	}}, nil
}

// subscribe completes onboarding: records the hour, confirms the schedule
// and immediately dispatches the first question.
func (e *Engine) subscribe(ctx context.Context, u *domain.User, hour int) (Result, error) {
	h := hour
	u.PreferredHour = &h
	u.State = domain.StateSubscribed
	u.EverSubscribed = true

	dayName := "día programado"
	if u.PreferredDay != nil {
		if n, err := domain.DayName(*u.PreferredDay); err == nil {
			dayName = n
		}
	}
	confirm := domain.Text(u.PhoneNumber, scheduleConfirmation(dayName, hour))

	res, err := e.Dispatch(ctx, u)
	if err != nil {
		return Result{}, err
	}
	res.Intents = append([]domain.SendIntent{confirm}, res.Intents...)
	return res, nil
}

// Dispatch sends a new question: picks one, records it as the user's pending
// question and moves to AWAITING_QUESTION_RESPONSE. A drained provider is
// not an error for the user; they stay subscribed and get an apology.
func (e *Engine) Dispatch(ctx context.Context, u *domain.User) (Result, error) {
	var exclude int64
	if u.LastQuestionID != nil {
		exclude = *u.LastQuestionID
	}
	q, err := e.questions.Next(ctx, u.ID, exclude)
	if errors.Is(err, questions.ErrExhausted) {
		u.State = domain.StateSubscribed
		return Result{Intents: []domain.SendIntent{domain.Text(u.PhoneNumber, textNoQuestions)}}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("next question for %s: %w", u.PhoneNumber, err)
	}

	now := e.now().UTC()
	u.LastQuestionID = &q.ID
	u.LastSentAt = &now
	u.State = domain.StateAwaitingQuestionResponse
	return Result{Intents: []domain.SendIntent{questionListIntent(u.PhoneNumber, q)}}, nil
}

// grade scores an answer against the user's pending question. Answers to a
// question other than the pending one are stale: acknowledged, discarded,
// and never counted.
func (e *Engine) grade(ctx context.Context, u *domain.User, ans domain.Answer) (Result, error) {
	if u.LastQuestionID == nil || *u.LastQuestionID != ans.QuestionID {
		return Result{Intents: []domain.SendIntent{domain.Text(u.PhoneNumber, textStaleAnswer)}}, nil
	}

	q, err := e.questions.Get(ctx, ans.QuestionID)
	if err != nil {
		return Result{}, fmt.Errorf("load question %d: %w", ans.QuestionID, err)
	}
	var selected *questions.Option
	for i := range q.Options {
		if q.Options[i].Position == ans.Option {
			selected = &q.Options[i]
			break
		}
	}
	if selected == nil {
		return e.fallback(u), nil
	}

	correct, _ := q.CorrectOption()
	u.AnsweredCount++
	body := feedbackIncorrect(correct.Text)
	if selected.Correct {
		u.CorrectCount++
		body = feedbackCorrect(correct.Text)
	}
	u.State = domain.StateSubscribed

	return Result{
		Intents: []domain.SendIntent{domain.Text(u.PhoneNumber, body)},
		Answer: &GradedAnswer{
			QuestionID: ans.QuestionID,
			Option:     ans.Option,
			Correct:    selected.Correct,
		},
	}, nil
}

func (e *Engine) fallback(u *domain.User) Result {
	return Result{Intents: []domain.SendIntent{domain.Text(u.PhoneNumber, textFallback)}}
}

// questionListIntent renders a question as an interactive list. Display
// order is shuffled and rows are titled by the ordinal the user sees, so
// the title carries no information about which option is correct. Row ids
// carry the stable option position so grading does not depend on the order
// shown.
func questionListIntent(to string, q *questions.Question) domain.SendIntent {
	shuffled := questions.Shuffled(q.Options)
	items := make([]domain.ListItem, 0, len(shuffled))
	for i, o := range shuffled {
		items = append(items, domain.ListItem{
			ID:          fmt.Sprintf("q_%d_opt_%d", q.ID, o.Position),
			Title:       fmt.Sprintf("Opción %d", i+1),
			Description: o.Text,
		})
	}
	return domain.SendIntent{
		Kind:       domain.IntentList,
		To:         to,
		Header:     questionHeader,
		Body:       q.Text,
		Footer:     questionFooter,
		ButtonText: questionButtonText,
		Items:      items,
	}
}
