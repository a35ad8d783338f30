// Package router drives the inbound path: it classifies raw webhook
// messages, runs the conversation engine under a per-user lock, persists
// the new state and executes the resulting sends.
package router

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benlos-peru/banquea-bot-whatsapp/internal/domain"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/engine"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/metrics"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/store"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/userlock"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/whatsapp"
)

// Transport executes one outbound send.
type Transport interface {
	Send(ctx context.Context, intent domain.SendIntent) error
}

// Router handles inbound messages end to end.
type Router struct {
	log       *zap.Logger
	repo      store.Repo
	engine    *engine.Engine
	transport Transport
	locks     *userlock.Map
	dedupe    *dedupe
	metrics   *metrics.Metrics
}

// New builds a router. locks must be the same Map the scheduler uses.
func New(log *zap.Logger, repo store.Repo, eng *engine.Engine, transport Transport, locks *userlock.Map, m *metrics.Metrics) *Router {
	return &Router{
		log:       log,
		repo:      repo,
		engine:    eng,
		transport: transport,
		locks:     locks,
		dedupe:    newDedupe(24 * time.Hour),
		metrics:   m,
	}
}

// HandleInbound processes one boundary message. Errors are logged, never
// returned to the webhook: the event is always acknowledged so the platform
// does not retry it forever.
func (r *Router) HandleInbound(ctx context.Context, msg whatsapp.InboundMessage) {
	log := r.log.With(
		zap.String("trace_id", uuid.NewString()),
		zap.String("from", msg.From),
		zap.String("message_id", msg.MessageID),
	)

	start := time.Now()
	unlock := r.locks.Lock(msg.From)
	defer unlock()

	// Checked under the lock: a concurrent redelivery for the same user
	// waits here and then observes the first delivery's mark.
	if r.dedupe.Seen(msg.MessageID) {
		log.Info("duplicate webhook delivery, skipping")
		r.metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
		return
	}

	u, err := r.getOrCreate(ctx, msg.From)
	if err != nil {
		log.Error("load user failed", zap.Error(err))
		r.metrics.WebhookEvents.WithLabelValues("error").Inc()
		return
	}

	ev := Classify(msg)
	res, err := r.engine.Handle(ctx, u, ev)
	if err != nil {
		log.Error("transition failed", zap.Error(err), zap.String("state", u.State.String()))
		r.metrics.WebhookEvents.WithLabelValues("error").Inc()
		return
	}

	if err := r.persist(ctx, u); err != nil {
		log.Error("persist user failed", zap.Error(err))
		r.metrics.WebhookEvents.WithLabelValues("error").Inc()
		return
	}
	// Marked only now: a delivery that failed before this point stays
	// eligible for the platform's redelivery.
	r.dedupe.Mark(msg.MessageID)
	if res.Answer != nil {
		rec := store.AnswerRecord{
			UserID:     u.ID,
			QuestionID: res.Answer.QuestionID,
			Option:     res.Answer.Option,
			Correct:    res.Answer.Correct,
			AnsweredAt: time.Now().UTC(),
		}
		if err := r.repo.RecordAnswer(ctx, rec); err != nil {
			log.Error("record answer failed", zap.Error(err))
		}
	}

	// State is committed; a failed confirmation message does not roll back
	// the transition.
	for _, intent := range res.Intents {
		if err := r.transport.Send(ctx, intent); err != nil {
			retryable := "false"
			if whatsapp.IsRetryable(err) {
				retryable = "true"
			}
			r.metrics.SendFailures.WithLabelValues(retryable).Inc()
			log.Error("send failed",
				zap.Error(err),
				zap.Int("intent_kind", int(intent.Kind)),
			)
		}
	}

	r.metrics.WebhookEvents.WithLabelValues("handled").Inc()
	r.metrics.Transitions.WithLabelValues(u.State.String()).Inc()
	r.metrics.TransitionSeconds.Observe(time.Since(start).Seconds())
	log.Info("inbound handled",
		zap.String("state", u.State.String()),
		zap.Int("intents", len(res.Intents)),
	)
}

// getOrCreate loads the user row, creating an UNCONTACTED record on first
// contact.
func (r *Router) getOrCreate(ctx context.Context, phone string) (*domain.User, error) {
	u, err := r.repo.GetByPhone(ctx, phone)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	u = &domain.User{
		PhoneNumber: phone,
		State:       domain.StateUncontacted,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.repo.Upsert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// persist writes the user, retrying once on a transient conflict before
// surfacing the error.
func (r *Router) persist(ctx context.Context, u *domain.User) error {
	if err := r.repo.Upsert(ctx, u); err != nil {
		r.log.Warn("upsert conflict, retrying once", zap.Error(err), zap.String("phone", u.PhoneNumber))
		return r.repo.Upsert(ctx, u)
	}
	return nil
}
