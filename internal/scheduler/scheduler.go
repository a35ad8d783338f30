// Package scheduler delivers the weekly questions. Each tick it computes
// the current (isoWeek, day, hour) slot, finds subscribed users whose
// schedule matches, claims the slot for each and only then dispatches the
// question. The claim is the exactly-once gate: a slot that was claimed is
// never claimed again, even if the send afterwards fails.
package scheduler

import (
	"context"
	"time"

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

const (
	sendAttempts = 3
	baseBackoff  = 2 * time.Second
)

// Scheduler periodically polls for due users and dispatches questions.
type Scheduler struct {
	repo      store.Repo
	log       *zap.Logger
	engine    *engine.Engine
	transport Transport
	locks     *userlock.Map
	metrics   *metrics.Metrics
	loc       *time.Location
	interval  time.Duration
	now       func() time.Time
}

// New creates a Scheduler. loc is the scheduling timezone; interval should
// divide an hour so every slot is observed.
func New(repo store.Repo, log *zap.Logger, eng *engine.Engine, transport Transport, locks *userlock.Map, m *metrics.Metrics, loc *time.Location, interval time.Duration) *Scheduler {
	return &Scheduler{
		repo:      repo,
		log:       log,
		engine:    eng,
		transport: transport,
		locks:     locks,
		metrics:   m,
		loc:       loc,
		interval:  interval,
		now:       time.Now,
	}
}

// Run starts the loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduling cycle. A slot the process slept through is
// permanently missed; questions are a recurring affordance, not a
// delivery-critical notification.
func (s *Scheduler) Tick(ctx context.Context) {
	slot := domain.CurrentSlot(s.now().In(s.loc))
	users, err := s.repo.FindDue(ctx, slot.Day, slot.Hour, slot.Key())
	if err != nil {
		s.log.Error("find due users failed", zap.Error(err))
		return
	}
	if len(users) == 0 {
		return
	}
	s.log.Info("dispatching slot",
		zap.String("slot", slot.Key()),
		zap.Int("users", len(users)),
	)

	for i := range users {
		// One user's failure never blocks the rest of the slot.
		s.dispatchOne(ctx, &users[i], slot)
	}
}

// dispatchOne claims the slot for a user and sends them a question. The
// per-user lock keeps this mutually exclusive with the inbound path.
func (s *Scheduler) dispatchOne(ctx context.Context, u *domain.User, slot domain.Slot) {
	log := s.log.With(zap.String("phone", u.PhoneNumber), zap.String("slot", slot.Key()))

	unlock := s.locks.Lock(u.PhoneNumber)
	defer unlock()

	// Re-read under the lock: an inbound event may have changed the user
	// between FindDue and now.
	fresh, err := s.repo.GetByPhone(ctx, u.PhoneNumber)
	if err != nil {
		log.Error("reload user failed", zap.Error(err))
		s.metrics.Dispatches.WithLabelValues("error").Inc()
		return
	}
	if fresh.State != domain.StateSubscribed {
		log.Info("user no longer subscribed, skipping", zap.String("state", fresh.State.String()))
		return
	}
	if fresh.PreferredDay == nil || *fresh.PreferredDay != slot.Day ||
		fresh.PreferredHour == nil || *fresh.PreferredHour != slot.Hour {
		// Schedule changed between FindDue and taking the lock; the slot
		// no longer matches the user and must not fire.
		log.Info("schedule changed since query, skipping")
		return
	}

	claimed, err := s.repo.ClaimSlot(ctx, fresh.ID, slot.Key(), s.now())
	if err != nil {
		log.Error("claim slot failed", zap.Error(err))
		s.metrics.Dispatches.WithLabelValues("error").Inc()
		return
	}
	if !claimed {
		s.metrics.Dispatches.WithLabelValues("claim_lost").Inc()
		return
	}
	fresh.LastSlotFired = slot.Key()

	res, err := s.engine.Dispatch(ctx, fresh)
	if err != nil {
		log.Error("dispatch transition failed", zap.Error(err))
		s.metrics.Dispatches.WithLabelValues("error").Inc()
		return
	}
	if err := s.repo.Upsert(ctx, fresh); err != nil {
		log.Error("persist user failed", zap.Error(err))
		s.metrics.Dispatches.WithLabelValues("error").Inc()
		return
	}

	for _, intent := range res.Intents {
		if err := s.sendWithRetry(ctx, intent); err != nil {
			// Claimed but not confirmed delivered. The slot is spent; the
			// failure is surfaced for an operator instead of re-claimed.
			log.Error("send failed after retries", zap.Error(err))
			s.metrics.Dispatches.WithLabelValues("send_failed").Inc()
			return
		}
	}
	s.metrics.Dispatches.WithLabelValues("sent").Inc()
	log.Info("question dispatched")
}

// sendWithRetry retries retryable transport failures with doubling backoff,
// all within the current tick.
func (s *Scheduler) sendWithRetry(ctx context.Context, intent domain.SendIntent) error {
	backoff := baseBackoff
	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		err = s.transport.Send(ctx, intent)
		if err == nil {
			return nil
		}
		if !whatsapp.IsRetryable(err) || attempt == sendAttempts {
			break
		}
		s.metrics.SendFailures.WithLabelValues("true").Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if !whatsapp.IsRetryable(err) {
		s.metrics.SendFailures.WithLabelValues("false").Inc()
	}
	return err
}
