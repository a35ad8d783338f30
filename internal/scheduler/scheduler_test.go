package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benlos-peru/banquea-bot-whatsapp/internal/domain"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/engine"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/metrics"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/questions"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/store"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/userlock"
	"github.com/benlos-peru/banquea-bot-whatsapp/internal/whatsapp"
)

// memRepo is an in-memory store.Repo for scheduler tests. onGet, when set,
// mutates the copy returned by GetByPhone, simulating a concurrent change
// landing between FindDue and the per-user lock.
type memRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	onGet func(*domain.User)
}

func newMemRepo(users ...*domain.User) *memRepo {
	m := &memRepo{users: make(map[string]*domain.User)}
	for i, u := range users {
		u.ID = int64(i + 1)
		m.users[u.PhoneNumber] = u
	}
	return m
}

func (m *memRepo) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[phone]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	if m.onGet != nil {
		m.onGet(&cp)
	}
	return &cp, nil
}

func (m *memRepo) Upsert(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.PhoneNumber] = &cp
	return nil
}

func (m *memRepo) FindDue(_ context.Context, day, hour int, slotKey string) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []domain.User
	for _, u := range m.users {
		if u.State == domain.StateSubscribed &&
			u.PreferredDay != nil && *u.PreferredDay == day &&
			u.PreferredHour != nil && *u.PreferredHour == hour &&
			u.LastSlotFired != slotKey {
			due = append(due, *u)
		}
	}
	return due, nil
}

func (m *memRepo) ClaimSlot(_ context.Context, userID int64, slotKey string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			if u.LastSlotFired == slotKey {
				return false, nil
			}
			u.LastSlotFired = slotKey
			ts := at.UTC()
			u.LastSentAt = &ts
			return true, nil
		}
	}
	return false, store.ErrNotFound
}

func (m *memRepo) RecordAnswer(context.Context, store.AnswerRecord) error { return nil }
func (m *memRepo) CountStats(context.Context) (store.Stats, error)       { return store.Stats{}, nil }
func (m *memRepo) Close() error                                          { return nil }

// recordingTransport counts sends and can fail.
type recordingTransport struct {
	mu   sync.Mutex
	sent []domain.SendIntent
	fail error
}

func (t *recordingTransport) Send(_ context.Context, in domain.SendIntent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail != nil {
		return t.fail
	}
	t.sent = append(t.sent, in)
	return nil
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

type staticProvider struct{ q *questions.Question }

func (p staticProvider) Next(context.Context, int64, int64) (*questions.Question, error) {
	return p.q, nil
}
func (p staticProvider) Get(context.Context, int64) (*questions.Question, error) {
	return p.q, nil
}

func testQuestion() *questions.Question {
	return &questions.Question{
		ID:   7,
		Text: "¿Agente más frecuente de NAC?",
		Options: []questions.Option{
			{Position: 1, Text: "S. pneumoniae", Correct: true},
			{Position: 2, Text: "M. pneumoniae"},
		},
	}
}

func subscribedUser(phone string, day, hour int) *domain.User {
	return &domain.User{
		PhoneNumber:    phone,
		State:          domain.StateSubscribed,
		PreferredDay:   &day,
		PreferredHour:  &hour,
		EverSubscribed: true,
	}
}

func newTestScheduler(t *testing.T, repo store.Repo, transport Transport, now time.Time) *Scheduler {
	t.Helper()
	eng := engine.New(staticProvider{q: testQuestion()})
	m := metrics.New(prometheus.NewRegistry())
	s := New(repo, zap.NewNop(), eng, transport, userlock.New(), m, time.UTC, time.Minute)
	s.now = func() time.Time { return now }
	return s
}

func TestTickDispatchesExactlyOncePerSlot(t *testing.T) {
	// Wednesday 14:00 UTC.
	now := time.Date(2026, time.August, 26, 14, 5, 0, 0, time.UTC)
	repo := newMemRepo(subscribedUser("51999999999", 2, 14))
	transport := &recordingTransport{}
	s := newTestScheduler(t, repo, transport, now)

	s.Tick(context.Background())
	assert.Equal(t, 1, transport.count())

	// Further ticks observing the same slot do nothing.
	s.Tick(context.Background())
	s.Tick(context.Background())
	assert.Equal(t, 1, transport.count())

	u, err := repo.GetByPhone(context.Background(), "51999999999")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAwaitingQuestionResponse, u.State)
	require.NotNil(t, u.LastQuestionID)
	assert.Equal(t, int64(7), *u.LastQuestionID)
	assert.Equal(t, domain.CurrentSlot(now).Key(), u.LastSlotFired)
}

func TestTickSkipsNonMatchingUsers(t *testing.T) {
	now := time.Date(2026, time.August, 26, 14, 5, 0, 0, time.UTC) // Wednesday
	repo := newMemRepo(
		subscribedUser("51111111111", 3, 14), // wrong day
		subscribedUser("51222222222", 2, 9),  // wrong hour
	)
	transport := &recordingTransport{}
	s := newTestScheduler(t, repo, transport, now)

	s.Tick(context.Background())
	assert.Equal(t, 0, transport.count())
}

func TestTickSkipsUnsubscribedUser(t *testing.T) {
	now := time.Date(2026, time.August, 26, 14, 5, 0, 0, time.UTC)
	u := subscribedUser("51999999999", 2, 14)
	u.State = domain.StateAwaitingQuestionResponse
	repo := newMemRepo(u)
	transport := &recordingTransport{}
	s := newTestScheduler(t, repo, transport, now)

	s.Tick(context.Background())
	assert.Equal(t, 0, transport.count())
}

func TestScheduleChangedBeforeLockSkipsWithoutClaim(t *testing.T) {
	now := time.Date(2026, time.August, 26, 14, 5, 0, 0, time.UTC)
	repo := newMemRepo(subscribedUser("51999999999", 2, 14))
	transport := &recordingTransport{}
	s := newTestScheduler(t, repo, transport, now)

	// The user moves their hour right after FindDue selected them.
	repo.onGet = func(u *domain.User) {
		h := 9
		u.PreferredHour = &h
	}
	s.Tick(context.Background())
	assert.Equal(t, 0, transport.count())

	// Nothing was claimed, so the slot still fires once the change turns
	// out to be transient.
	repo.onGet = nil
	s.Tick(context.Background())
	assert.Equal(t, 1, transport.count())

	u, err := repo.GetByPhone(context.Background(), "51999999999")
	require.NoError(t, err)
	assert.Equal(t, domain.CurrentSlot(now).Key(), u.LastSlotFired)
}

func TestFailedSendDoesNotReclaimSlot(t *testing.T) {
	now := time.Date(2026, time.August, 26, 14, 5, 0, 0, time.UTC)
	repo := newMemRepo(subscribedUser("51999999999", 2, 14))
	transport := &recordingTransport{
		fail: &whatsapp.SendError{StatusCode: 400, Retryable: false},
	}
	s := newTestScheduler(t, repo, transport, now)

	s.Tick(context.Background())
	assert.Equal(t, 0, transport.count())

	// Slot stays claimed: the next tick must not flood the user.
	transport.mu.Lock()
	transport.fail = nil
	transport.mu.Unlock()
	s.Tick(context.Background())
	assert.Equal(t, 0, transport.count())
}

func TestNextSlotFiresAgain(t *testing.T) {
	now := time.Date(2026, time.August, 26, 14, 5, 0, 0, time.UTC)
	repo := newMemRepo(subscribedUser("51999999999", 2, 14))
	transport := &recordingTransport{}
	s := newTestScheduler(t, repo, transport, now)

	s.Tick(context.Background())
	require.Equal(t, 1, transport.count())

	// The user answers, returning to SUBSCRIBED before the next week.
	u, err := repo.GetByPhone(context.Background(), "51999999999")
	require.NoError(t, err)
	u.State = domain.StateSubscribed
	require.NoError(t, repo.Upsert(context.Background(), u))

	// Same (day, hour) one week later is a different slot.
	s.now = func() time.Time { return now.AddDate(0, 0, 7) }
	s.Tick(context.Background())
	assert.Equal(t, 2, transport.count())
}
