// Package quota tracks how many free analyses a device has left today and
// when an ad should be shown.
package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	FreeDaily = 3
	// every InterstitialEvery-th analysis of the day is followed by an interstitial
	InterstitialEvery = 2
)

var ErrExhausted = errors.New("daily analysis limit reached")

// Status is a snapshot for the UI.
type Status struct {
	Count         int
	Max           int
	Interstitial  bool
	RewardedOffer bool
}

func (s Status) CanAnalyze() bool { return s.Count < s.Max }

func (s Status) Remaining() int {
	if s.Count >= s.Max {
		return 0
	}
	return s.Max - s.Count
}

// Manager is the daily quota bookkeeping. Counts reset when the stored date
// differs from the clock's current date in loc.
type Manager struct {
	mu    sync.Mutex
	store Store
	clock clockwork.Clock
	loc   *time.Location

	interstitial bool
	rewarded     bool
}

type Option func(*Manager)

func WithClock(c clockwork.Clock) Option { return func(m *Manager) { m.clock = c } }

func WithLocation(loc *time.Location) Option { return func(m *Manager) { m.loc = loc } }

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, clock: clockwork.NewRealClock(), loc: time.Local}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) today() string {
	return m.clock.Now().In(m.loc).Format(time.DateOnly)
}

// load returns today's record, resetting a stale one. Caller holds mu.
func (m *Manager) load(ctx context.Context) (Record, error) {
	r, err := m.store.Load(ctx)
	if err != nil {
		return Record{}, err
	}
	if today := m.today(); r.Date != today {
		r = Record{Date: today, Count: 0, Max: FreeDaily}
		m.interstitial, m.rewarded = false, false
		if err := m.store.Save(ctx, r); err != nil {
			return Record{}, err
		}
	}
	if r.Max < FreeDaily {
		r.Max = FreeDaily
	}
	return r, nil
}

func (m *Manager) status(r Record) Status {
	return Status{Count: r.Count, Max: r.Max, Interstitial: m.interstitial, RewardedOffer: m.rewarded}
}

func (m *Manager) Status(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.load(ctx)
	if err != nil {
		return Status{}, err
	}
	return m.status(r), nil
}

// Allow returns ErrExhausted, and raises the rewarded-ad offer, when no
// analyses are left today.
func (m *Manager) Allow(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.load(ctx)
	if err != nil {
		return err
	}
	if r.Count >= r.Max {
		m.rewarded = true
		return ErrExhausted
	}
	return nil
}

// Record counts one finished analysis.
func (m *Manager) Record(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.load(ctx)
	if err != nil {
		return Status{}, err
	}
	r.Count++
	if err := m.store.Save(ctx, r); err != nil {
		return Status{}, err
	}
	if r.Count > 0 && r.Count%InterstitialEvery == 0 {
		m.interstitial = true
	}
	return m.status(r), nil
}

// EarnReward grants one extra analysis for today.
func (m *Manager) EarnReward(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.load(ctx)
	if err != nil {
		return Status{}, err
	}
	r.Max++
	if err := m.store.Save(ctx, r); err != nil {
		return Status{}, err
	}
	m.rewarded = false
	return m.status(r), nil
}

func (m *Manager) DismissInterstitial() {
	m.mu.Lock()
	m.interstitial = false
	m.mu.Unlock()
}

func (m *Manager) DismissReward() {
	m.mu.Lock()
	m.rewarded = false
	m.mu.Unlock()
}
