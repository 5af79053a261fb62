package navigation

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/decision"
	"github.com/GriffinCanCode/PhishGuard/internal/shared/clock"
	"github.com/GriffinCanCode/PhishGuard/internal/shared/urls"
)

// DefaultSkipWindow is how long a user skip suppresses forced redirects.
const DefaultSkipWindow = 15 * time.Second

// State of a tab's navigation session.
type State string

const (
	StateIdle             State = "IDLE"
	StateChecking         State = "CHECKING"
	StateResolvedSafe     State = "RESOLVED_SAFE"
	StateResolvedRedirect State = "RESOLVED_PHISHING_REDIRECT"
	StateResolvedDeferred State = "RESOLVED_PHISHING_DEFERRED"
)

// Action tells the caller what to do with a resolved check.
type Action string

const (
	// ActionDiscard: the check belongs to a superseded navigation.
	ActionDiscard Action = "discard"
	// ActionPass: let the page through.
	ActionPass Action = "pass"
	// ActionRedirect: send the tab to the warning page.
	ActionRedirect Action = "redirect"
	// ActionNotify: show a passive warning instead of redirecting.
	ActionNotify Action = "notify"
)

// Session is a snapshot of one tab's state.
type Session struct {
	TabID      string             `json:"tabId"`
	URL        string             `json:"url"`
	State      State              `json:"state"`
	Generation uint64             `json:"generation"`
	SkipUntil  time.Time          `json:"skipUntil"`
	Decision   *decision.Decision `json:"decision,omitempty"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// Checking reports whether a check is in flight for the session.
func (s Session) Checking() bool {
	return s.State == StateChecking
}

// Ticket identifies the navigation a check was started for.
type Ticket struct {
	TabID      string
	URL        string
	Generation uint64
}

// Outcome is the result of resolving a ticket.
type Outcome struct {
	Action  Action
	Session Session
}

// Tracker holds the navigation session of every tab.
type Tracker struct {
	window time.Duration
	clock  clock.Clock
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a tracker. A non-positive window uses DefaultSkipWindow.
func New(window time.Duration, clk clock.Clock, logger *zap.Logger) *Tracker {
	if window <= 0 {
		window = DefaultSkipWindow
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		window:   window,
		clock:    clk,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Window returns the skip window.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// session returns the tab's session, creating it; t.mu must be held.
func (t *Tracker) session(tabID string) *Session {
	s, ok := t.sessions[tabID]
	if !ok {
		s = &Session{TabID: tabID, State: StateIdle}
		t.sessions[tabID] = s
	}
	return s
}

// Begin starts a check for url, superseding whatever the tab was doing.
// Results for older tickets of the tab are discarded by Resolve.
func (t *Tracker) Begin(tabID, url string) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session(tabID)
	s.Generation++
	s.URL = url
	s.State = StateChecking
	s.Decision = nil
	s.UpdatedAt = t.clock.Now()

	return Ticket{TabID: tabID, URL: url, Generation: s.Generation}
}

// Pass records a navigation that needed no check. It supersedes any
// outstanding check of the tab.
func (t *Tracker) Pass(tabID, url string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session(tabID)
	s.Generation++
	s.URL = url
	s.State = StateIdle
	s.Decision = nil
	s.UpdatedAt = t.clock.Now()
}

// Resolve applies the decision of a finished check.
func (t *Tracker) Resolve(ticket Ticket, d decision.Decision) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[ticket.TabID]
	if !ok || s.Generation != ticket.Generation || s.URL != ticket.URL || s.State != StateChecking {
		t.logger.Debug("Discarding stale navigation result",
			zap.String("tab_id", ticket.TabID),
			zap.String("url", ticket.URL),
		)
		if ok {
			return Outcome{Action: ActionDiscard, Session: *s}
		}
		return Outcome{Action: ActionDiscard}
	}

	now := t.clock.Now()
	s.Decision = &d
	s.UpdatedAt = now

	var action Action
	switch {
	case d.Outcome != decision.Phishing:
		s.State = StateResolvedSafe
		action = ActionPass
	case now.Before(s.SkipUntil):
		s.State = StateResolvedDeferred
		action = ActionNotify
	default:
		s.State = StateResolvedRedirect
		action = ActionRedirect
	}

	return Outcome{Action: action, Session: *s}
}

// Skip opens the tab's skip window and returns its deadline.
func (t *Tracker) Skip(tabID string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	s := t.session(tabID)
	s.SkipUntil = now.Add(t.window)
	s.UpdatedAt = now

	t.logger.Info("Navigation skip window opened",
		zap.String("tab_id", tabID),
		zap.Time("skip_until", s.SkipUntil),
	)
	return s.SkipUntil
}

// Skipping reports whether the tab is inside its skip window.
func (t *Tracker) Skipping(tabID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[tabID]
	return ok && t.clock.Now().Before(s.SkipUntil)
}

// Get returns a snapshot of the tab's session.
func (t *Tracker) Get(tabID string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[tabID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Forget drops the tab's session.
func (t *Tracker) Forget(tabID string) {
	t.mu.Lock()
	delete(t.sessions, tabID)
	t.mu.Unlock()
}

// Prune drops sessions idle for longer than maxAge that have no check in
// flight and no open skip window. It returns the number removed.
func (t *Tracker) Prune(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	removed := 0
	for id, s := range t.sessions {
		if s.Checking() || now.Before(s.SkipUntil) || now.Sub(s.UpdatedAt) < maxAge {
			continue
		}
		delete(t.sessions, id)
		removed++
	}
	return removed
}

// Len returns the number of tracked tabs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// WarningURL builds the redirect target for a blocked page.
func WarningURL(base, target string) string {
	return urls.WithTarget(base, target)
}
