package navigation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/decision"
	"github.com/GriffinCanCode/PhishGuard/internal/shared/clock"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func score(v float64) *float64 { return &v }

func phishing(url string) decision.Decision {
	return decision.New(url, decision.Phishing, score(0.97), epoch)
}

func TestResolveTransitions(t *testing.T) {
	tests := []struct {
		name    string
		outcome decision.Outcome
		action  Action
		state   State
	}{
		{"safe", decision.Safe, ActionPass, StateResolvedSafe},
		{"disabled", decision.Disabled, ActionPass, StateResolvedSafe},
		{"error", decision.Error, ActionPass, StateResolvedSafe},
		{"phishing", decision.Phishing, ActionRedirect, StateResolvedRedirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(0, clock.NewFake(epoch), nil)
			ticket := tr.Begin("1", "https://x.test/")

			s, ok := tr.Get("1")
			require.True(t, ok)
			assert.Equal(t, StateChecking, s.State)

			out := tr.Resolve(ticket, decision.New("https://x.test/", tt.outcome, nil, epoch))
			assert.Equal(t, tt.action, out.Action)
			assert.Equal(t, tt.state, out.Session.State)
			require.NotNil(t, out.Session.Decision)
			assert.Equal(t, tt.outcome, out.Session.Decision.Outcome)
		})
	}
}

func TestSkipWindowDefersRedirect(t *testing.T) {
	clk := clock.NewFake(epoch)
	tr := New(15*time.Second, clk, nil)
	assert.Equal(t, 15*time.Second, tr.Window())

	deadline := tr.Skip("7")
	assert.Equal(t, epoch.Add(15*time.Second), deadline)
	assert.True(t, tr.Skipping("7"))

	ticket := tr.Begin("7", "https://evil.test/")
	clk.Advance(10 * time.Second)
	out := tr.Resolve(ticket, phishing("https://evil.test/"))
	assert.Equal(t, ActionNotify, out.Action)
	assert.Equal(t, StateResolvedDeferred, out.Session.State)

	// window elapsed: same resolution now redirects
	ticket = tr.Begin("7", "https://evil.test/")
	clk.Advance(5 * time.Second)
	assert.False(t, tr.Skipping("7"))
	out = tr.Resolve(ticket, phishing("https://evil.test/"))
	assert.Equal(t, ActionRedirect, out.Action)
	assert.Equal(t, StateResolvedRedirect, out.Session.State)
}

func TestSkipIsPerTab(t *testing.T) {
	tr := New(0, clock.NewFake(epoch), nil)
	assert.Equal(t, DefaultSkipWindow, tr.Window())
	tr.Skip("a")

	ticket := tr.Begin("b", "https://evil.test/")
	out := tr.Resolve(ticket, phishing("https://evil.test/"))
	assert.Equal(t, ActionRedirect, out.Action)
}

func TestStaleTicketDiscarded(t *testing.T) {
	tr := New(0, clock.NewFake(epoch), nil)

	old := tr.Begin("1", "https://evil.test/")
	current := tr.Begin("1", "https://safe.test/")

	out := tr.Resolve(old, phishing("https://evil.test/"))
	assert.Equal(t, ActionDiscard, out.Action)

	s, _ := tr.Get("1")
	assert.Equal(t, StateChecking, s.State)
	assert.Equal(t, "https://safe.test/", s.URL)

	out = tr.Resolve(current, decision.NewSafe("https://safe.test/", epoch))
	assert.Equal(t, ActionPass, out.Action)
}

func TestSameURLRenavigationDiscardsOlderCheck(t *testing.T) {
	tr := New(0, clock.NewFake(epoch), nil)

	first := tr.Begin("1", "https://x.test/")
	second := tr.Begin("1", "https://x.test/")

	assert.Equal(t, ActionDiscard, tr.Resolve(first, phishing("https://x.test/")).Action)
	assert.Equal(t, ActionRedirect, tr.Resolve(second, phishing("https://x.test/")).Action)
}

func TestResolveTwiceDiscardsSecond(t *testing.T) {
	tr := New(0, clock.NewFake(epoch), nil)
	ticket := tr.Begin("1", "https://x.test/")

	assert.Equal(t, ActionRedirect, tr.Resolve(ticket, phishing("https://x.test/")).Action)
	assert.Equal(t, ActionDiscard, tr.Resolve(ticket, phishing("https://x.test/")).Action)
}

func TestPassSupersedesCheck(t *testing.T) {
	tr := New(0, clock.NewFake(epoch), nil)
	ticket := tr.Begin("1", "https://evil.test/")
	tr.Pass("1", "https://github.com/")

	out := tr.Resolve(ticket, phishing("https://evil.test/"))
	assert.Equal(t, ActionDiscard, out.Action)

	s, _ := tr.Get("1")
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, "https://github.com/", s.URL)
}

func TestResolveUnknownTab(t *testing.T) {
	tr := New(0, clock.NewFake(epoch), nil)
	out := tr.Resolve(Ticket{TabID: "ghost", URL: "https://x.test/", Generation: 1}, phishing("https://x.test/"))
	assert.Equal(t, ActionDiscard, out.Action)
	assert.Equal(t, 0, tr.Len())
}

func TestForgetAndPrune(t *testing.T) {
	clk := clock.NewFake(epoch)
	tr := New(15*time.Second, clk, nil)

	done := tr.Begin("done", "https://a.test/")
	tr.Resolve(done, decision.NewSafe("https://a.test/", epoch))
	tr.Begin("checking", "https://b.test/")
	tr.Skip("skipping")
	assert.Equal(t, 3, tr.Len())

	clk.Advance(10 * time.Minute)
	tr.Skip("skipping")
	assert.Equal(t, 1, tr.Prune(5*time.Minute))
	_, ok := tr.Get("done")
	assert.False(t, ok)
	assert.Equal(t, 2, tr.Len())

	tr.Forget("checking")
	assert.Equal(t, 1, tr.Len())
}

func TestWarningURL(t *testing.T) {
	got := WarningURL("chrome-extension://abc/extension/warning.html", "https://evil.test/a?b=c&d=e")
	assert.Equal(t, "chrome-extension://abc/extension/warning.html?url=https%3A%2F%2Fevil.test%2Fa%3Fb%3Dc%26d%3De", got)
}
