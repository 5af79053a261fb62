package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/decision"
	"github.com/GriffinCanCode/PhishGuard/internal/domain/navigation"
	"github.com/GriffinCanCode/PhishGuard/internal/shared/urls"
)

// NavigationEvent is a tab update signal.
type NavigationEvent struct {
	TabID           string
	URL             string
	IsLoadCompleted bool
}

// NavigationStatus describes what HandleNavigation did synchronously.
type NavigationStatus string

const (
	NavIgnored  NavigationStatus = "ignored"
	NavDisabled NavigationStatus = "disabled"
	NavProceed  NavigationStatus = "proceed"
	NavInvalid  NavigationStatus = "invalid"
	NavAllowed  NavigationStatus = "allowed"
	NavChecking NavigationStatus = "checking"
)

// NavigationOutcome is the synchronous result of HandleNavigation.
type NavigationOutcome struct {
	Status NavigationStatus  `json:"status"`
	Ticket navigation.Ticket `json:"-"`
}

// HandleNavigation reacts to a completed page load. When a check is needed
// it emits pageCheckStart, returns immediately and finishes the check in
// the background, emitting pageCheckResult followed by either a redirect or
// a late warning unless a newer navigation superseded it.
func (c *Coordinator) HandleNavigation(ctx context.Context, ev NavigationEvent) NavigationOutcome {
	if !ev.IsLoadCompleted || urls.IsInternal(ev.URL, c.cfg.WarningPageURL) {
		return NavigationOutcome{Status: NavIgnored}
	}
	if !c.Enabled() {
		return NavigationOutcome{Status: NavDisabled}
	}

	log := c.logger.With(zap.String("tab_id", ev.TabID), zap.String("url", ev.URL))

	if c.allow.ConsumeProceedURL(ev.URL) {
		log.Info("Proceed grant consumed")
		c.tracker.Pass(ev.TabID, ev.URL)
		return NavigationOutcome{Status: NavProceed}
	}

	host, err := urls.Hostname(ev.URL)
	if err != nil {
		log.Debug("Navigation to uncheckable url", zap.Error(err))
		c.tracker.Pass(ev.TabID, ev.URL)
		return NavigationOutcome{Status: NavInvalid}
	}
	if source, ok := c.allow.Match(host); ok {
		log.Debug("Navigation allowed", zap.String("host", host), zap.String("list", string(source)))
		c.tracker.Pass(ev.TabID, ev.URL)
		return NavigationOutcome{Status: NavAllowed}
	}

	if !c.track() {
		return NavigationOutcome{Status: NavIgnored}
	}

	ticket := c.tracker.Begin(ev.TabID, ev.URL)
	if c.metrics != nil {
		c.metrics.SetTabsTracked(c.tracker.Len())
	}
	c.notifier.Notify(pageCheckStart(ev.TabID, ev.URL))
	go c.checkNavigation(ticket)

	return NavigationOutcome{Status: NavChecking, Ticket: ticket}
}

func (c *Coordinator) checkNavigation(ticket navigation.Ticket) {
	defer c.wg.Done()

	res, err := c.evaluate(c.ctx, Request{URL: ticket.URL, Trigger: TriggerNavigation}, 0)
	if err != nil {
		c.logger.Debug("Navigation check abandoned",
			zap.String("tab_id", ticket.TabID),
			zap.String("url", ticket.URL),
			zap.Error(err),
		)
		return
	}

	out := c.tracker.Resolve(ticket, res.Decision)
	if c.metrics != nil {
		c.metrics.RecordNavAction(string(out.Action))
	}

	switch out.Action {
	case navigation.ActionDiscard:
		return
	case navigation.ActionRedirect:
		c.notifier.Notify(pageCheckResult(ticket.TabID, res.Decision))
		target := navigation.WarningURL(c.cfg.WarningPageURL, ticket.URL)
		c.logger.Warn("Phishing page blocked",
			zap.String("tab_id", ticket.TabID),
			zap.String("url", ticket.URL),
			zap.Float64("score", res.Decision.Score),
		)
		c.notifier.Notify(redirect(ticket.TabID, ticket.URL, target))
	case navigation.ActionNotify:
		c.notifier.Notify(pageCheckResult(ticket.TabID, res.Decision))
		c.logger.Info("Phishing page reached during skip window",
			zap.String("tab_id", ticket.TabID),
			zap.String("url", ticket.URL),
			zap.Float64("score", res.Decision.Score),
		)
		c.notifier.Notify(lateWarning(ticket.TabID, res.Decision))
	default:
		c.notifier.Notify(pageCheckResult(ticket.TabID, res.Decision))
	}
}

// OverlayInit reports whether the tab should show the "checking" overlay
// while url loads.
func (c *Coordinator) OverlayInit(tabID, url string) bool {
	if !c.Enabled() || urls.IsInternal(url, c.cfg.WarningPageURL) {
		return false
	}
	host, err := urls.Hostname(url)
	if err != nil {
		return false
	}
	if c.allow.IsAllowed(host) || c.allow.HasProceedURL(url) {
		return false
	}
	if d, ok := c.cache.Get(url); ok && d.Outcome != decision.Phishing {
		return false
	}
	return !c.tracker.Skipping(tabID)
}

// Skip opens the tab's skip window and returns its deadline.
func (c *Coordinator) Skip(tabID string) time.Time {
	return c.tracker.Skip(tabID)
}

// Session returns the navigation state of a tab.
func (c *Coordinator) Session(tabID string) (navigation.Session, bool) {
	return c.tracker.Get(tabID)
}

// ForgetTab drops the navigation state of a closed tab.
func (c *Coordinator) ForgetTab(tabID string) {
	c.tracker.Forget(tabID)
}
