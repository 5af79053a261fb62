package coordinator

import (
	"github.com/GriffinCanCode/PhishGuard/internal/domain/decision"
)

// Render-layer message actions.
const (
	ActionPageCheckStart  = "pageCheckStart"
	ActionPageCheckResult = "pageCheckResult"
	ActionLateWarning     = "latePhishingWarning"
	ActionRedirect        = "redirect"
)

// Message is pushed to the render layer of one tab.
type Message struct {
	Action    string           `json:"action"`
	TabID     string           `json:"tabId"`
	URL       string           `json:"url,omitempty"`
	Decision  decision.Outcome `json:"decision,omitempty"`
	Score     *float64         `json:"score,omitempty"`
	TargetURL string           `json:"targetUrl,omitempty"`
}

// Notifier delivers messages to the render layer.
type Notifier interface {
	Notify(msg Message)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Message)

func (f NotifierFunc) Notify(msg Message) { f(msg) }

type nopNotifier struct{}

func (nopNotifier) Notify(Message) {}

func pageCheckStart(tabID, url string) Message {
	return Message{Action: ActionPageCheckStart, TabID: tabID, URL: url}
}

func pageCheckResult(tabID string, d decision.Decision) Message {
	score := d.Score
	return Message{
		Action:   ActionPageCheckResult,
		TabID:    tabID,
		URL:      d.URL,
		Decision: d.Outcome,
		Score:    &score,
	}
}

func lateWarning(tabID string, d decision.Decision) Message {
	score := d.Score
	return Message{Action: ActionLateWarning, TabID: tabID, URL: d.URL, Score: &score}
}

func redirect(tabID, url, target string) Message {
	return Message{Action: ActionRedirect, TabID: tabID, URL: url, TargetURL: target}
}
