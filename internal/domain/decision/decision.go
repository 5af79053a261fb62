package decision

import (
	"math"
	"strings"
	"time"
)

// Outcome is the classifier verdict. Only the four constants below are valid.
type Outcome string

const (
	Safe     Outcome = "SAFE"
	Phishing Outcome = "PHISHING"
	Disabled Outcome = "DISABLED"
	Error    Outcome = "ERROR"
)

// ParseOutcome maps an upstream decision string onto an Outcome. Missing or
// unrecognized values become Error.
func ParseOutcome(s string) Outcome {
	switch Outcome(strings.ToUpper(strings.TrimSpace(s))) {
	case Safe:
		return Safe
	case Phishing:
		return Phishing
	case Disabled:
		return Disabled
	case Error:
		return Error
	default:
		return Error
	}
}

// Valid reports whether o is one of the four known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case Safe, Phishing, Disabled, Error:
		return true
	}
	return false
}

// Decision is an immutable verdict for one URL. Score is always populated.
type Decision struct {
	URL        string    `json:"url"`
	Outcome    Outcome   `json:"decision"`
	Score      float64   `json:"score"`
	ObservedAt time.Time `json:"observedAt"`
}

// New builds a Decision, synthesizing the score when the upstream omitted it
// (1.0 for PHISHING, 0.0 otherwise) and clamping it into [0,1].
func New(url string, outcome Outcome, score *float64, at time.Time) Decision {
	if !outcome.Valid() {
		outcome = Error
	}
	return Decision{
		URL:        url,
		Outcome:    outcome,
		Score:      normalizeScore(outcome, score),
		ObservedAt: at,
	}
}

// NewSafe is a SAFE decision with score 0.
func NewSafe(url string, at time.Time) Decision {
	return New(url, Safe, nil, at)
}

// NewDisabled is the short-circuit result while protection is switched off.
func NewDisabled(url string, at time.Time) Decision {
	return New(url, Disabled, nil, at)
}

// NewError is the result for input that could not be checked.
func NewError(url string, at time.Time) Decision {
	return New(url, Error, nil, at)
}

// IsBlocking reports whether the decision should stop the user.
func (d Decision) IsBlocking() bool {
	return d.Outcome == Phishing
}

// AtLeast reports a PHISHING verdict whose score reaches threshold.
func (d Decision) AtLeast(threshold float64) bool {
	return d.Outcome == Phishing && d.Score >= threshold
}

// Age returns how long ago the decision was observed.
func (d Decision) Age(now time.Time) time.Duration {
	return now.Sub(d.ObservedAt)
}

func normalizeScore(outcome Outcome, score *float64) float64 {
	if score == nil || math.IsNaN(*score) {
		if outcome == Phishing {
			return 1.0
		}
		return 0.0
	}
	return math.Max(0, math.Min(1, *score))
}
