// Package decision defines the verdict type shared by every part of the
// detection layer.
//
// A Decision pairs a URL with one of four outcomes (SAFE, PHISHING, DISABLED,
// ERROR), a score in [0,1] and the time it was observed. Decisions are values:
// a new check produces a new Decision and nothing mutates an old one.
//
// Normalization rules applied at the boundary:
//   - Unknown or missing upstream decision strings become ERROR
//   - A missing score becomes 1.0 for PHISHING and 0.0 otherwise
//   - Scores outside [0,1] are clamped, NaN counts as missing
//
// Example Usage:
//
//	d := decision.New(url, decision.ParseOutcome(resp.Decision), resp.Score, time.Now())
//	if d.IsBlocking() {
//	    // redirect to the warning page
//	}
package decision
