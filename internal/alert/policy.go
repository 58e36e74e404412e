// Package alert decides whether a verdict warrants a notification and
// delivers WhatsApp alerts through Twilio.
package alert

import "tweetwatch/internal/analyze"

// Policy is a pure predicate over a verdict: true means dispatch.
// It is injected into the enrichment step so the threshold can be
// tightened without touching the pipeline.
type Policy func(analyze.Verdict) bool

// DefaultPolicy approves when urgency reaches the floor, or always for
// ATTACK regardless of urgency. With minUrgency 1 every enriched post
// notifies, matching the intended "never miss a mention" behavior;
// raising the floor in config makes the policy selective.
func DefaultPolicy(minUrgency int) Policy {
	if minUrgency < 1 {
		minUrgency = 1
	}
	return func(v analyze.Verdict) bool {
		if v.Urgency >= minUrgency {
			return true
		}
		return v.Category == analyze.CategoryAttack
	}
}
