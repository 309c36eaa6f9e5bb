package pathmon

import "time"

// Delegate overrides the built-in change policy. When registered, its return
// value is authoritative: true means notify, false means stay quiet. A panic
// inside a delegate is a programming error and is not recovered.
type Delegate func(candidate, current *Snapshot) bool

// policy decides whether a transition from current to candidate is
// significant enough to notify the subscriber. It owns the first-update
// suppression bookkeeping; committing candidate as current is the notifier's
// job and happens regardless of the decision.
type policy struct {
	delegate          Delegate
	expiration        time.Duration // 0 = disabled
	ignoreFirstUpdate bool
	suppressed        bool
}

// evaluate runs the decision steps in their fixed order:
// first-update suppression, delegate override, identity/address change,
// capture-age expiration.
func (p *policy) evaluate(candidate, current *Snapshot) bool {
	if p.ignoreFirstUpdate && !p.suppressed {
		// Consumes exactly one event, regardless of content.
		p.suppressed = true
		return false
	}
	if p.delegate != nil {
		return p.delegate(candidate, current)
	}
	if !SameState(candidate, current) {
		return true
	}
	if candidate != nil && current != nil && p.expiration > 0 {
		age := candidate.CapturedAt - current.CapturedAt
		if age < 0 {
			age = -age
		}
		if time.Duration(age)*time.Second > p.expiration {
			// Long-lived stable connection: let the subscriber refresh
			// metadata even though the addresses never moved.
			return true
		}
	}
	return false
}
