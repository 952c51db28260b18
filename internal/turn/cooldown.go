package turn

import "time"

// CooldownPolicy submits finals verbatim, ignoring exact repeats of the last
// submission and anything that arrives within a fixed window after a reply.
type CooldownPolicy struct {
	window        time.Duration
	lastSubmitted string
	cooldownUntil time.Time
}

// NewCooldownPolicy returns a cooldown policy; window <= 0 uses DefaultCooldown.
func NewCooldownPolicy(window time.Duration) *CooldownPolicy {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &CooldownPolicy{window: window}
}

func (p *CooldownPolicy) Name() string { return PolicyCooldown }

func (p *CooldownPolicy) PausesCapture() bool { return false }

// Window returns the configured dead time.
func (p *CooldownPolicy) Window() time.Duration { return p.window }

// CooldownUntil returns the end of the current dead time.
func (p *CooldownPolicy) CooldownUntil() time.Time { return p.cooldownUntil }

func (p *CooldownPolicy) Observe(now time.Time, t Turn) Decision {
	if !t.Final {
		return Decision{Reason: ReasonPartial}
	}
	if t.Text == p.lastSubmitted {
		return Decision{Reason: ReasonDuplicate}
	}
	if now.Before(p.cooldownUntil) {
		return Decision{Reason: ReasonCooldown}
	}

	p.lastSubmitted = t.Text
	return Decision{Submit: true, Text: t.Text}
}

func (p *CooldownPolicy) Settle(now time.Time) {
	p.cooldownUntil = now.Add(p.window)
}
