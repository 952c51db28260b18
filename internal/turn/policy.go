package turn

import (
	"fmt"
	"strings"
	"time"
)

// Reason explains why a turn was not submitted.
type Reason string

const (
	ReasonIdle      Reason = "idle"
	ReasonBusy      Reason = "busy"
	ReasonBlank     Reason = "blank"
	ReasonPartial   Reason = "partial"
	ReasonEcho      Reason = "echo"
	ReasonDuplicate Reason = "duplicate"
	ReasonCooldown  Reason = "cooldown"
)

// Decision is a policy verdict for one non-blank turn.
type Decision struct {
	Submit bool
	Text   string
	Reason Reason
}

// Policy owns suppression state between submissions.
//
// Observe and Settle are always called under the coordinator lock.
type Policy interface {
	Name() string
	Observe(now time.Time, t Turn) Decision
	// Settle runs once after every submission, successful or not.
	Settle(now time.Time)
	// PausesCapture reports whether the transcript stream must be torn down
	// while a reply is generated and played.
	PausesCapture() bool
}

const (
	PolicyEcho     = "echo"
	PolicyCooldown = "cooldown"
)

// DefaultCooldown is the dead time after each reply under the cooldown policy.
const DefaultCooldown = 3 * time.Second

// NewPolicy builds the named policy.
func NewPolicy(name string, cooldown time.Duration) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyEcho:
		return NewEchoPolicy(), nil
	case PolicyCooldown:
		return NewCooldownPolicy(cooldown), nil
	default:
		return nil, fmt.Errorf("unknown turn policy %q", name)
	}
}

// join concatenates two fragments with a single space when both are non-empty.
func join(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
