package turn

import "time"

// Pending is the echo policy's working utterance.
type Pending struct {
	// Committed holds finalized text not yet submitted.
	Committed string
	// Partial is the most recent fragment of the current turn.
	Partial string
	// AwaitingEchoFinal is set after a submission; the next final restates it.
	AwaitingEchoFinal bool
}

// EchoPolicy submits on the first final of a turn and discards the late final
// the transcriber emits for the same turn.
type EchoPolicy struct {
	pending      Pending
	partialOrder int
}

// NewEchoPolicy returns an echo policy with an empty pending utterance.
func NewEchoPolicy() *EchoPolicy {
	return &EchoPolicy{partialOrder: -1}
}

func (p *EchoPolicy) Name() string { return PolicyEcho }

func (p *EchoPolicy) PausesCapture() bool { return true }

// Pending returns a copy of the working utterance.
func (p *EchoPolicy) Pending() Pending { return p.pending }

func (p *EchoPolicy) Observe(_ time.Time, t Turn) Decision {
	p.rollover(t.Order)

	if !t.Final {
		p.pending.Partial = t.Text
		p.partialOrder = t.Order
		p.pending.AwaitingEchoFinal = false
		return Decision{Reason: ReasonPartial}
	}

	if p.pending.AwaitingEchoFinal {
		p.pending.AwaitingEchoFinal = false
		p.pending.Partial = ""
		p.partialOrder = -1
		return Decision{Reason: ReasonEcho}
	}

	p.pending.Partial = t.Text
	text := join(p.pending.Committed, p.pending.Partial)
	p.pending.AwaitingEchoFinal = true
	p.pending.Committed = ""
	p.pending.Partial = ""
	p.partialOrder = -1
	return Decision{Submit: true, Text: text}
}

// Settle clears the utterance text but keeps AwaitingEchoFinal armed.
func (p *EchoPolicy) Settle(time.Time) {
	p.pending.Committed = ""
	p.pending.Partial = ""
	p.partialOrder = -1
}

// rollover commits a partial whose turn ended upstream without a final.
func (p *EchoPolicy) rollover(order int) {
	if p.pending.Partial == "" || p.partialOrder < 0 || order <= p.partialOrder {
		return
	}
	p.pending.Committed = join(p.pending.Committed, p.pending.Partial)
	p.pending.Partial = ""
	p.partialOrder = -1
}
