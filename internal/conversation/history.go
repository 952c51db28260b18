// Package conversation holds the role-tagged message log sent to the language model.
package conversation

import "sync"

// Role tags who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation log.
type Message struct {
	Role    Role
	Content string
}

// History is an append-only, order-preserving message log.
//
// It is never truncated: the log grows for the whole process lifetime.
type History struct {
	mu       sync.RWMutex
	messages []Message
}

// New seeds a history with one system message.
func New(systemPrompt string) *History {
	return &History{
		messages: []Message{{Role: RoleSystem, Content: systemPrompt}},
	}
}

// Append adds msg at the end of the log.
func (h *History) Append(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
}

// Snapshot returns a copy of all messages in append order.
func (h *History) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len reports the number of messages, including the system seed.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}
