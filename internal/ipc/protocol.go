// Package ipc implements the newline-delimited JSON control socket.
package ipc

const (
	CommandStatus = "status"
	CommandStop   = "stop"
)

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK      bool    `json:"ok"`
	State   string  `json:"state,omitempty"`
	Message string  `json:"message,omitempty"`
	Error   string  `json:"error,omitempty"`
	Status  *Status `json:"status,omitempty"`
}

// Status is the running conversation snapshot returned by CommandStatus.
type Status struct {
	ConversationID string             `json:"conversation_id"`
	Policy         string             `json:"policy"`
	Submissions    int                `json:"submissions"`
	HistoryLength  int                `json:"history_length"`
	UptimeSeconds  float64            `json:"uptime_seconds"`
	Counters       map[string]float64 `json:"counters,omitempty"`
}
