// Package assemblyai streams PCM audio to the AssemblyAI v3 realtime API and
// decodes its messages into turn events.
package assemblyai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/turn"
)

const streamingPath = "/v3/ws"

// Config describes one streaming session.
type Config struct {
	APIKey string
	// Endpoint is the websocket URL without query, e.g. wss://streaming.assemblyai.com/v3/ws.
	Endpoint                     string
	SampleRate                   int
	FormatTurns                  bool
	EndOfTurnConfidenceThreshold float64
	MinEndOfTurnSilence          time.Duration
	MaxTurnSilence               time.Duration
	DialTimeout                  time.Duration
}

// Endpoint returns the streaming URL for host. A host carrying a scheme is
// used as the URL base.
func Endpoint(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if strings.Contains(host, "://") {
		return host + streamingPath
	}
	return "wss://" + host + streamingPath
}

// URL renders the endpoint with session query parameters.
func (c Config) URL() (string, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", c.Endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("endpoint %q must use ws or wss", c.Endpoint)
	}

	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(c.SampleRate))
	q.Set("encoding", "pcm_s16le")
	q.Set("format_turns", strconv.FormatBool(c.FormatTurns))
	q.Set("end_of_turn_confidence_threshold", strconv.FormatFloat(c.EndOfTurnConfidenceThreshold, 'f', -1, 64))
	q.Set("min_end_of_turn_silence_when_confident", strconv.FormatInt(c.MinEndOfTurnSilence.Milliseconds(), 10))
	q.Set("max_turn_silence", strconv.FormatInt(c.MaxTurnSilence.Milliseconds(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Conn is one open streaming session.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	events   chan turn.Event
	readDone chan struct{}

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	termOnce    sync.Once
	terminated  chan struct{}
	termMu      sync.Mutex
	termination turn.SessionTerminated
}

// Dial opens a streaming session and starts reading server messages.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Conn, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fault.Wrap(fault.Connection, "dial transcription", errors.New("missing API key"))
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	target, err := cfg.URL()
	if err != nil {
		return nil, err
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	header := http.Header{}
	header.Set("Authorization", cfg.APIKey)

	ws, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (http %d)", err, resp.StatusCode)
		}
		return nil, fault.Wrap(fault.Connection, "dial transcription", err)
	}

	c := &Conn{
		ws:         ws,
		logger:     logger,
		events:     make(chan turn.Event, 16),
		readDone:   make(chan struct{}),
		done:       make(chan struct{}),
		terminated: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events yields decoded server messages in arrival order. The channel closes
// when the connection ends.
func (c *Conn) Events() <-chan turn.Event {
	return c.events
}

// SendAudio writes one binary PCM frame.
func (c *Conn) SendAudio(pcm []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fault.Wrap(fault.Connection, "send audio", err)
	}
	return nil
}

// Terminate asks the server to end the session and waits for its
// Termination message.
func (c *Conn) Terminate(ctx context.Context) (turn.SessionTerminated, error) {
	c.writeMu.Lock()
	err := c.ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"Terminate"}`))
	c.writeMu.Unlock()
	if err != nil {
		return turn.SessionTerminated{}, fault.Wrap(fault.Connection, "send terminate", err)
	}

	select {
	case <-c.terminated:
		c.termMu.Lock()
		defer c.termMu.Unlock()
		return c.termination, nil
	case <-c.readDone:
		if c.isTerminated() {
			c.termMu.Lock()
			defer c.termMu.Unlock()
			return c.termination, nil
		}
		return turn.SessionTerminated{}, fault.Wrap(fault.Connection, "await termination", errors.New("connection closed"))
	case <-c.done:
		return turn.SessionTerminated{}, fault.Wrap(fault.Connection, "await termination", errors.New("connection closed"))
	case <-ctx.Done():
		return turn.SessionTerminated{}, ctx.Err()
	}
}

// Close releases the connection. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.readDone)
	defer close(c.events)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed() || c.isTerminated() {
				return
			}
			c.emit(turn.Error{Err: fault.Wrap(fault.Connection, "read transcription", err)})
			return
		}

		event, err := decodeMessage(data)
		if err != nil {
			c.emit(turn.Error{Err: fault.Wrap(fault.Protocol, "decode transcription message", err)})
			continue
		}
		if event == nil {
			continue
		}

		if term, ok := event.(turn.SessionTerminated); ok {
			c.markTerminated(term)
		}
		if !c.emit(event) {
			return
		}
	}
}

// emit delivers event unless the connection is closing.
func (c *Conn) emit(event turn.Event) bool {
	select {
	case c.events <- event:
		return true
	case <-c.done:
		return false
	}
}

func (c *Conn) markTerminated(term turn.SessionTerminated) {
	c.termOnce.Do(func() {
		c.termMu.Lock()
		c.termination = term
		c.termMu.Unlock()
		close(c.terminated)
	})
}

func (c *Conn) isTerminated() bool {
	select {
	case <-c.terminated:
		return true
	default:
		return false
	}
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
