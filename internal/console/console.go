// Package console prints the conversation for the person at the terminal.
package console

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/parley/internal/turn"
)

const (
	listeningBanner = "[Listening... Start speaking]"
	clearLine       = "\r\x1b[2K"
)

// Console implements turn.Observer and reply.Printer on one writer.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	debug bool

	// partial is true while a live partial line is on screen without a newline.
	partial bool

	user      lipgloss.Style
	assistant lipgloss.Style
	status    lipgloss.Style
	muted     lipgloss.Style
	failure   lipgloss.Style
}

// New renders onto w. Discard and session diagnostics are only shown when
// debug is set.
func New(w io.Writer, debug bool) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:         w,
		debug:     debug,
		user:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		status:    r.NewStyle().Foreground(lipgloss.Color("11")),
		muted:     r.NewStyle().Faint(true),
		failure:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

func (c *Console) Listening() {
	c.line(c.status.Render(listeningBanner))
}

func (c *Console) Partial(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.w, clearLine+c.muted.Render(text))
	c.partial = true
}

func (c *Console) Discarded(text string, reason turn.Reason) {
	if !c.debug {
		return
	}
	c.line(c.muted.Render(fmt.Sprintf("[%s - ignoring: %s]", reason, text)))
}

func (c *Console) Submitting(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropPartial()
}

func (c *Console) Settled(_ string, elapsed time.Duration, err error) {
	if err != nil {
		c.line(c.failure.Render("Error:") + " " + err.Error())
		return
	}
	if c.debug {
		c.line(c.muted.Render(fmt.Sprintf("[turn complete in %s]", elapsed.Round(time.Millisecond))))
	}
}

func (c *Console) Diagnostic(event turn.Event) {
	switch ev := event.(type) {
	case turn.Error:
		c.line(c.failure.Render("Error:") + " " + ev.Message())
	case turn.SessionTerminated:
		if c.debug {
			c.line(c.muted.Render(fmt.Sprintf("[Session terminated: %.1fs of audio processed]", ev.AudioSeconds)))
		}
	}
}

// User prints the accepted utterance.
func (c *Console) User(text string) {
	c.line(c.user.Render("You:") + " " + text)
}

// AssistantStart opens the assistant line; fragments follow on the same line.
func (c *Console) AssistantStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropPartial()
	fmt.Fprint(c.w, c.assistant.Render("Assistant:")+" ")
}

func (c *Console) AssistantFragment(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.w, text)
}

func (c *Console) AssistantEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w)
}

func (c *Console) line(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropPartial()
	fmt.Fprintln(c.w, text)
}

func (c *Console) dropPartial() {
	if c.partial {
		fmt.Fprint(c.w, clearLine)
		c.partial = false
	}
}
