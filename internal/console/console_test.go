package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/turn"
)

// visible drops the carriage-return line clears so assertions read like the terminal.
func visible(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if i := strings.LastIndex(line, clearLine); i >= 0 {
			line = line[i+len(clearLine):]
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func TestConversationTranscript(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, false)

	c.Listening()
	c.Partial("what's the")
	c.Partial("what's the weather")
	c.Submitting("what's the weather")
	c.User("what's the weather")
	c.AssistantStart()
	c.AssistantFragment("Sunny")
	c.AssistantFragment(" today.")
	c.AssistantEnd()
	c.Settled("what's the weather", time.Second, nil)

	require.Equal(t, strings.Join([]string{
		"[Listening... Start speaking]",
		"You: what's the weather",
		"Assistant: Sunny today.",
		"",
	}, "\n"), visible(buf.String()))
}

func TestDiagnosticsOnlyInDebug(t *testing.T) {
	var quiet bytes.Buffer
	c := New(&quiet, false)
	c.Discarded("hello", turn.ReasonDuplicate)
	c.Diagnostic(turn.SessionTerminated{AudioSeconds: 12.5})
	c.Settled("hello", time.Second, nil)
	require.Empty(t, quiet.String())

	var loud bytes.Buffer
	c = New(&loud, true)
	c.Discarded("hello", turn.ReasonDuplicate)
	c.Diagnostic(turn.SessionTerminated{AudioSeconds: 12.5})
	require.Contains(t, loud.String(), "[duplicate - ignoring: hello]")
	require.Contains(t, loud.String(), "12.5s of audio processed")
}

func TestErrorsAlwaysShown(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, false)

	c.Settled("hello", time.Second, errors.New("generate reply: 429"))
	c.Diagnostic(turn.Error{})

	out := visible(buf.String())
	require.Contains(t, out, "Error: generate reply: 429")
	require.Contains(t, out, "Error: unknown error")
}
