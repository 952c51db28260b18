package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/turn"
)

func TestObserverCountsTurnOutcomes(t *testing.T) {
	m := New()

	m.Partial("hello")
	m.Partial("hello there")
	m.Submitting("hello there")
	m.Discarded("hello there", turn.ReasonEcho)
	m.Discarded("hi", turn.ReasonBusy)
	m.Discarded("hi again", turn.ReasonBusy)
	m.Settled("hello there", 1500*time.Millisecond, nil)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Partials))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Submissions))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Discards.WithLabelValues("echo")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Discards.WithLabelValues("busy")))
	require.Equal(t, 1, testutil.CollectAndCount(m.TurnDuration))
}

func TestErrorsAreCountedByKind(t *testing.T) {
	m := New()

	m.Settled("hi", time.Second, fault.Wrap(fault.Service, "generate reply", errors.New("429")))
	m.Diagnostic(turn.Error{Err: fault.Wrap(fault.Connection, "read", errors.New("eof"))})
	m.Diagnostic(turn.Error{})
	m.Diagnostic(turn.SessionTerminated{AudioSeconds: 3})
	m.RecordError(errors.New("plain"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues(string(fault.Service))))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues(string(fault.Connection))))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("unknown")))
}

func TestSnapshotFlattensSeries(t *testing.T) {
	m := New()
	m.Submitting("one")
	m.Discarded("two", turn.ReasonCooldown)
	m.ObserveStage("generate", 250*time.Millisecond)
	m.ObserveStage("generate", 750*time.Millisecond)

	snap := m.Snapshot()
	require.Equal(t, 1.0, snap["parley_turns_submitted_total"])
	require.Equal(t, 1.0, snap[`parley_turns_discarded_total{reason="cooldown"}`])
	require.Equal(t, 2.0, snap[`parley_stage_duration_seconds_count{stage="generate"}`])
	require.InDelta(t, 1.0, snap[`parley_stage_duration_seconds_sum{stage="generate"}`], 1e-9)
	require.Equal(t, 0.0, snap["parley_partial_transcripts_total"])
	require.NotContains(t, snap, `parley_turns_discarded_total{reason="echo"}`)
}
