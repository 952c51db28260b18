package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSeedsSystemMessage(t *testing.T) {
	h := New("You are a helpful virtual assistant.")

	snap := h.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, Message{Role: RoleSystem, Content: "You are a helpful virtual assistant."}, snap[0])
}

func TestSnapshotPreservesAppendOrder(t *testing.T) {
	h := New("system")
	for i := 0; i < 5; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		h.Append(Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}

	snap := h.Snapshot()
	require.Len(t, snap, 6)
	require.Equal(t, RoleSystem, snap[0].Role)
	for i := 0; i < 5; i++ {
		require.Equal(t, fmt.Sprintf("m%d", i), snap[i+1].Content)
	}
	require.Equal(t, 6, h.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	h := New("system")
	h.Append(Message{Role: RoleUser, Content: "hello"})

	snap := h.Snapshot()
	snap[1].Content = "mutated"
	snap = append(snap, Message{Role: RoleUser, Content: "extra"})

	again := h.Snapshot()
	require.Len(t, again, 2)
	require.Equal(t, "hello", again[1].Content)
}

func TestConcurrentReadersDuringAppend(t *testing.T) {
	h := New("system")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = h.Len()
				_ = h.Snapshot()
			}
		}()
	}
	for i := 0; i < 100; i++ {
		h.Append(Message{Role: RoleUser, Content: "x"})
	}
	wg.Wait()

	require.Equal(t, 101, h.Len())
}
