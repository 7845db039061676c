package presence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectDisconnect(t *testing.T) {
	tracker := NewTracker()

	require.False(t, tracker.IsOnline(7))

	tracker.Connect(7, "alice")
	require.True(t, tracker.IsOnline(7))
	require.Equal(t, []int64{7}, tracker.Online())

	tracker.Disconnect(7)
	require.False(t, tracker.IsOnline(7))
	require.Empty(t, tracker.Online())
}

func TestReconnectReplacesRecord(t *testing.T) {
	tracker := NewTracker()

	tracker.Connect(7, "alice")
	tracker.Connect(7, "alice")
	require.Len(t, tracker.Online(), 1)
}

func TestConcurrentAccess(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			tracker.Connect(id, "user")
			tracker.IsOnline(id)
			tracker.Disconnect(id)
		}(int64(i))
	}
	wg.Wait()

	require.Empty(t, tracker.Online())
}
