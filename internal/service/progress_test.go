package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trainproof/trainproof/internal/model"
)

func TestSnapshotInvariantHoldsAfterEveryUpdate(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.StartJob("job-1", 10, model.JobStatusValidating)

	for i := 0; i < 10; i++ {
		tracker.RecordResult("job-1", i%3 != 0)
		snap, ok := tracker.Snapshot("job-1")
		require.True(t, ok)
		require.Equal(t, snap.Total, snap.Succeeded+snap.Failed+snap.Pending)
	}
	snap, _ := tracker.Snapshot("job-1")
	require.Equal(t, 6, snap.Succeeded)
	require.Equal(t, 4, snap.Failed)
	require.Equal(t, 0, snap.Pending)
}

func TestConcurrentRecordsAndReads(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.StartJob("job-1", 100, model.JobStatusValidating)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tracker.RecordResult("job-1", n%2 == 0)
		}(i)
	}
	violations := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if snap, ok := tracker.Snapshot("job-1"); ok {
				if snap.Total != snap.Succeeded+snap.Failed+snap.Pending {
					violations++
				}
			}
		}
	}()
	wg.Wait()
	<-done
	require.Zero(t, violations)

	snap, ok := tracker.Snapshot("job-1")
	require.True(t, ok)
	require.Equal(t, 50, snap.Succeeded)
	require.Equal(t, 50, snap.Failed)
}

func TestCancelFlagAndForget(t *testing.T) {
	tracker := NewProgressTracker()
	require.False(t, tracker.RequestCancel("ghost"))

	tracker.StartJob("job-1", 5, model.JobStatusValidating)
	require.False(t, tracker.CancelRequested("job-1"))
	require.True(t, tracker.RequestCancel("job-1"))
	require.True(t, tracker.CancelRequested("job-1"))

	tracker.Forget("job-1")
	_, ok := tracker.Snapshot("job-1")
	require.False(t, ok)
}
