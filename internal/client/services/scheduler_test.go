package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/homekeeper/internal/client/models"
	"github.com/dmitrijs2005/homekeeper/internal/syncproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T, remote *fakeRemote, interval time.Duration) (*Scheduler, *guardEnv) {
	t.Helper()
	e := newGuardEnv(t)
	syncer := NewSyncer(e.docs, remote, nil, WithLifecycle(e.guard))
	_, err := e.guard.EnsureDefaultContainer(context.Background())
	require.NoError(t, err)
	return NewScheduler(syncer, e.guard, interval, nil), e
}

func TestSyncAll_HomesFirstThenEveryKind(t *testing.T) {
	remote := &fakeRemote{}
	s, _ := newScheduler(t, remote, time.Minute)

	require.NoError(t, s.SyncAll(context.Background()))

	require.NotEmpty(t, remote.pushes)
	assert.Equal(t, string(models.KindHome), remote.pushes[0].EntityType)

	kinds := map[string]bool{}
	for _, p := range remote.pulls {
		kinds[p.EntityType] = true
	}
	for _, d := range models.Kinds() {
		assert.True(t, kinds[d.EntityType()], d.Kind)
	}

	st := s.Status()
	assert.NoError(t, st.LastErr)
	assert.Zero(t, st.Failures)
	assert.Len(t, st.Reports, len(models.Kinds()))
	assert.False(t, st.LastSuccess.IsZero())
}

func TestSyncAll_FailureCountsAndBackoff(t *testing.T) {
	remote := &fakeRemote{}
	remote.pull = func(*syncproto.PullRequest) (*syncproto.PullResponse, error) {
		return nil, errors.New("offline")
	}
	s, _ := newScheduler(t, remote, time.Minute)

	require.Error(t, s.SyncAll(context.Background()))
	require.Error(t, s.SyncAll(context.Background()))

	st := s.Status()
	assert.Equal(t, 2, st.Failures)
	assert.ErrorIs(t, st.LastErr, ErrPullFailed)
	assert.Equal(t, 4*time.Minute, s.nextDelay())

	remote.mu.Lock()
	remote.pull = nil
	remote.mu.Unlock()
	require.NoError(t, s.SyncAll(context.Background()))
	assert.Equal(t, time.Minute, s.nextDelay())
}

func TestNextDelay_Capped(t *testing.T) {
	s := NewScheduler(nil, nil, 10*time.Minute, nil)
	s.status.Failures = 10
	assert.Equal(t, maxBackoff, s.nextDelay())

	long := NewScheduler(nil, nil, time.Hour, nil)
	long.status.Failures = 3
	assert.Equal(t, time.Hour, long.nextDelay())
}

func TestSyncNow_SharesRunningPass(t *testing.T) {
	remote := &fakeRemote{}
	var calls atomic.Int32
	release := make(chan struct{})
	remote.pull = func(req *syncproto.PullRequest) (*syncproto.PullResponse, error) {
		if req.EntityType == string(models.KindHome) {
			calls.Add(1)
			<-release
		}
		return &syncproto.PullResponse{ServerTimestamp: t1}, nil
	}
	s, _ := newScheduler(t, remote, time.Minute)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.SyncNow(context.Background()))
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestRun_SkipsWhileOffline(t *testing.T) {
	remote := &fakeRemote{}
	s, _ := newScheduler(t, remote, 5*time.Millisecond)
	s.SetOnlineCheck(func() bool { return false })

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Empty(t, remote.pulls)
}

func TestRun_SyncsPeriodically(t *testing.T) {
	remote := &fakeRemote{}
	s, _ := newScheduler(t, remote, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return !s.Status().LastSuccess.IsZero()
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestRun_OnlineCheckSwappedWhileRunning(t *testing.T) {
	remote := &fakeRemote{}
	s, _ := newScheduler(t, remote, 5*time.Millisecond)
	s.SetOnlineCheck(func() bool { return false })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, s.Status().LastRun.IsZero())

	s.SetOnlineCheck(func() bool { return true })
	require.Eventually(t, func() bool {
		return !s.Status().LastSuccess.IsZero()
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
