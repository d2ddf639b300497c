package reactive_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycache/domain/reactive"
)

func TestSignalNotifiesSubscribersOnSet(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	sig := reactive.NewSignal(sched, 1)

	var mu sync.Mutex
	fired := 0
	done := make(chan struct{})
	sig.Notifier().Subscribe(func() {
		mu.Lock()
		fired++
		mu.Unlock()
		close(done)
	})

	sig.Set(2)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fired)
	assert.Equal(t, 2, sig.Peek())
}

func TestWatcherRerunsWhenDependencySignalChanges(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	sig := reactive.NewSignal(sched, "a")

	runs := make(chan string, 4)
	var w *reactive.Watcher
	sched.Run(func() {
		w = reactive.NewWatcher(sched, func() {
			runs <- sig.Get()
		})
		w.Run()
	})

	select {
	case v := <-runs:
		assert.Equal(t, "a", v)
	case <-time.After(time.Second):
		t.Fatal("initial run did not fire")
	}

	sig.Set("b")

	select {
	case v := <-runs:
		assert.Equal(t, "b", v)
	case <-time.After(time.Second):
		t.Fatal("watcher did not rerun after signal change")
	}

	w.Stop()
	sig.Set("c")

	select {
	case v := <-runs:
		t.Fatalf("watcher fired after Stop with value %q", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTaskAwaitReturnsResolvedValue(t *testing.T) {
	task := reactive.NewTask(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})

	v, err := task.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, task.IsResolved())
	assert.True(t, task.IsSettled())
	assert.False(t, task.IsPending())
}

func TestTaskAwaitReturnsRejectionError(t *testing.T) {
	wantErr := errors.New("boom")
	task := reactive.NewTask(context.Background(), func(ctx context.Context) (int, error) {
		return 0, wantErr
	})

	_, err := task.Await(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.True(t, task.IsRejected())
}

func TestTaskAwaitRespectsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	task := reactive.NewTask(context.Background(), func(ctx context.Context) (int, error) {
		<-block
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := task.Await(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRelayActivateDeactivateLifecycle(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	var activated, deactivated int
	relay := reactive.NewRelay[int](sched,
		func() { activated++ },
		func() { deactivated++ },
	)

	relay.Activate()
	relay.Activate()
	assert.Equal(t, 1, activated)
	assert.Equal(t, 2, relay.ActiveCount())

	relay.Deactivate()
	assert.Equal(t, 0, deactivated)

	relay.Deactivate()
	assert.Equal(t, 1, deactivated)
	assert.Equal(t, 0, relay.ActiveCount())
}

func TestRelayPushDeliversValue(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	relay := reactive.NewRelay[string](sched, nil, nil)

	_, hasValue, _ := relay.Get()
	assert.False(t, hasValue)

	relay.Push("hello")

	v, hasValue, err := relay.Get()
	require.NoError(t, err)
	require.True(t, hasValue)
	assert.Equal(t, "hello", v)
}

func TestRelayFailDeliversError(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	relay := reactive.NewRelay[string](sched, nil, nil)
	wantErr := errors.New("stream closed")
	relay.Fail(wantErr)

	_, _, err := relay.Get()
	assert.ErrorIs(t, err, wantErr)
}

func TestSchedulerDeferRunsAfterCurrentJob(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	var order []string
	var mu sync.Mutex
	done := make(chan struct{})

	sched.Go(func() {
		mu.Lock()
		order = append(order, "job")
		mu.Unlock()
		sched.Defer(func() {
			mu.Lock()
			order = append(order, "deferred")
			mu.Unlock()
			close(done)
		})
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deferred callback never ran")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, []string{"job", "deferred"}, order)
}
