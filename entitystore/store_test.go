package entitystore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycache/domain/reactive"
	"querycache/domain/typedef"
	"querycache/entitystore"
)

func userDef() *typedef.TypeDef {
	return typedef.Entity(map[string]*typedef.TypeDef{
		"id":   typedef.ID(),
		"name": typedef.String(),
	}, typedef.EntityOptions{TypenameValue: "User"})
}

func TestGetOrCreateReturnsSameRecordForSameKey(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	store := entitystore.NewStore(sched)
	def := userDef()
	key := entitystore.NewKey("User", "1", def)

	r1 := store.GetOrCreate(key, def)
	r2 := store.GetOrCreate(key, def)
	assert.Same(t, r1, r2)
}

func TestMergeClearsParseCacheAndNotifies(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	store := entitystore.NewStore(sched)
	def := userDef()
	key := entitystore.NewKey("User", "1", def)
	r := store.GetOrCreate(key, def)
	r.ParseCacheSet("name", "stale")

	notified := make(chan struct{})
	r.Notifier().Subscribe(func() { close(notified) })

	store.Merge(key, map[string]interface{}{"name": "Ada"})

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("merge did not notify dependents")
	}

	_, ok := r.ParseCacheGet("name")
	assert.False(t, ok, "parse cache should be cleared on merge")
	assert.Equal(t, "Ada", r.Value()["name"])
}

func TestPreloadDoesNotNotify(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	store := entitystore.NewStore(sched)
	def := userDef()
	key := entitystore.NewKey("User", "1", def)

	fired := false
	store.GetOrCreate(key, def).Notifier().Subscribe(func() { fired = true })

	store.Preload(key, def, map[string]interface{}{"name": "Grace"})

	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired)
	r, ok := store.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, "Grace", r.Value()["name"])
}

func TestOptimisticSnapshotRevertRestoresValue(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	store := entitystore.NewStore(sched)
	def := userDef()
	key := entitystore.NewKey("User", "1", def)
	store.Preload(key, def, map[string]interface{}{"name": "Original"})

	store.SetOptimisticSnapshot(key)
	store.Merge(key, map[string]interface{}{"name": "Optimistic"})

	r, _ := store.Lookup(key)
	assert.Equal(t, "Optimistic", r.Value()["name"])

	store.RevertOptimistic(key)
	assert.Equal(t, "Original", r.Value()["name"])
}

func TestSecondSnapshotDoesNotOverwriteFirst(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	store := entitystore.NewStore(sched)
	def := userDef()
	key := entitystore.NewKey("User", "1", def)
	store.Preload(key, def, map[string]interface{}{"name": "v1"})

	store.SetOptimisticSnapshot(key)
	store.Merge(key, map[string]interface{}{"name": "v2"})
	store.SetOptimisticSnapshot(key) // must be a no-op
	store.Merge(key, map[string]interface{}{"name": "v3"})

	store.RevertOptimistic(key)
	r, _ := store.Lookup(key)
	assert.Equal(t, "v1", r.Value()["name"])
}

func TestClearOptimisticDiscardsSnapshotWithoutRevert(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	store := entitystore.NewStore(sched)
	def := userDef()
	key := entitystore.NewKey("User", "1", def)
	store.Preload(key, def, map[string]interface{}{"name": "v1"})

	store.SetOptimisticSnapshot(key)
	store.Merge(key, map[string]interface{}{"name": "v2"})
	store.ClearOptimistic(key)
	store.RevertOptimistic(key) // no snapshot left, should be a no-op

	r, _ := store.Lookup(key)
	assert.Equal(t, "v2", r.Value()["name"])
}

func TestActivateStreamDefersMergeToNextTick(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	var push func(patch map[string]interface{})
	def := typedef.Entity(map[string]*typedef.TypeDef{
		"id":     typedef.ID(),
		"status": typedef.String(),
	}, typedef.EntityOptions{
		TypenameValue: "Ticket",
		Stream: &typedef.StreamDescriptor{
			Subscribe: func(ctx interface{}, id string, onUpdate func(patch map[string]interface{})) func() {
				push = onUpdate
				return func() {}
			},
		},
	})

	store := entitystore.NewStore(sched)
	key := entitystore.NewKey("Ticket", "7", def)
	store.Preload(key, def, map[string]interface{}{"id": "7", "status": "open"})

	unsubscribe, active := store.ActivateStream(context.Background(), key)
	require.True(t, active)
	require.NotNil(t, push)

	notified := make(chan struct{})
	r, _ := store.Lookup(key)
	r.Notifier().Subscribe(func() { close(notified) })

	push(map[string]interface{}{"status": "closed"})

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("deferred stream merge never applied")
	}
	assert.Equal(t, "closed", r.Value()["status"])

	unsubscribe()
}

func TestDecRefReportsReachedZero(t *testing.T) {
	sched := reactive.NewScheduler()
	defer sched.Close()

	store := entitystore.NewStore(sched)
	def := userDef()
	key := entitystore.NewKey("User", "1", def)
	store.GetOrCreate(key, def)

	store.IncRef(key)
	store.IncRef(key)
	assert.False(t, store.DecRef(key))
	assert.True(t, store.DecRef(key))
}
