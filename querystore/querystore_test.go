package querystore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycache/querystore"
	"querycache/querystore/memkv"
)

func TestSyncStoreSaveAndLoadQuery(t *testing.T) {
	ctx := context.Background()
	kv := memkv.New()
	store := querystore.NewSyncStore(kv, nil, 50, 24*time.Hour)

	err := store.SaveQuery(ctx, "getPost", 1, `{"postId":1}`, 1000, []uint32{10, 20})
	require.NoError(t, err)

	res, err := store.LoadQuery(ctx, 1, 1500)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, `{"postId":1}`, res.Value)
	assert.Equal(t, int64(1000), res.UpdatedAt)
	assert.ElementsMatch(t, []uint32{10, 20}, res.RefIds)
}

func TestSyncStoreLoadQueryReturnsNilPastGCHorizon(t *testing.T) {
	ctx := context.Background()
	kv := memkv.New()
	store := querystore.NewSyncStore(kv, nil, 50, time.Hour)

	require.NoError(t, store.SaveQuery(ctx, "getPost", 1, "v", 0, nil))

	res, err := store.LoadQuery(ctx, 1, (2 * time.Hour).Milliseconds())
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestSyncStoreSaveQueryIncrementsAndDecrementsRefCounts(t *testing.T) {
	ctx := context.Background()
	kv := memkv.New()
	store := querystore.NewSyncStore(kv, nil, 50, 24*time.Hour)

	require.NoError(t, store.SaveEntity(ctx, 10, `{"id":10}`, nil))
	require.NoError(t, store.SaveQuery(ctx, "getPost", 1, "v1", 0, []uint32{10}))

	count, ok, err := kv.GetNumber(ctx, "sq:doc:refCount:10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(1), count)

	require.NoError(t, store.SaveQuery(ctx, "getPost", 1, "v2", 0, nil))

	ok, err = kv.Has(ctx, "sq:doc:value:10")
	require.NoError(t, err)
	assert.False(t, ok, "entity should be cascade-deleted once its last referencing query drops the ref")
}

func TestSyncStoreCascadeDeletesThroughEntityRefs(t *testing.T) {
	ctx := context.Background()
	kv := memkv.New()
	store := querystore.NewSyncStore(kv, nil, 50, 24*time.Hour)

	require.NoError(t, store.SaveEntity(ctx, 20, `{"id":20}`, nil))
	require.NoError(t, store.SaveEntity(ctx, 10, `{"id":10}`, []uint32{20}))
	require.NoError(t, store.SaveQuery(ctx, "getPost", 1, "v1", 0, []uint32{10}))

	require.NoError(t, store.EvictQuery(ctx, "getPost", 1))

	ok, err := kv.Has(ctx, "sq:doc:value:10")
	require.NoError(t, err)
	assert.False(t, ok, "parent entity evicted with its query")

	ok, err = kv.Has(ctx, "sq:doc:value:20")
	require.NoError(t, err)
	assert.False(t, ok, "child entity reachable only through the parent's entityRefs must cascade too")
}

func TestSyncStoreActivateQueryEvictsLRUTailOverCapacity(t *testing.T) {
	ctx := context.Background()
	kv := memkv.New()
	store := querystore.NewSyncStore(kv, nil, 2, 24*time.Hour)

	require.NoError(t, store.SaveQuery(ctx, "getPost", 1, "v1", 0, nil))
	require.NoError(t, store.ActivateQuery(ctx, "getPost", 1))
	require.NoError(t, store.SaveQuery(ctx, "getPost", 2, "v2", 0, nil))
	require.NoError(t, store.ActivateQuery(ctx, "getPost", 2))
	require.NoError(t, store.SaveQuery(ctx, "getPost", 3, "v3", 0, nil))
	require.NoError(t, store.ActivateQuery(ctx, "getPost", 3))

	queue, ok, err := kv.GetBuffer(ctx, "sq:doc:queue:getPost")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, queue, 2, "oldest entry should have been evicted once the family exceeded maxCount")
	assert.NotContains(t, queue, uint32(1))

	evictedVal, ok, err := kv.GetString(ctx, "sq:doc:value:1")
	require.NoError(t, err)
	assert.False(t, ok)
	_ = evictedVal
}

func TestSyncStoreClearOptimisticInsertRefs(t *testing.T) {
	ctx := context.Background()
	kv := memkv.New()
	require.NoError(t, kv.SetBuffer(ctx, "sq:doc:optimisticInsertRefs:1", []uint32{10}))

	store := querystore.NewSyncStore(kv, nil, 50, 24*time.Hour)
	require.NoError(t, store.ClearOptimisticInsertRefs(ctx, 1))

	ok, err := kv.Has(ctx, "sq:doc:optimisticInsertRefs:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAsyncStoreRoundTripsThroughWriter(t *testing.T) {
	ctx := context.Background()
	kv := memkv.New()
	ch := querystore.NewLocalChannel(8)
	defer ch.Close()

	async := querystore.NewAsyncStore(kv, ch, nil, 50, 24*time.Hour)
	reader := async.Reader()

	require.NoError(t, reader.SaveQuery(ctx, "getPost", 1, `{"postId":1}`, 500, nil))

	res, err := reader.LoadQuery(ctx, 1, 600)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, `{"postId":1}`, res.Value)
}

func TestAsyncStoreProcessesMessagesFromConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	kv := memkv.New()
	ch := querystore.NewLocalChannel(32)
	defer ch.Close()

	async := querystore.NewAsyncStore(kv, ch, nil, 50, 24*time.Hour)

	const n = 10
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		reader := async.Reader()
		key := uint32(i + 1)
		go func() {
			done <- reader.SaveQuery(ctx, "getPost", key, "v", 0, nil)
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-done)
	}

	for i := 0; i < n; i++ {
		key := uint32(i + 1)
		res, err := async.Reader().LoadQuery(ctx, key, 0)
		require.NoError(t, err)
		require.NotNil(t, res)
	}
}
