package local_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycache/streaming/local"
)

func TestSubscribeReceivesPublishedPatches(t *testing.T) {
	src := local.New()

	var got map[string]interface{}
	unsubscribe := src.Subscribe(context.Background(), "post:1", func(patch map[string]interface{}) {
		got = patch
	})
	defer unsubscribe()

	src.Publish("post:1", map[string]interface{}{"title": "Hello"})
	require.NotNil(t, got)
	assert.Equal(t, "Hello", got["title"])
}

func TestPublishWithNoSubscribersIsANoop(t *testing.T) {
	src := local.New()
	assert.NotPanics(t, func() { src.Publish("post:unknown", map[string]interface{}{"x": 1}) })
}

func TestUnsubscribeStopsFurtherDelivery(t *testing.T) {
	src := local.New()
	calls := 0
	unsubscribe := src.Subscribe(context.Background(), "post:1", func(patch map[string]interface{}) {
		calls++
	})
	unsubscribe()
	src.Publish("post:1", map[string]interface{}{"title": "Hello"})
	assert.Equal(t, 0, calls)
}
