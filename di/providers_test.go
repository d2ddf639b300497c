package di_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"querycache/config"
	"querycache/di"
	"querycache/querystore/memkv"
)

func TestProvideKVReturnsMemkvInDevelopment(t *testing.T) {
	cfg := &config.Config{Environment: "development"}
	kv := di.ProvideKV(nil, cfg, zap.NewNop())
	_, ok := kv.(*memkv.KV)
	assert.True(t, ok, "development environment should select the in-memory KV delegate")
}

func TestProvideClientBuildsAUsableClient(t *testing.T) {
	cfg := &config.Config{Environment: "development", CacheMaxCount: 10}
	kv := di.ProvideKV(nil, cfg, zap.NewNop())
	channel := di.ProvideChannel(nil, cfg, zap.NewNop())

	clientConfig := di.ProvideClientConfig(zap.NewNop(), cfg, kv, channel, nil, nil)
	client := di.ProvideClient(clientConfig)
	require.NotNil(t, client)
	defer client.Close()

	assert.NotNil(t, client.NetworkManager())
	assert.True(t, client.NetworkManager().IsOnline())
}
