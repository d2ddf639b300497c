//go:build wireinject
// +build wireinject

// Package di wires a queryclient.Client from a config.Config. This file
// is the wire provider-set source; wire_gen.go is the committed,
// hand-written build output, since `go generate` is not run in this
// environment.
package di

import (
	"context"

	"github.com/google/wire"

	"querycache/config"
	"querycache/queryclient"
)

// SuperSet is the provider set wire_gen.go's BuildContainer is built
// from.
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideKV,
	ProvideChannel,
	ProvideTokenSource,
	ProvideRateLimiter,
	ProvideTracer,
	ProvideFetcher,
	ProvideMetrics,
	ProvideClientConfig,
	ProvideClient,
)

// BuildContainer builds a fully wired *queryclient.Client from cfg.
func BuildContainer(ctx context.Context, cfg *config.Config) (*queryclient.Client, error) {
	wire.Build(SuperSet)
	return nil, nil // wire replaces this body
}
