package di

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"querycache/config"
	"querycache/pkg/auth"
	"querycache/pkg/observability"
	"querycache/querystore"
	"querycache/querystore/dynamokv"
	"querycache/querystore/memkv"
	"querycache/queryclient"
	"querycache/queryengine"
	"querycache/streaming/eventbridge"
	"querycache/transport"
)

// ProvideLogger builds a zap.Logger matching the environment, per the
// teacher's infrastructure/di.ProvideLogger.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig loads the default AWS SDK config for cfg.AWSRegion.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}

// ProvideDynamoDBClient builds a DynamoDB client from awsCfg.
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient builds an EventBridge client from awsCfg.
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient builds a CloudWatch client from awsCfg.
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideKV selects the KV delegate: an in-memory store for
// development (and tests built against this constructor), DynamoDB
// otherwise.
func ProvideKV(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) querystore.KV {
	if cfg.IsDevelopment() {
		return memkv.New()
	}
	return dynamokv.New(client, cfg.DynamoDBTable, logger)
}

// ProvideChannel selects the query store's writer/reader transport: an
// in-process buffered channel for development, EventBridge otherwise
// for cross-process writer/reader splits.
func ProvideChannel(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) querystore.Channel {
	if cfg.IsDevelopment() {
		return querystore.NewLocalChannel(256)
	}
	return eventbridge.New(client, cfg.EventBusName, "querycache", "QueryStoreMessage", logger)
}

// ProvideTokenSource builds a bearer-token signer for outgoing fetches
// when cfg.JWTSecret is configured; nil disables injection.
func ProvideTokenSource(cfg *config.Config) transport.TokenSource {
	if cfg.JWTSecret == "" {
		return nil
	}
	return &transport.SigningTokenSource{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Subject:  "querycache-client",
		Audience: "querycache-api",
		TTL:      5 * time.Minute,
	}
}

// ProvideRateLimiter builds the client-side token bucket throttling
// outgoing fetches.
func ProvideRateLimiter() auth.RateLimiter {
	return auth.NewTokenBucketLimiter(100, time.Minute)
}

// ProvideTracer builds the X-Ray tracer wrapping fetch spans.
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("querycache-" + cfg.Environment)
}

// ProvideFetcher builds the production queryengine.Fetcher.
func ProvideFetcher(cfg *config.Config, tokens transport.TokenSource, limiter auth.RateLimiter, tracer *observability.Tracer, logger *zap.Logger) queryengine.Fetcher {
	return transport.New(transport.Config{
		BaseURL:      cfg.ServerAddress,
		Tokens:       tokens,
		RateLimiter:  limiter,
		RateLimitKey: "querycache-client",
		Tracer:       tracer,
		Logger:       logger,
	})
}

// ProvideMetrics builds the CloudWatch metrics recorder when enabled.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewMetrics("QueryCache/"+cfg.Environment, client, logger)
}

// ProvideClientConfig assembles queryclient.Config from the individually
// provided collaborators.
func ProvideClientConfig(
	logger *zap.Logger,
	cfg *config.Config,
	kv querystore.KV,
	channel querystore.Channel,
	fetcher queryengine.Fetcher,
	metrics *observability.Metrics,
) queryclient.Config {
	return queryclient.Config{
		Logger:  logger,
		Cache:   cfg,
		KV:      kv,
		Channel: channel,
		Fetcher: fetcher,
		Metrics: metrics,
	}
}

// ProvideClient builds the final Client.
func ProvideClient(cc queryclient.Config) *queryclient.Client {
	return queryclient.New(cc)
}
