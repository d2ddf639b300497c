package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// gateway holds the clients this Lambda's handlers share across warm
// invocations, grouped behind one struct instead of init()-populated
// package-level globals.
type gateway struct {
	connections *connectionRegistry
	awsConfig   aws.Config
	logger      *zap.Logger
}

func newGateway(ctx context.Context) (*gateway, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}

	tableName := os.Getenv("CONNECTIONS_TABLE")
	if tableName == "" {
		tableName = "stream-gateway-connections"
	}

	return &gateway{
		connections: newConnectionRegistry(dynamodb.NewFromConfig(awsCfg), tableName),
		awsConfig:   awsCfg,
		logger:      logger,
	}, nil
}

// connectHandler dispatches $connect and $disconnect route keys to the
// matching gateway method, the way a single API Gateway WebSocket
// integration routes both events to one Lambda.
func (g *gateway) connectHandler(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch req.RequestContext.RouteKey {
	case "$disconnect":
		return g.onDisconnect(ctx, req)
	default:
		return g.onConnect(ctx, req)
	}
}

// main selects which Lambda entrypoint this binary serves from the
// HANDLER_MODE env var, set per deployed function rather than splitting into two
// separate binaries, since both handlers share the connectionRegistry
// and AWS config plumbing.
func main() {
	ctx := context.Background()
	g, err := newGateway(ctx)
	if err != nil {
		panic(err)
	}
	defer g.logger.Sync()

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") == "" {
		g.logger.Info("stream-gateway running in local test mode; no Lambda runtime detected")
		return
	}

	switch os.Getenv("HANDLER_MODE") {
	case "dispatch":
		lambda.Start(g.dispatch)
	default:
		lambda.Start(g.connectHandler)
	}
}
