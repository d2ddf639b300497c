package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// onConnect stores one connection record per entity the client asked to
// watch, taken from the "entityId" query string parameter, on $connect.
// A real deployment would also validate a bearer token here; this
// gateway assumes that check already happened at the API Gateway
// authorizer layer.
func (g *gateway) onConnect(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	entityID := req.QueryStringParameters["entityId"]
	if entityID == "" {
		return events.APIGatewayProxyResponse{StatusCode: 400, Body: "missing entityId query parameter"}, nil
	}

	endpoint := "https://" + req.RequestContext.DomainName + "/" + req.RequestContext.Stage
	c := connection{
		ConnectionID: connID,
		EntityID:     entityID,
		Endpoint:     endpoint,
		ConnectedAt:  time.Now(),
		TTL:          time.Now().Add(connectionTTL).Unix(),
	}

	if err := g.connections.store(ctx, c); err != nil {
		g.logger.Error("failed to store connection", zap.Error(err), zap.String("connectionId", connID))
		return events.APIGatewayProxyResponse{StatusCode: 500, Body: "failed to store connection"}, nil
	}

	g.logger.Info("connection subscribed", zap.String("connectionId", connID), zap.String("entityId", entityID))
	return events.APIGatewayProxyResponse{StatusCode: 200, Body: "connected"}, nil
}

// onDisconnect removes the connection's record so dispatch no longer
// tries to push to it. API Gateway does not tell us which entity a
// disconnecting connection was subscribed to, so the caller must have
// recorded it; this gateway requires the client to also pass entityId on
// $disconnect for symmetry with $connect.
func (g *gateway) onDisconnect(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	entityID := req.QueryStringParameters["entityId"]
	if entityID != "" {
		if err := g.connections.remove(ctx, entityID, connID); err != nil {
			g.logger.Warn("failed to remove connection", zap.Error(err), zap.String("connectionId", connID))
		}
	}
	return events.APIGatewayProxyResponse{StatusCode: 200, Body: "disconnected"}, nil
}
