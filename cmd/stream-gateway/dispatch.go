package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"
)

// entityPatch is the EventBridge detail payload for one entity's push
// update, the same wire shape querycache/streaming/eventbridge.Source
// decodes for in-process fan-out; this gateway decodes the identical
// payload and forwards it to WebSocket connections instead.
type entityPatch struct {
	EntityID string                 `json:"entityId"`
	Patch    map[string]interface{} `json:"patch"`
}

// dispatch is triggered by the EventBridge rule that routes entity patch
// events to this Lambda. It looks up every connection subscribed to the
// patched entity and posts the patch to each, pruning connections API
// Gateway reports as gone.
func (g *gateway) dispatch(ctx context.Context, event events.CloudWatchEvent) error {
	var patch entityPatch
	if err := json.Unmarshal(event.Detail, &patch); err != nil {
		return fmt.Errorf("stream-gateway: failed to decode entity patch: %w", err)
	}
	return g.dispatchPatch(ctx, patch)
}

func (g *gateway) dispatchPatch(ctx context.Context, patch entityPatch) error {
	conns, err := g.connections.forEntity(ctx, patch.EntityID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("stream-gateway: failed to marshal patch: %w", err)
	}

	byEndpoint := make(map[string][]connection)
	for _, c := range conns {
		byEndpoint[c.Endpoint] = append(byEndpoint[c.Endpoint], c)
	}

	for endpoint, group := range byEndpoint {
		client := g.apiGatewayClient(endpoint)
		for _, c := range group {
			if err := g.sendToConnection(ctx, client, c, payload); err != nil {
				g.logger.Warn("failed to push patch to connection", zap.Error(err), zap.String("connectionId", c.ConnectionID))
			}
		}
	}
	return nil
}

func (g *gateway) apiGatewayClient(endpoint string) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(g.awsConfig, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
}

func (g *gateway) sendToConnection(ctx context.Context, client *apigatewaymanagementapi.Client, c connection, payload []byte) error {
	_, err := client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(c.ConnectionID),
		Data:         payload,
	})
	if err == nil {
		return nil
	}

	var gone *apigwTypes.GoneException
	if errors.As(err, &gone) {
		g.logger.Info("pruning stale connection", zap.String("connectionId", c.ConnectionID))
		if rmErr := g.connections.remove(ctx, c.EntityID, c.ConnectionID); rmErr != nil {
			g.logger.Warn("failed to remove stale connection", zap.Error(rmErr))
		}
		return nil
	}
	return err
}
