// Command stream-gateway is a server-side push transport for this
// module's streaming.Source seam: browser clients subscribe to entity
// IDs over an API Gateway WebSocket API, and entity patches arriving
// over EventBridge (see querycache/streaming/eventbridge) are forwarded
// to every connection subscribed to that entity.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// connection is one subscribed WebSocket client, keyed by connection ID
// and tagged with the entity it wants patches for. A client that watches
// several entities gets one record per entity, with the entity ID as
// the partition key and the connection ID as the sort key.
type connection struct {
	ConnectionID string    `dynamodbav:"connectionId"`
	EntityID     string    `dynamodbav:"entityId"`
	Endpoint     string    `dynamodbav:"endpoint"`
	ConnectedAt  time.Time `dynamodbav:"connectedAt"`
	TTL          int64     `dynamodbav:"ttl"`
}

const connectionTTL = 24 * time.Hour

// connectionRegistry stores and looks up connections in DynamoDB using a
// PK/SK composite key so a single table serves both access patterns: look
// up every connection for an entity (Query by PK), and remove one
// connection by its ID (DeleteItem by PK+SK) when it goes stale.
type connectionRegistry struct {
	client    *dynamodb.Client
	tableName string
}

func newConnectionRegistry(client *dynamodb.Client, tableName string) *connectionRegistry {
	return &connectionRegistry{client: client, tableName: tableName}
}

func connectionPK(entityID string) string { return fmt.Sprintf("ENTITY#%s", entityID) }
func connectionSK(connID string) string   { return fmt.Sprintf("CONNECTION#%s", connID) }

func (r *connectionRegistry) store(ctx context.Context, c connection) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("stream-gateway: failed to marshal connection: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: connectionPK(c.EntityID)}
	item["SK"] = &types.AttributeValueMemberS{Value: connectionSK(c.ConnectionID)}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.tableName,
		Item:      item,
	})
	return err
}

func (r *connectionRegistry) forEntity(ctx context.Context, entityID string) ([]connection, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &r.tableName,
		KeyConditionExpression: ptr("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: connectionPK(entityID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("stream-gateway: failed to query connections for entity %s: %w", entityID, err)
	}

	conns := make([]connection, 0, len(out.Items))
	for _, item := range out.Items {
		var c connection
		if err := attributevalue.UnmarshalMap(item, &c); err != nil {
			continue
		}
		conns = append(conns, c)
	}
	return conns, nil
}

func (r *connectionRegistry) remove(ctx context.Context, entityID, connID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &r.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: connectionPK(entityID)},
			"SK": &types.AttributeValueMemberS{Value: connectionSK(connID)},
		},
	})
	return err
}

func ptr(s string) *string { return &s }
