// Package dynamokv is the DynamoDB-backed KV adapter, normally paired
// with an AsyncStore so the writer goroutine is the only caller ever
// touching the table: one item per key, fields marshaled with
// attributevalue, point reads/writes via GetItem/PutItem/DeleteItem.
package dynamokv

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

type item struct {
	PK     string   `dynamodbav:"PK"`
	Str    *string  `dynamodbav:"Str,omitempty"`
	Num    *float64 `dynamodbav:"Num,omitempty"`
	Buf    []uint32 `dynamodbav:"Buf,omitempty"`
	HasBuf bool     `dynamodbav:"HasBuf,omitempty"`
}

// KV is a DynamoDB-backed implementation of querystore.KV storing one
// item per key in a single table.
type KV struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// New builds a KV against tableName using client.
func New(client *dynamodb.Client, tableName string, logger *zap.Logger) *KV {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KV{client: client, tableName: tableName, logger: logger}
}

func (k *KV) getItem(ctx context.Context, key string) (*item, error) {
	out, err := k.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(k.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (k *KV) Has(ctx context.Context, key string) (bool, error) {
	it, err := k.getItem(ctx, key)
	if err != nil {
		return false, err
	}
	return it != nil, nil
}

func (k *KV) GetString(ctx context.Context, key string) (string, bool, error) {
	it, err := k.getItem(ctx, key)
	if err != nil {
		return "", false, err
	}
	if it == nil || it.Str == nil {
		return "", false, nil
	}
	return *it.Str, true, nil
}

func (k *KV) GetNumber(ctx context.Context, key string) (float64, bool, error) {
	it, err := k.getItem(ctx, key)
	if err != nil {
		return 0, false, err
	}
	if it == nil || it.Num == nil {
		return 0, false, nil
	}
	return *it.Num, true, nil
}

func (k *KV) GetBuffer(ctx context.Context, key string) ([]uint32, bool, error) {
	it, err := k.getItem(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if it == nil || !it.HasBuf {
		return nil, false, nil
	}
	return it.Buf, true, nil
}

func (k *KV) putItem(ctx context.Context, it *item) error {
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return err
	}
	_, err = k.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(k.tableName),
		Item:      av,
	})
	return err
}

func (k *KV) SetString(ctx context.Context, key string, value string) error {
	return k.putItem(ctx, &item{PK: key, Str: &value})
}

func (k *KV) SetNumber(ctx context.Context, key string, value float64) error {
	return k.putItem(ctx, &item{PK: key, Num: &value})
}

func (k *KV) SetBuffer(ctx context.Context, key string, value []uint32) error {
	return k.putItem(ctx, &item{PK: key, Buf: value, HasBuf: true})
}

func (k *KV) Delete(ctx context.Context, key string) error {
	_, err := k.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(k.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key},
		},
	})
	return err
}
