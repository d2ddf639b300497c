// Package eventbridge adapts AWS EventBridge into this module's two
// streaming seams: querystore.Channel (writer/reader split across
// processes) and streaming.Source (entity push subscriptions), using
// one PutEvents entry per message, with retry. Receipt-side delivery is driven by
// whatever Lambda handler the EventBridge rule targets, calling Dispatch
// with the raw detail payload — EventBridge subscriptions are configured
// out of band, so there is no client-side subscribe/unsubscribe call.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"querycache/querystore"
)

// Channel implements querystore.Channel over EventBridge PutEvents for
// the send side; Dispatch must be wired to an inbound Lambda handler (or
// local test harness) for the receive side, since EventBridge itself
// delivers asynchronously through rules, not a pull API.
type Channel struct {
	client       *awseventbridge.Client
	eventBusName string
	source       string
	detailType   string
	logger       *zap.Logger
	handler      func(querystore.Message)
}

// New builds a Channel publishing to eventBusName under source, tagging
// every entry with detailType so a single EventBridge rule can route
// query-store messages to this module's reader Lambda.
func New(client *awseventbridge.Client, eventBusName, source, detailType string, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{client: client, eventBusName: eventBusName, source: source, detailType: detailType, logger: logger}
}

// Connect implements querystore.Channel.
func (c *Channel) Connect(handler func(querystore.Message)) querystore.Sender {
	c.handler = handler
	return channelSender{c}
}

// Dispatch decodes a raw EventBridge detail payload and invokes the
// connected handler. Call this from the Lambda entrypoint subscribed to
// this channel's detailType.
func (c *Channel) Dispatch(raw []byte) error {
	var msg querystore.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("eventbridge: failed to decode message: %w", err)
	}
	msg.Reply = nil // never valid across a process boundary
	if c.handler != nil {
		c.handler(msg)
	}
	return nil
}

type channelSender struct{ c *Channel }

// Send publishes msg as a single EventBridge PutEvents entry with
// bounded retry. Errors are logged rather than returned: querystore.Sender
// has no error return, matching the async, fire-and-forget contract
// every AsyncStore reader already assumes for its forwarded writes.
func (s channelSender) Send(msg querystore.Message) {
	msg.Reply = nil
	if err := s.c.publishWithRetry(context.Background(), msg); err != nil {
		s.c.logger.Error("failed to publish query store message", zap.Error(err))
	}
}

func (c *Channel) publishWithRetry(ctx context.Context, msg querystore.Message) error {
	const maxRetries = 3
	backoff := 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := c.publish(ctx, msg); err != nil {
			lastErr = err
			if attempt < maxRetries-1 {
				select {
				case <-time.After(backoff):
					backoff *= 2
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("eventbridge: failed to publish after %d attempts: %w", maxRetries, lastErr)
}

func (c *Channel) publish(ctx context.Context, msg querystore.Message) error {
	detail, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("eventbridge: failed to marshal message: %w", err)
	}

	_, err = c.client.PutEvents(ctx, &awseventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(c.eventBusName),
			Source:       aws.String(c.source),
			DetailType:   aws.String(c.detailType),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(time.Now()),
		}},
	})
	return err
}
