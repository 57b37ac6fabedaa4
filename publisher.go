// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type (
	// Publisher defines an interface for publishing JSON messages to RabbitMQ.
	Publisher interface {
		// SimplePublish sends a message directly to a target queue through the
		// default exchange. The message is marshaled to JSON.
		SimplePublish(ctx context.Context, target string, msg any) error

		// Publish sends a message to the given exchange with an optional
		// routing key. The message is marshaled to JSON.
		Publish(ctx context.Context, exchange, key string, msg any) error
	}

	// publisher is the concrete implementation of the Publisher interface.
	// It handles marshaling messages, setting headers, and publishing to RabbitMQ.
	publisher struct {
		appName string
		channel AMQPChannel
	}
)

// JsonContentType is the MIME type used for JSON message content.
const (
	JsonContentType = "application/json"
)

// NewPublisher creates a new publisher instance with the provided app name and AMQP channel.
func NewPublisher(appName string, channel AMQPChannel) Publisher {
	return &publisher{appName, channel}
}

// SimplePublish publishes a message directly to a target queue.
// The exchange is left empty, which means the default exchange is used and the
// queue name acts as the routing key.
func (p *publisher) SimplePublish(ctx context.Context, target string, msg any) error {
	return p.publish(ctx, "", target, msg)
}

// Publish publishes a message to a specified exchange with optional routing key.
// Returns an error if publishing fails or if the exchange name is empty.
func (p *publisher) Publish(ctx context.Context, exchange, key string, msg any) error {
	if exchange == "" {
		logrus.WithContext(ctx).Error("remoteops exchange cannot be empty")
		return fmt.Errorf("exchange cannot be empty")
	}

	return p.publish(ctx, exchange, key, msg)
}

// publish is the internal method that handles the details of publishing a message.
// It marshals the message to JSON, sets headers for tracing, and publishes to RabbitMQ.
func (p *publisher) publish(ctx context.Context, exchange, key string, msg any) error {
	byt, err := json.Marshal(msg)
	if err != nil {
		logrus.WithContext(ctx).WithError(err).Error("remoteops publisher marshal")
		return err
	}

	headers := amqp.Table{}
	AMQPPropagator.Inject(ctx, AMQPHeader(headers))

	mID, err := uuid.NewV7()
	if err != nil {
		mID = uuid.New()
	}

	return p.channel.Publish(exchange, key, false, false, amqp.Publishing{
		Headers:     headers,
		Type:        fmt.Sprintf("%T", msg),
		ContentType: JsonContentType,
		MessageId:   mID.String(),
		AppId:       p.appName,
		Body:        byt,
	})
}
