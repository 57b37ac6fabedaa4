// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type (
	// BrokerConfig holds the connection parameters for a RabbitMQ broker.
	BrokerConfig struct {
		Host     string
		Port     int
		VHost    string
		User     string
		Password string

		// Name is an optional display name used by String.
		Name string

		// AuditLogPath journals every broker call as a JSON record when set.
		AuditLogPath string

		// Heartbeat is negotiated with the server, 60s when zero.
		Heartbeat time.Duration

		// PollInterval is the sleep between count polls in the wait helpers,
		// 30s when zero.
		PollInterval time.Duration
	}

	// Broker wraps a RabbitMQ connection for operational scripting: counting,
	// purging, reading, and writing JSON messages on named queues. The
	// connection is established at construction and kept for the object's
	// lifetime with automatic reconnection.
	Broker struct {
		config  BrokerConfig
		manager ConnectionManager
		audit   *auditLog
		tracer  trace.Tracer
	}
)

const brokerAppName = "remoteops"

// URL renders the amqp connection string for the configuration.
func (c BrokerConfig) URL() string {
	heartbeat := c.Heartbeat
	if heartbeat == 0 {
		heartbeat = 60 * time.Second
	}

	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s?heartbeat=%d",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.PathEscape(c.VHost),
		int(heartbeat.Seconds()),
	)
}

func (c BrokerConfig) pollInterval() time.Duration {
	if c.PollInterval == 0 {
		return 30 * time.Second
	}
	return c.PollInterval
}

// NewBroker connects to the broker and returns the wrapper. The connection is
// verified before returning, mirroring the construction-time connection test
// of the wait helpers' callers.
func NewBroker(config BrokerConfig) (*Broker, error) {
	manager, err := NewConnectionManager(brokerAppName, config.URL())
	if err != nil {
		logrus.WithError(err).Error("remoteops broker connection test failed")
		return nil, err
	}

	b := NewBrokerWithManager(config, manager)
	b.audit.record("init", nil)
	return b, nil
}

// NewBrokerWithManager wraps an existing connection manager. It is useful for
// callers that share one manager across wrappers, and for tests.
func NewBrokerWithManager(config BrokerConfig, manager ConnectionManager) *Broker {
	return &Broker{
		config:  config,
		manager: manager,
		audit: newAuditLog(config.AuditLogPath, logrus.Fields{
			"host":  config.Host,
			"port":  config.Port,
			"vhost": config.VHost,
			"user":  config.User,
		}),
		tracer: otel.Tracer("remoteops-broker"),
	}
}

// String renders Broker<[name]=user@host:port/vhost>.
func (b *Broker) String() string {
	if b.config.Name == "" {
		return fmt.Sprintf("Broker<%s@%s:%d/%s>",
			b.config.User, b.config.Host, b.config.Port, b.config.VHost)
	}
	return fmt.Sprintf("Broker<[%s]=%s@%s:%d/%s>",
		b.config.Name, b.config.User, b.config.Host, b.config.Port, b.config.VHost)
}

// Close shuts down the underlying connection manager.
func (b *Broker) Close() error {
	return b.manager.Close()
}

// Declare creates the given queues on the broker.
func (b *Broker) Declare(ctx context.Context, defs ...*QueueDefinition) error {
	ch, err := b.manager.GetChannel()
	if err != nil {
		return err
	}

	for _, def := range defs {
		if _, err := ch.QueueDeclare(def.name, def.durable, def.delete, def.exclusive, false, nil); err != nil {
			logrus.WithContext(ctx).WithError(err).Errorf("remoteops failure to declare queue: %s", def.name)
			return err
		}
	}

	return nil
}

// Count returns the total number of messages across the named queues. Each
// queue is asserted with a passive durable declare, so a missing queue is an
// error rather than an implicit creation.
func (b *Broker) Count(ctx context.Context, queues ...string) (int, error) {
	b.audit.record("count", logrus.Fields{"queues": queues})

	ch, err := b.manager.GetChannel()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, queue := range queues {
		q, err := ch.QueueDeclarePassive(queue, true, false, false, false, nil)
		if err != nil {
			logrus.WithContext(ctx).WithError(err).Errorf("remoteops failure to inspect queue: %s", queue)
			return 0, err
		}
		count += q.Messages
	}

	return count, nil
}

// Purge removes all messages from the named queues and returns the number removed.
func (b *Broker) Purge(ctx context.Context, queues ...string) (int, error) {
	b.audit.record("purge", logrus.Fields{"queues": queues})
	logrus.WithContext(ctx).Infof("remoteops purging all messages from <%s>", strings.Join(queues, ","))

	ch, err := b.manager.GetChannel()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, queue := range queues {
		n, err := ch.QueuePurge(queue, false)
		if err != nil {
			logrus.WithContext(ctx).WithError(err).Errorf("remoteops failure to purge queue: %s", queue)
			return removed, err
		}
		removed += n
	}

	return removed, nil
}

// ReadJSON consumes up to n messages from the queue and decodes each body as
// JSON. A negative n reads everything the queue currently holds. By default
// messages are peeked: they stay unacknowledged and requeue once the consumer
// is cancelled. The Pop option acknowledges as it reads. A read ends early
// when the queue stays idle past the configured inactivity timeout.
func (b *Broker) ReadJSON(ctx context.Context, queue string, n int, opts *ReadOptions) ([]json.RawMessage, error) {
	if opts == nil {
		opts = NewReadOptions()
	}

	total, err := b.Count(ctx, queue)
	if err != nil {
		return nil, err
	}

	numToRead := total
	if n >= 0 {
		if n > total {
			logrus.WithContext(ctx).Warnf(
				"remoteops reading %d messages from <%s> holding %d, blocking until enough arrive or the queue idles",
				n, queue, total)
		}
		numToRead = n
	}

	if opts.pop {
		logrus.WithContext(ctx).Infof("remoteops popping %d messages from <%s> (total %d)", numToRead, queue, total)
	} else {
		logrus.WithContext(ctx).Infof("remoteops peeking at %d messages in <%s> (total %d)", numToRead, queue, total)
	}

	b.audit.record("read_json", logrus.Fields{
		"queue":       queue,
		"n":           n,
		"num_to_read": numToRead,
		"pop":         opts.pop,
	})

	ch, err := b.manager.GetChannel()
	if err != nil {
		return nil, err
	}

	consumerTag := fmt.Sprintf("remoteops-read-%s", uuid.NewString())
	deliveries, err := ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		logrus.WithContext(ctx).WithError(err).Errorf("remoteops failure to consume from queue: %s", queue)
		return nil, err
	}
	// Cancelling the consumer requeues everything left unacknowledged.
	defer func() {
		if cancelErr := ch.Cancel(consumerTag, false); cancelErr != nil {
			logrus.WithContext(ctx).WithError(cancelErr).Warn("remoteops failure to cancel read consumer")
		}
	}()

	idle := time.NewTimer(opts.inactivityTimeout)
	defer idle.Stop()

	messages := make([]json.RawMessage, 0, numToRead)
	for len(messages) < numToRead {
		select {
		case <-ctx.Done():
			return messages, ctx.Err()

		case <-idle.C:
			logrus.WithContext(ctx).Debugf("remoteops queue <%s> idle, ending read with %d messages", queue, len(messages))
			return messages, nil

		case delivery, ok := <-deliveries:
			if !ok {
				return messages, nil
			}

			msgCtx, span := NewConsumerSpan(b.tracer, delivery.Headers, delivery.Type)

			if !json.Valid(delivery.Body) {
				span.End()
				return messages, fmt.Errorf("message %s on queue %s is not valid JSON", delivery.MessageId, queue)
			}

			body := make(json.RawMessage, len(delivery.Body))
			copy(body, delivery.Body)
			messages = append(messages, body)

			if opts.pop {
				if err := delivery.Ack(false); err != nil {
					span.End()
					logrus.WithContext(msgCtx).WithError(err).Error("remoteops failure to ack message")
					return messages, err
				}
			}
			span.End()

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(opts.inactivityTimeout)
		}
	}

	return messages, nil
}

// WriteJSON publishes each message JSON-encoded to the queue through the
// default exchange and returns the number inserted.
func (b *Broker) WriteJSON(ctx context.Context, queue string, msgs ...any) (int, error) {
	b.audit.record("write_json", logrus.Fields{"queue": queue, "messages": len(msgs)})

	ch, err := b.manager.GetChannel()
	if err != nil {
		return 0, err
	}

	pub := NewPublisher(brokerAppName, ch)

	inserted := 0
	for _, msg := range msgs {
		if err := pub.SimplePublish(ctx, queue, msg); err != nil {
			logrus.WithContext(ctx).WithError(err).Errorf("remoteops failure to publish to queue: %s", queue)
			return inserted, err
		}
		inserted++
	}

	return inserted, nil
}

// WaitUntilReady polls the combined count of the named queues until it equals
// target, logging the elapsed time and an estimate of the time remaining.
func (b *Broker) WaitUntilReady(ctx context.Context, target int, queues ...string) error {
	if target < 0 {
		return fmt.Errorf("target count must not be negative: %d", target)
	}

	b.audit.record("wait_until_ready", logrus.Fields{"queues": queues, "target": target})

	state := "empty"
	if target > 0 {
		state = "ready"
	}

	started := time.Now()
	estimator := NewRemainingEstimator(strings.Join(queues, ","))

	for {
		count, err := b.Count(ctx, queues...)
		if err != nil {
			return err
		}

		remaining := estimator.Update(count - target)
		entry := logrus.WithContext(ctx).WithFields(logrus.Fields{
			"elapsed": FormatSeconds(time.Since(started).Seconds()),
			"len":     count,
		})
		if remaining >= 0 {
			entry = entry.WithField("remaining", FormatSeconds(remaining))
		}
		entry.Infof("remoteops waiting for <%s> to be %s...", strings.Join(queues, ","), state)

		if count == target {
			return nil
		}
		if count < target {
			logrus.WithContext(ctx).Warnf("remoteops queue count for <%s> diverging from %d",
				strings.Join(queues, ","), target)
		}

		if err := sleepContext(ctx, b.config.pollInterval()); err != nil {
			return err
		}
	}
}

// WaitUntilStable polls the combined count of the named queues until two
// consecutive polls agree, then returns the stable count.
func (b *Broker) WaitUntilStable(ctx context.Context, queues ...string) (int, error) {
	b.audit.record("wait_until_stable", logrus.Fields{"queues": queues})

	started := time.Now()

	prev := -1
	curr, err := b.Count(ctx, queues...)
	if err != nil {
		return 0, err
	}

	for prev != curr {
		logrus.WithContext(ctx).WithFields(logrus.Fields{
			"elapsed": FormatSeconds(time.Since(started).Seconds()),
			"len":     curr,
		}).Infof("remoteops waiting for <%s> to stabilize...", strings.Join(queues, ","))

		if err := sleepContext(ctx, b.config.pollInterval()); err != nil {
			return 0, err
		}

		prev = curr
		if curr, err = b.Count(ctx, queues...); err != nil {
			return 0, err
		}
	}

	return curr, nil
}

// sleepContext sleeps for d unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
