// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type (
	// AMQPChannel defines the interface for a RabbitMQ channel.
	// It abstracts the operations the broker wrapper performs on a channel:
	// declaring and purging queues, publishing and consuming messages.
	AMQPChannel interface {
		// QueueDeclare declares a queue on the channel.
		// The queue will be created if it doesn't already exist.
		QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)

		// QueueDeclarePassive asserts that a queue exists without modifying it.
		// The returned queue carries the current message and consumer counts.
		QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)

		// QueuePurge removes all messages from the named queue and returns
		// the number of messages removed.
		QueuePurge(name string, noWait bool) (int, error)

		// Consume starts delivering messages from a queue.
		// Returns a channel of delivered messages and any error encountered.
		Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)

		// Cancel stops deliveries to the consumer with the given tag.
		// Unacknowledged deliveries are requeued by the server.
		Cancel(consumer string, noWait bool) error

		// Publish publishes a message to an exchange.
		Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error

		// Qos controls how many deliveries the server keeps in flight for
		// consumers on this channel before requiring acknowledgments.
		Qos(prefetchCount, prefetchSize int, global bool) error

		// IsClosed reports whether the channel has been closed.
		IsClosed() bool

		// Close closes the channel.
		Close() error
	}
)

// dial is a variable that holds the function to establish a connection to RabbitMQ.
// It allows for mocking in tests.
var dial = func(connectionString string) (RMQConnection, error) {
	return amqp.Dial(connectionString)
}

// NewConnection creates a new RabbitMQ connection and channel.
// It establishes a connection to the RabbitMQ server using the provided
// connection string, then creates a channel on that connection.
// Returns the connection, channel, and any error encountered.
func NewConnection(connectionString string) (RMQConnection, AMQPChannel, error) {
	logrus.Debug("remoteops connecting to rabbitmq...")
	conn, err := dial(connectionString)
	if err != nil {
		logrus.WithError(err).Error("remoteops failure to connect to the broker")
		return nil, nil, brokerDialError(err)
	}
	logrus.Debug("remoteops connected to rabbitmq")

	logrus.Debug("remoteops creating amqp channel...")
	ch, err := conn.Channel()
	if err != nil {
		logrus.WithError(err).Error("remoteops failure to establish the channel")
		return nil, nil, getChannelError(err)
	}
	logrus.Debug("remoteops created amqp channel")

	return conn, ch, nil
}
