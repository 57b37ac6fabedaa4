// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type (
	// ConnectionManager manages RabbitMQ connections and channels with automatic reconnection.
	// It monitors channel and connection health using NotifyClose and NotifyCancel.
	ConnectionManager interface {
		// GetConnection returns the current connection, ensuring it's healthy.
		GetConnection() (RMQConnection, error)

		// GetChannel returns the current channel, ensuring it's healthy.
		GetChannel() (AMQPChannel, error)

		GetConnectionString() string

		// Close gracefully closes the connection manager.
		Close() error

		// IsHealthy checks if both connection and channel are healthy.
		IsHealthy() bool

		// SetReconnectCallback sets a callback function that's called when reconnection occurs.
		SetReconnectCallback(callback func(conn RMQConnection, ch AMQPChannel))

		// Qos controls how many messages the server will keep in flight for
		// consumers on the managed channel before receiving delivery acks.
		Qos(prefetchCount, prefetchSize int, global bool) error
	}

	// connectionManager implements ConnectionManager with automatic reconnection capabilities.
	connectionManager struct {
		connectionString  string
		appName           string
		conn              RMQConnection
		ch                AMQPChannel
		mu                sync.RWMutex
		closed            bool
		reconnectCallback func(RMQConnection, AMQPChannel)

		maxReconnectAttempts int
		reconnectDelay       time.Duration
		reconnectBackoffMax  time.Duration

		// Channels for monitoring connection/channel health
		connCloseNotify chan *amqp.Error
		chCloseNotify   chan *amqp.Error
		chCancelNotify  chan string

		ctx    context.Context
		cancel context.CancelFunc
	}

	// ReconnectionConfig holds configuration for reconnection behavior.
	ReconnectionConfig struct {
		MaxAttempts  int           // Maximum reconnection attempts (0 = infinite)
		InitialDelay time.Duration // Initial delay between reconnection attempts
		BackoffMax   time.Duration // Maximum delay between attempts
	}
)

// DefaultReconnectionConfig provides sensible defaults for reconnection behavior.
var DefaultReconnectionConfig = ReconnectionConfig{
	MaxAttempts:  0,
	InitialDelay: time.Second * 2,
	BackoffMax:   time.Minute * 5,
}

// NewConnectionManager creates a new connection manager with automatic reconnection.
func NewConnectionManager(appName, connectionString string, config ...ReconnectionConfig) (ConnectionManager, error) {
	cfg := DefaultReconnectionConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	ctx, cancel := context.WithCancel(context.Background())

	cm := &connectionManager{
		connectionString:     connectionString,
		appName:              appName,
		maxReconnectAttempts: cfg.MaxAttempts,
		reconnectDelay:       cfg.InitialDelay,
		reconnectBackoffMax:  cfg.BackoffMax,
		ctx:                  ctx,
		cancel:               cancel,
	}

	if err := cm.connect(); err != nil {
		cancel()
		return nil, err
	}

	go cm.monitor()

	return cm, nil
}

// connect establishes connection and channel, setting up health monitoring.
func (cm *connectionManager) connect() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	logrus.Debug("remoteops establishing broker connection...")

	conn, ch, err := NewConnection(cm.connectionString)
	if err != nil {
		logrus.WithError(err).Error("remoteops failed to establish connection")
		return err
	}

	cm.setupNotificationChannels(conn, ch)

	cm.conn = conn
	cm.ch = ch

	logrus.Debug("remoteops broker connection established")

	if cm.reconnectCallback != nil {
		cm.reconnectCallback(conn, ch)
	}

	return nil
}

// setupNotificationChannels configures NotifyClose and NotifyCancel monitoring.
func (cm *connectionManager) setupNotificationChannels(conn RMQConnection, ch AMQPChannel) {
	if amqpConn, ok := conn.(*amqp.Connection); ok {
		cm.connCloseNotify = make(chan *amqp.Error, 1)
		amqpConn.NotifyClose(cm.connCloseNotify)
	}

	if amqpCh, ok := ch.(*amqp.Channel); ok {
		cm.chCloseNotify = make(chan *amqp.Error, 1)
		cm.chCancelNotify = make(chan string, 1)

		amqpCh.NotifyClose(cm.chCloseNotify)
		amqpCh.NotifyCancel(cm.chCancelNotify)
	}
}

// monitor runs in a goroutine to watch for connection/channel issues.
func (cm *connectionManager) monitor() {
	for {
		select {
		case <-cm.ctx.Done():
			logrus.Debug("remoteops connection manager stopped")
			return

		case err := <-cm.connCloseNotify:
			if err != nil {
				logrus.WithError(err).Warn("remoteops connection closed unexpectedly")
				cm.handleConnectionFailure()
			}

		case err := <-cm.chCloseNotify:
			if err != nil {
				logrus.WithError(err).Warn("remoteops channel closed unexpectedly")
				cm.handleChannelFailure()
			}

		case consumerTag := <-cm.chCancelNotify:
			logrus.WithField("consumerTag", consumerTag).Warn("remoteops consumer cancelled by the server")
			cm.handleChannelFailure()
		}
	}
}

// handleChannelFailure attempts to recreate the channel while keeping the connection.
func (cm *connectionManager) handleChannelFailure() {
	cm.mu.Lock()

	if cm.closed {
		cm.mu.Unlock()
		return
	}

	logrus.Debug("remoteops attempting to recreate channel...")

	connHealthy := cm.conn != nil && !cm.conn.IsClosed()
	if !connHealthy {
		cm.mu.Unlock()
		cm.handleConnectionFailure()
		return
	}

	newCh, err := cm.conn.Channel()
	if err != nil {
		logrus.WithError(err).Error("remoteops failed to recreate channel, will reconnect completely")
		cm.mu.Unlock()
		cm.handleConnectionFailure()
		return
	}

	cm.setupChannelNotifications(newCh)
	cm.ch = newCh
	cm.mu.Unlock()

	logrus.Debug("remoteops channel recreated")

	if cm.reconnectCallback != nil {
		cm.reconnectCallback(cm.conn, cm.ch)
	}
}

// setupChannelNotifications sets up only channel-specific notifications.
func (cm *connectionManager) setupChannelNotifications(ch *amqp.Channel) {
	cm.chCloseNotify = make(chan *amqp.Error, 1)
	cm.chCancelNotify = make(chan string, 1)

	ch.NotifyClose(cm.chCloseNotify)
	ch.NotifyCancel(cm.chCancelNotify)
}

// handleConnectionFailure attempts full reconnection with exponential backoff.
func (cm *connectionManager) handleConnectionFailure() {
	cm.mu.Lock()
	cm.closed = true
	cm.mu.Unlock()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cm.reconnectDelay
	bo.MaxInterval = cm.reconnectBackoffMax
	bo.MaxElapsedTime = 0

	attempt := 0
	for {
		select {
		case <-cm.ctx.Done():
			return
		default:
		}

		attempt++

		if cm.maxReconnectAttempts > 0 && attempt > cm.maxReconnectAttempts {
			logrus.Errorf("remoteops exceeded maximum reconnection attempts (%d)", cm.maxReconnectAttempts)
			return
		}

		delay := bo.NextBackOff()
		logrus.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Warn("remoteops attempting reconnection...")

		select {
		case <-cm.ctx.Done():
			return
		case <-time.After(delay):
		}

		if err := cm.connect(); err != nil {
			logrus.WithError(err).WithField("attempt", attempt).Error("remoteops reconnection failed")
			continue
		}

		cm.mu.Lock()
		cm.closed = false
		cm.mu.Unlock()

		logrus.WithField("attempt", attempt).Info("remoteops reconnection successful")
		return
	}
}

func (cm *connectionManager) GetConnectionString() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.closed {
		return ""
	}

	return cm.connectionString
}

// GetConnection returns the current connection, ensuring it's healthy.
func (cm *connectionManager) GetConnection() (RMQConnection, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.closed {
		return nil, ManagerClosedError
	}

	if cm.conn == nil || cm.conn.IsClosed() {
		return nil, ConnectionUnavailableError
	}

	return cm.conn, nil
}

// GetChannel returns the current channel, ensuring it's healthy.
func (cm *connectionManager) GetChannel() (AMQPChannel, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.closed {
		return nil, ManagerClosedError
	}

	if cm.ch == nil || cm.ch.IsClosed() {
		return nil, ChannelUnavailableError
	}

	return cm.ch, nil
}

// IsHealthy checks if both connection and channel are healthy.
func (cm *connectionManager) IsHealthy() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.closed {
		return false
	}

	return cm.conn != nil && !cm.conn.IsClosed() &&
		cm.ch != nil && !cm.ch.IsClosed()
}

// SetReconnectCallback sets a callback function that's called when reconnection occurs.
func (cm *connectionManager) SetReconnectCallback(callback func(conn RMQConnection, ch AMQPChannel)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.reconnectCallback = callback
}

// Close gracefully closes the connection manager.
func (cm *connectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.closed {
		return nil
	}

	cm.closed = true
	cm.cancel()

	var err error
	if cm.ch != nil && !cm.ch.IsClosed() {
		if closeErr := cm.ch.Close(); closeErr != nil {
			logrus.WithError(closeErr).Error("remoteops error closing channel")
			err = closeErr
		}
	}

	if cm.conn != nil && !cm.conn.IsClosed() {
		if closeErr := cm.conn.Close(); closeErr != nil {
			logrus.WithError(closeErr).Error("remoteops error closing connection")
			err = closeErr
		}
	}

	logrus.Debug("remoteops connection manager closed")
	return err
}

func (cm *connectionManager) Qos(prefetchCount, prefetchSize int, global bool) error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.closed {
		return ManagerClosedError
	}

	if cm.ch == nil || cm.ch.IsClosed() {
		return ChannelUnavailableError
	}

	return cm.ch.Qos(prefetchCount, prefetchSize, global)
}
