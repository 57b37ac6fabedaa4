// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Test helper to create a working connection manager with mocks
func createMockConnectionManager(t *testing.T, config ...ReconnectionConfig) (*connectionManager, *MockRMQConnection, *MockAMQPChannel) {
	cfg := DefaultReconnectionConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mockConn := NewMockRMQConnection()
	mockCh := NewMockAMQPChannel()

	cm := &connectionManager{
		connectionString:     "amqp://test",
		appName:              "test-app",
		maxReconnectAttempts: cfg.MaxAttempts,
		reconnectDelay:       cfg.InitialDelay,
		reconnectBackoffMax:  cfg.BackoffMax,
		ctx:                  ctx,
		cancel:               cancel,
		conn:                 mockConn,
		ch:                   mockCh,
		closed:               false,
	}

	// Set up notification channels
	cm.connCloseNotify = make(chan *amqp.Error, 1)
	cm.chCloseNotify = make(chan *amqp.Error, 1)
	cm.chCancelNotify = make(chan string, 1)

	return cm, mockConn, mockCh
}

func TestNewConnectionManager_Configuration(t *testing.T) {
	tests := []struct {
		name   string
		config ReconnectionConfig
	}{
		{
			name:   "default configuration",
			config: DefaultReconnectionConfig,
		},
		{
			name: "custom configuration",
			config: ReconnectionConfig{
				MaxAttempts:  5,
				InitialDelay: time.Second,
				BackoffMax:   time.Minute,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Connection creation is hard to mock end to end, so the
			// configuration handling is tested on a directly built manager.
			cm, _, _ := createMockConnectionManager(t, tt.config)

			if cm.maxReconnectAttempts != tt.config.MaxAttempts {
				t.Errorf("Expected MaxAttempts %d but got %d", tt.config.MaxAttempts, cm.maxReconnectAttempts)
			}
			if cm.reconnectDelay != tt.config.InitialDelay {
				t.Errorf("Expected InitialDelay %v but got %v", tt.config.InitialDelay, cm.reconnectDelay)
			}
			if cm.reconnectBackoffMax != tt.config.BackoffMax {
				t.Errorf("Expected BackoffMax %v but got %v", tt.config.BackoffMax, cm.reconnectBackoffMax)
			}
		})
	}
}

func TestConnectionManager_GetConnection(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*connectionManager, *MockRMQConnection)
		expectError bool
		expectedErr error
	}{
		{
			name: "successful get connection",
			setup: func(cm *connectionManager, mockConn *MockRMQConnection) {
				// Connection is healthy by default
			},
			expectError: false,
		},
		{
			name: "connection manager closed",
			setup: func(cm *connectionManager, mockConn *MockRMQConnection) {
				cm.closed = true
			},
			expectError: true,
			expectedErr: ManagerClosedError,
		},
		{
			name: "connection is closed",
			setup: func(cm *connectionManager, mockConn *MockRMQConnection) {
				mockConn.Close()
			},
			expectError: true,
			expectedErr: ConnectionUnavailableError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm, mockConn, _ := createMockConnectionManager(t)
			tt.setup(cm, mockConn)

			conn, err := cm.GetConnection()

			if tt.expectError {
				if err == nil {
					t.Error("GetConnection() should return error")
				}
				if tt.expectedErr != nil && err != tt.expectedErr {
					t.Errorf("GetConnection() error = %v, want %v", err, tt.expectedErr)
				}
				if conn != nil {
					t.Error("GetConnection() should return nil connection on error")
				}
			} else {
				if err != nil {
					t.Errorf("GetConnection() returned unexpected error: %v", err)
				}
				if conn == nil {
					t.Error("GetConnection() returned nil connection")
				}
			}
		})
	}
}

func TestConnectionManager_GetChannel(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*connectionManager, *MockAMQPChannel)
		expectError bool
		expectedErr error
	}{
		{
			name: "successful get channel",
			setup: func(cm *connectionManager, mockCh *MockAMQPChannel) {
				// Channel is healthy by default
			},
			expectError: false,
		},
		{
			name: "connection manager closed",
			setup: func(cm *connectionManager, mockCh *MockAMQPChannel) {
				cm.closed = true
			},
			expectError: true,
			expectedErr: ManagerClosedError,
		},
		{
			name: "channel is closed",
			setup: func(cm *connectionManager, mockCh *MockAMQPChannel) {
				mockCh.Close()
			},
			expectError: true,
			expectedErr: ChannelUnavailableError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm, _, mockCh := createMockConnectionManager(t)
			tt.setup(cm, mockCh)

			ch, err := cm.GetChannel()

			if tt.expectError {
				if err == nil {
					t.Error("GetChannel() should return error")
				}
				if tt.expectedErr != nil && err != tt.expectedErr {
					t.Errorf("GetChannel() error = %v, want %v", err, tt.expectedErr)
				}
				if ch != nil {
					t.Error("GetChannel() should return nil channel on error")
				}
			} else {
				if err != nil {
					t.Errorf("GetChannel() returned unexpected error: %v", err)
				}
				if ch == nil {
					t.Error("GetChannel() returned nil channel")
				}
			}
		})
	}
}

func TestConnectionManager_GetConnectionString(t *testing.T) {
	cm, _, _ := createMockConnectionManager(t)

	if cs := cm.GetConnectionString(); cs != "amqp://test" {
		t.Errorf("GetConnectionString() = %v, want amqp://test", cs)
	}

	cm.closed = true
	if cs := cm.GetConnectionString(); cs != "" {
		t.Errorf("GetConnectionString() on closed manager = %v, want empty", cs)
	}
}

func TestConnectionManager_IsHealthy(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*connectionManager, *MockRMQConnection, *MockAMQPChannel)
		expected bool
	}{
		{
			name: "healthy manager",
			setup: func(cm *connectionManager, mockConn *MockRMQConnection, mockCh *MockAMQPChannel) {
			},
			expected: true,
		},
		{
			name: "closed manager",
			setup: func(cm *connectionManager, mockConn *MockRMQConnection, mockCh *MockAMQPChannel) {
				cm.closed = true
			},
			expected: false,
		},
		{
			name: "closed connection",
			setup: func(cm *connectionManager, mockConn *MockRMQConnection, mockCh *MockAMQPChannel) {
				mockConn.Close()
			},
			expected: false,
		},
		{
			name: "closed channel",
			setup: func(cm *connectionManager, mockConn *MockRMQConnection, mockCh *MockAMQPChannel) {
				mockCh.Close()
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm, mockConn, mockCh := createMockConnectionManager(t)
			tt.setup(cm, mockConn, mockCh)

			if got := cm.IsHealthy(); got != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConnectionManager_Close(t *testing.T) {
	cm, mockConn, mockCh := createMockConnectionManager(t)

	if err := cm.Close(); err != nil {
		t.Errorf("Close() returned unexpected error: %v", err)
	}

	if !cm.closed {
		t.Error("Close() should mark the manager as closed")
	}
	if !mockConn.IsClosed() {
		t.Error("Close() should close the underlying connection")
	}
	if !mockCh.IsClosed() {
		t.Error("Close() should close the underlying channel")
	}

	// Second close is a no-op
	if err := cm.Close(); err != nil {
		t.Errorf("Close() on closed manager returned unexpected error: %v", err)
	}
}

func TestConnectionManager_Qos(t *testing.T) {
	cm, _, _ := createMockConnectionManager(t)

	if err := cm.Qos(10, 0, false); err != nil {
		t.Errorf("Qos() returned unexpected error: %v", err)
	}

	cm.closed = true
	if err := cm.Qos(10, 0, false); err != ManagerClosedError {
		t.Errorf("Qos() on closed manager = %v, want %v", err, ManagerClosedError)
	}
}

func TestConnectionManager_SetReconnectCallback(t *testing.T) {
	cm, _, _ := createMockConnectionManager(t)

	called := false
	cm.SetReconnectCallback(func(conn RMQConnection, ch AMQPChannel) {
		called = true
	})

	if cm.reconnectCallback == nil {
		t.Fatal("SetReconnectCallback() did not store the callback")
	}

	cm.reconnectCallback(nil, nil)
	if !called {
		t.Error("stored callback was not invoked")
	}
}
