// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"errors"
	"testing"
)

func TestNewConnection(t *testing.T) {
	tests := []struct {
		name        string
		dialErr     error
		channelErr  error
		expectError bool
	}{
		{
			name:        "successful connection",
			dialErr:     nil,
			channelErr:  nil,
			expectError: false,
		},
		{
			name:        "dial failure",
			dialErr:     errors.New("dial tcp: connection refused"),
			channelErr:  nil,
			expectError: true,
		},
		{
			name:        "channel failure",
			dialErr:     nil,
			channelErr:  errors.New("channel creation failed"),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockConn := NewMockRMQConnection()
			if tt.channelErr != nil {
				mockConn.SetChannelError(tt.channelErr)
			}

			originalDial := dial
			defer func() { dial = originalDial }()
			dial = func(connectionString string) (RMQConnection, error) {
				if tt.dialErr != nil {
					return nil, tt.dialErr
				}
				return mockConn, nil
			}

			conn, ch, err := NewConnection("amqp://test")

			if tt.expectError {
				if err == nil {
					t.Error("NewConnection() should return error")
				}
				if conn != nil || ch != nil {
					t.Error("NewConnection() should return nil connection and channel on error")
				}
				// Errors are wrapped into the package error type
				if _, ok := err.(*RemoteOpsError); !ok {
					t.Errorf("NewConnection() error should be *RemoteOpsError, got %T", err)
				}
			} else {
				if err != nil {
					t.Errorf("NewConnection() returned unexpected error: %v", err)
				}
				if conn == nil {
					t.Error("NewConnection() returned nil connection")
				}
				if ch == nil {
					t.Error("NewConnection() returned nil channel")
				}
			}
		})
	}
}

func TestAMQPChannel_Interface(t *testing.T) {
	// Test that MockAMQPChannel implements AMQPChannel interface
	var ch AMQPChannel = NewMockAMQPChannel()

	if ch.IsClosed() {
		t.Error("IsClosed() should return false for new channel")
	}

	if err := ch.Qos(1, 0, false); err != nil {
		t.Errorf("Qos() returned unexpected error: %v", err)
	}

	if err := ch.Close(); err != nil {
		t.Errorf("Close() returned unexpected error: %v", err)
	}
	if !ch.IsClosed() {
		t.Error("IsClosed() should return true after Close()")
	}
}
