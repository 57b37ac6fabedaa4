// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// Test message types
type TestMessage struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type TestPointerMessage struct {
	Value int `json:"value"`
}

func TestNewPublisher(t *testing.T) {
	channel := NewMockAMQPChannel()
	appName := "test-app"

	publisher := NewPublisher(appName, channel)
	if publisher == nil {
		t.Fatal("NewPublisher() returned nil")
	}
}

func TestPublisher_Publish(t *testing.T) {
	tests := []struct {
		name        string
		exchange    string
		routingKey  string
		msg         interface{}
		publishErr  error
		expectError bool
	}{
		{
			name:        "successful publish",
			exchange:    "test-exchange",
			routingKey:  "test.key",
			msg:         TestMessage{ID: "123", Content: "test"},
			publishErr:  nil,
			expectError: false,
		},
		{
			name:        "empty exchange",
			exchange:    "",
			routingKey:  "test.key",
			msg:         TestMessage{ID: "123", Content: "test"},
			publishErr:  nil,
			expectError: true,
		},
		{
			name:        "publish error",
			exchange:    "test-exchange",
			routingKey:  "test.key",
			msg:         TestMessage{ID: "123", Content: "test"},
			publishErr:  errors.New("publish error"),
			expectError: true,
		},
		{
			name:        "empty routing key",
			exchange:    "test-exchange",
			routingKey:  "",
			msg:         TestMessage{ID: "123", Content: "test"},
			publishErr:  nil,
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channel := NewMockAMQPChannel()
			if tt.publishErr != nil {
				channel.SetPublishError(tt.publishErr)
			}

			publisher := NewPublisher("test-app", channel)
			err := publisher.Publish(context.Background(), tt.exchange, tt.routingKey, tt.msg)

			if tt.expectError {
				if err == nil {
					t.Error("Publish() should return error")
				}
			} else {
				if err != nil {
					t.Errorf("Publish() returned unexpected error: %v", err)
				}
			}
		})
	}
}

func TestPublisher_SimplePublish(t *testing.T) {
	channel := NewMockAMQPChannel()
	publisher := NewPublisher("test-app", channel)

	err := publisher.SimplePublish(context.Background(), "test-queue", TestMessage{ID: "123", Content: "test"})
	if err != nil {
		t.Fatalf("SimplePublish() returned unexpected error: %v", err)
	}

	published := channel.GetLastPublishedMessage()
	if published == nil {
		t.Fatal("SimplePublish() did not publish a message")
	}
	if published.Exchange != "" {
		t.Errorf("SimplePublish() exchange = %v, want empty (default exchange)", published.Exchange)
	}
	if published.Key != "test-queue" {
		t.Errorf("SimplePublish() routing key = %v, want test-queue", published.Key)
	}
}

func TestPublisher_PublishingProperties(t *testing.T) {
	channel := NewMockAMQPChannel()
	publisher := NewPublisher("test-app", channel)

	err := publisher.SimplePublish(context.Background(), "test-queue", TestMessage{ID: "123", Content: "test"})
	if err != nil {
		t.Fatalf("SimplePublish() returned unexpected error: %v", err)
	}

	published := channel.GetLastPublishedMessage()
	if published == nil {
		t.Fatal("no message was published")
	}

	if published.Publishing.ContentType != JsonContentType {
		t.Errorf("ContentType = %v, want %v", published.Publishing.ContentType, JsonContentType)
	}
	if published.Publishing.AppId != "test-app" {
		t.Errorf("AppId = %v, want test-app", published.Publishing.AppId)
	}
	if published.Publishing.MessageId == "" {
		t.Error("MessageId should not be empty")
	}
	if !strings.Contains(published.Publishing.Type, "TestMessage") {
		t.Errorf("Type = %v, should contain the message type name", published.Publishing.Type)
	}

	expectedBody := `{"id":"123","content":"test"}`
	if string(published.Publishing.Body) != expectedBody {
		t.Errorf("Body = %v, want %v", string(published.Publishing.Body), expectedBody)
	}
}

func TestPublisher_MessageSerialization(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{}
		wantErr bool
	}{
		{
			name:    "struct message",
			msg:     TestMessage{ID: "123", Content: "test"},
			wantErr: false,
		},
		{
			name:    "pointer to struct",
			msg:     &TestPointerMessage{Value: 42},
			wantErr: false,
		},
		{
			name:    "string message",
			msg:     "simple string",
			wantErr: false,
		},
		{
			name:    "int message",
			msg:     123,
			wantErr: false,
		},
		{
			name:    "map message",
			msg:     map[string]interface{}{"key": "value"},
			wantErr: false,
		},
		{
			name:    "empty struct",
			msg:     struct{}{},
			wantErr: false,
		},
		{
			name:    "unserializable message",
			msg:     make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channel := NewMockAMQPChannel()
			publisher := NewPublisher("test-app", channel)

			err := publisher.Publish(context.Background(), "test-exchange", "test.key", tt.msg)

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error for message serialization")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error for message serialization: %v", err)
				}
			}
		})
	}
}

func TestJsonContentType(t *testing.T) {
	if JsonContentType != "application/json" {
		t.Errorf("JsonContentType = %v, want application/json", JsonContentType)
	}
}
