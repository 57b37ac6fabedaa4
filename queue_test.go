// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"testing"
)

func TestNewQueue(t *testing.T) {
	tests := []struct {
		name         string
		queueName    string
		expectedName string
	}{
		{
			name:         "basic queue creation",
			queueName:    "test-queue",
			expectedName: "test-queue",
		},
		{
			name:         "empty queue name",
			queueName:    "",
			expectedName: "",
		},
		{
			name:         "queue with special characters",
			queueName:    "test-queue_123",
			expectedName: "test-queue_123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(tt.queueName)
			if q == nil {
				t.Fatal("NewQueue() returned nil")
			}
			if q.name != tt.expectedName {
				t.Errorf("NewQueue().name = %v, want %v", q.name, tt.expectedName)
			}
			// Test default values
			if !q.durable {
				t.Error("NewQueue() should create durable queue by default")
			}
			if q.delete {
				t.Error("NewQueue() should not create auto-delete queue by default")
			}
			if q.exclusive {
				t.Error("NewQueue() should not create exclusive queue by default")
			}
		})
	}
}

func TestQueueDefinition_Durable(t *testing.T) {
	q := NewQueue("test")

	// Test setting durable to true
	result := q.Durable(true)
	if result != q {
		t.Error("Durable() should return the same QueueDefinition instance")
	}
	if !q.durable {
		t.Error("Durable(true) should set durable to true")
	}

	// Test setting durable to false
	q.Durable(false)
	if q.durable {
		t.Error("Durable(false) should set durable to false")
	}
}

func TestQueueDefinition_Delete(t *testing.T) {
	q := NewQueue("test")

	// Test setting delete to true
	result := q.Delete(true)
	if result != q {
		t.Error("Delete() should return the same QueueDefinition instance")
	}
	if !q.delete {
		t.Error("Delete(true) should set delete to true")
	}

	// Test setting delete to false
	q.Delete(false)
	if q.delete {
		t.Error("Delete(false) should set delete to false")
	}
}

func TestQueueDefinition_Exclusive(t *testing.T) {
	q := NewQueue("test")

	// Test setting exclusive to true
	result := q.Exclusive(true)
	if result != q {
		t.Error("Exclusive() should return the same QueueDefinition instance")
	}
	if !q.exclusive {
		t.Error("Exclusive(true) should set exclusive to true")
	}

	// Test setting exclusive to false
	q.Exclusive(false)
	if q.exclusive {
		t.Error("Exclusive(false) should set exclusive to false")
	}
}

func TestQueueDefinition_Name(t *testing.T) {
	tests := []struct {
		name      string
		queueName string
		expected  string
	}{
		{
			name:      "basic name",
			queueName: "orders",
			expected:  "orders",
		},
		{
			name:      "empty name",
			queueName: "",
			expected:  "",
		},
		{
			name:      "name with special chars",
			queueName: "order_queue-123",
			expected:  "order_queue-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(tt.queueName)
			if q.Name() != tt.expected {
				t.Errorf("Name() = %v, want %v", q.Name(), tt.expected)
			}
		})
	}
}

func TestQueueDefinition_FluentChaining(t *testing.T) {
	// Test that all methods can be chained together
	q := NewQueue("test-queue").
		Durable(true).
		Delete(false).
		Exclusive(false)

	if q.name != "test-queue" {
		t.Errorf("Chained queue name = %v, want test-queue", q.name)
	}
	if !q.durable {
		t.Error("Chained queue should be durable")
	}
	if q.delete {
		t.Error("Chained queue should not be auto-delete")
	}
	if q.exclusive {
		t.Error("Chained queue should not be exclusive")
	}
}
