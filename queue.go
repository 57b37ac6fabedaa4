// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

type (
	// QueueDefinition represents the configuration of a RabbitMQ queue.
	// It encapsulates the name, durability, auto-delete behavior, and exclusivity
	// used when the broker wrapper declares or inspects the queue.
	QueueDefinition struct {
		name      string
		durable   bool
		delete    bool
		exclusive bool
	}
)

// NewQueue creates a new queue definition with the given name.
// By default, queues are durable, not auto-deleted, and not exclusive,
// matching the properties the broker wrapper asserts when counting messages.
//
// Example usage:
//
//	queueDef := remoteops.NewQueue("work-items").Durable(true)
func NewQueue(name string) *QueueDefinition {
	return &QueueDefinition{name: name, durable: true, delete: false, exclusive: false}
}

// Durable sets the durability flag for the queue.
// Durable queues survive broker restarts.
func (q *QueueDefinition) Durable(d bool) *QueueDefinition {
	q.durable = d
	return q
}

// Delete sets the auto-delete flag for the queue.
// Auto-deleted queues are removed when no longer in use.
func (q *QueueDefinition) Delete(d bool) *QueueDefinition {
	q.delete = d
	return q
}

// Exclusive sets the exclusive flag for the queue.
// Exclusive queues can only be used by the connection that created them
// and are deleted when that connection closes.
func (q *QueueDefinition) Exclusive(e bool) *QueueDefinition {
	q.exclusive = e
	return q
}

// Name returns the name of the queue.
func (q *QueueDefinition) Name() string {
	return q.name
}
