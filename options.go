// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import "time"

type (
	// ExecuteOptions controls remote command execution.
	ExecuteOptions struct {
		waitForOutput bool
	}

	// ReadOptions controls how ReadJSON consumes messages.
	ReadOptions struct {
		pop               bool
		inactivityTimeout time.Duration
	}

	// TransferOptions controls file transfers in both directions.
	TransferOptions struct {
		overwrite bool
	}
)

// DefaultReadInactivityTimeout ends a read after the queue has been idle this long.
const DefaultReadInactivityTimeout = 60 * time.Second

// NewExecuteOptions creates execution options. By default the call blocks
// until the command's output is available.
func NewExecuteOptions() *ExecuteOptions {
	return &ExecuteOptions{waitForOutput: true}
}

// WaitForOutput sets whether Execute blocks until output is available.
// When false the command is started and the call returns immediately.
func (o *ExecuteOptions) WaitForOutput(wait bool) *ExecuteOptions {
	o.waitForOutput = wait
	return o
}

// NewReadOptions creates read options. By default messages are peeked (left
// unacknowledged so they requeue) and the read gives up after the queue has
// been idle for DefaultReadInactivityTimeout.
func NewReadOptions() *ReadOptions {
	return &ReadOptions{pop: false, inactivityTimeout: DefaultReadInactivityTimeout}
}

// Pop sets whether read messages are acknowledged, removing them from the queue.
func (o *ReadOptions) Pop(pop bool) *ReadOptions {
	o.pop = pop
	return o
}

// InactivityTimeout sets how long a read waits on an idle queue before returning.
func (o *ReadOptions) InactivityTimeout(d time.Duration) *ReadOptions {
	o.inactivityTimeout = d
	return o
}

// NewTransferOptions creates transfer options. By default an existing
// destination is left untouched.
func NewTransferOptions() *TransferOptions {
	return &TransferOptions{overwrite: false}
}

// Overwrite sets whether an existing destination file is replaced.
func (o *TransferOptions) Overwrite(overwrite bool) *TransferOptions {
	o.overwrite = overwrite
	return o
}
