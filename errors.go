// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

// RemoteOpsError represents a custom error type for remoteops operations.
// It encapsulates an error message describing the specific error condition.
type RemoteOpsError struct {
	Message string
}

// NewRemoteOpsError creates a new RemoteOpsError instance with the provided message.
func NewRemoteOpsError(msg string) *RemoteOpsError {
	return &RemoteOpsError{Message: msg}
}

// Error implements the error interface and returns the error message.
func (e *RemoteOpsError) Error() string {
	return e.Message
}

var (
	// brokerDialError wraps a broker connection error into a RemoteOpsError.
	brokerDialError = func(err error) error { return NewRemoteOpsError(err.Error()) }

	// getChannelError wraps a channel creation error into a RemoteOpsError.
	getChannelError = func(err error) error { return NewRemoteOpsError(err.Error()) }

	// ManagerClosedError is returned when an operation is attempted on a closed connection manager.
	ManagerClosedError = NewRemoteOpsError("connection manager is closed")

	// ConnectionUnavailableError is returned when the broker connection is not established.
	ConnectionUnavailableError = NewRemoteOpsError("connection is not available")

	// ChannelUnavailableError is returned when the broker channel is not established.
	ChannelUnavailableError = NewRemoteOpsError("channel is not available")

	// ProtectedPidError is returned when a kill targets a pid at or below the protected range.
	ProtectedPidError = NewRemoteOpsError("refusing to kill pid <= 10")

	// UnfilteredKillError is returned when a bulk kill is requested without any command pattern.
	UnfilteredKillError = NewRemoteOpsError("refusing to kill all processes, a command pattern is required")

	// RelativeRemotePathError is returned when a remote file operation receives a non-absolute path.
	RelativeRemotePathError = NewRemoteOpsError("remote path must be absolute")

	// ShallowRemotePathError is returned when a remove targets a path directly under the root.
	ShallowRemotePathError = NewRemoteOpsError("refusing to remove a top-level path")

	// ArchiveSuffixError is returned when a tar output path does not end in .tgz or .tar.gz.
	ArchiveSuffixError = NewRemoteOpsError("archive output path must end in .tgz or .tar.gz")

	// RemoteSourceMissingError is returned when the remote source of a transfer or archive does not exist.
	RemoteSourceMissingError = NewRemoteOpsError("remote source path does not exist")

	// TransferIncompleteError is returned when a transfer finished without producing the partial file.
	TransferIncompleteError = NewRemoteOpsError("transfer did not produce the destination file")

	// NotConnectedError is returned when an SSH operation runs before the client is connected.
	NotConnectedError = NewRemoteOpsError("ssh client is not connected")
)
