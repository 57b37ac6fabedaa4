// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"io"

	"golang.org/x/crypto/ssh"
)

type (
	// SSHClienter defines the interface for an established SSH connection.
	// It abstracts the underlying client so command execution and transfers
	// can be exercised against mocks in tests.
	SSHClienter interface {
		// NewSession opens a session for running one remote command.
		NewSession() (SSHSessioner, error)

		// Client exposes the underlying connection for SFTP subsystem setup.
		// Returns nil for mock implementations.
		Client() *ssh.Client

		// Close tears down the connection.
		Close() error
	}

	// SSHSessioner defines the interface for a single-command SSH session.
	SSHSessioner interface {
		// SetStdout routes the remote command's stdout to w.
		SetStdout(w io.Writer)

		// SetStderr routes the remote command's stderr to w.
		SetStderr(w io.Writer)

		// Run starts the command and waits for it to finish.
		Run(cmd string) error

		// Start starts the command without waiting for it to finish.
		Start(cmd string) error

		// Close closes the session. Closing a session with a started command
		// abandons the command on the remote side.
		Close() error
	}

	// sshClientWrapper adapts *ssh.Client to SSHClienter.
	sshClientWrapper struct {
		client *ssh.Client
	}

	// sshSessionWrapper adapts *ssh.Session to SSHSessioner.
	sshSessionWrapper struct {
		session *ssh.Session
	}
)

// sshDial holds the function used to establish SSH connections.
// It allows for mocking in tests.
var sshDial = func(network, addr string, config *ssh.ClientConfig) (SSHClienter, error) {
	client, err := ssh.Dial(network, addr, config)
	if err != nil {
		return nil, err
	}
	return &sshClientWrapper{client: client}, nil
}

func (w *sshClientWrapper) NewSession() (SSHSessioner, error) {
	session, err := w.client.NewSession()
	if err != nil {
		return nil, err
	}
	return &sshSessionWrapper{session: session}, nil
}

func (w *sshClientWrapper) Client() *ssh.Client {
	return w.client
}

func (w *sshClientWrapper) Close() error {
	return w.client.Close()
}

func (s *sshSessionWrapper) SetStdout(w io.Writer) {
	s.session.Stdout = w
}

func (s *sshSessionWrapper) SetStderr(w io.Writer) {
	s.session.Stderr = w
}

func (s *sshSessionWrapper) Run(cmd string) error {
	return s.session.Run(cmd)
}

func (s *sshSessionWrapper) Start(cmd string) error {
	return s.session.Start(cmd)
}

func (s *sshSessionWrapper) Close() error {
	return s.session.Close()
}
