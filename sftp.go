// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"io"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type (
	// SFTPClienter defines the SFTP operations file transfers need.
	SFTPClienter interface {
		// Create opens a remote file for writing, truncating it if it exists.
		Create(path string) (io.WriteCloser, error)

		// Open opens a remote file for reading.
		Open(path string) (io.ReadCloser, error)

		// Close shuts down the SFTP subsystem.
		Close() error
	}

	// sftpClientWrapper adapts *sftp.Client to SFTPClienter.
	sftpClientWrapper struct {
		client *sftp.Client
	}
)

// newSFTPClient holds the function used to start the SFTP subsystem on an
// established SSH connection. It allows for mocking in tests.
var newSFTPClient = func(client *ssh.Client) (SFTPClienter, error) {
	c, err := sftp.NewClient(client)
	if err != nil {
		return nil, err
	}
	return &sftpClientWrapper{client: c}, nil
}

func (w *sftpClientWrapper) Create(path string) (io.WriteCloser, error) {
	return w.client.Create(path)
}

func (w *sftpClientWrapper) Open(path string) (io.ReadCloser, error) {
	return w.client.Open(path)
}

func (w *sftpClientWrapper) Close() error {
	return w.client.Close()
}
