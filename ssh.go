// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

const (
	// sshDefaultTimeout is the dial timeout when the configuration leaves it unset.
	sshDefaultTimeout = 30 * time.Second

	// sshDialRetries bounds the exponential-backoff dial attempts.
	sshDialRetries = 3

	// protectedPidCeiling: pids at or below this are never killed.
	protectedPidCeiling = 10
)

type (
	// SSHConfig holds the connection parameters for a remote host.
	SSHConfig struct {
		Host     string
		Port     int
		User     string
		Password string

		// Timeout is the dial timeout, 30s when zero.
		Timeout time.Duration

		// Name is an optional display name used by String.
		Name string

		// AuditLogPath journals every call as a JSON record when set.
		AuditLogPath string
	}

	// SSH wraps an authenticated connection to a remote host for operational
	// scripting: running commands, managing files and processes, and
	// transferring files over SFTP. The connection is established at
	// construction and kept for the object's lifetime; each command runs in a
	// fresh session.
	SSH struct {
		config SSHConfig
		audit  *auditLog

		mu     sync.Mutex
		client SSHClienter
	}

	// Process is one row of `ps -ef` output.
	Process struct {
		User        string
		PID         int
		ParentPID   int
		CPU         int
		StartTime   string
		TTY         string
		RunningTime string
		Command     string
	}
)

// NewSSH connects to the remote host and returns the wrapper. The dial is
// retried with exponential backoff before giving up.
func NewSSH(config SSHConfig) (*SSH, error) {
	s := &SSH{
		config: config,
		audit: newAuditLog(config.AuditLogPath, logrus.Fields{
			"host": config.Host,
			"port": config.Port,
			"user": config.User,
		}),
	}

	client, err := s.connect()
	if err != nil {
		logrus.WithError(err).Error("remoteops ssh connection test failed")
		return nil, err
	}
	s.client = client

	s.audit.record("init", nil)
	return s, nil
}

// String renders SSH<[name]=user@host:port>.
func (s *SSH) String() string {
	if s.config.Name == "" {
		return fmt.Sprintf("SSH<%s@%s:%d>", s.config.User, s.config.Host, s.config.Port)
	}
	return fmt.Sprintf("SSH<[%s]=%s@%s:%d>", s.config.Name, s.config.User, s.config.Host, s.config.Port)
}

// Close tears down the connection.
func (s *SSH) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *SSH) clientConfig() *ssh.ClientConfig {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = sshDefaultTimeout
	}

	return &ssh.ClientConfig{
		User: s.config.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(s.config.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
}

func (s *SSH) connect() (SSHClienter, error) {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	logrus.Debugf("remoteops connecting to ssh server: %s", addr)

	return backoff.RetryWithData(func() (SSHClienter, error) {
		return sshDial("tcp", addr, s.clientConfig())
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), sshDialRetries))
}

// session opens a fresh session, redialing once when the kept connection has
// gone stale.
func (s *SSH) session() (SSHSessioner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil, NotConnectedError
	}

	session, err := s.client.NewSession()
	if err == nil {
		return session, nil
	}

	logrus.WithError(err).Debug("remoteops ssh session failed, redialing")
	client, dialErr := s.connect()
	if dialErr != nil {
		return nil, dialErr
	}
	_ = s.client.Close()
	s.client = client

	return s.client.NewSession()
}

// Execute runs a command on the remote host and returns its stdout. Non-empty
// stderr is logged as a warning and a nonzero exit status is not an error,
// matching interactive shell expectations for operational scripts. With
// WaitForOutput disabled the command is started and the call returns
// immediately.
func (s *SSH) Execute(ctx context.Context, command string, opts *ExecuteOptions) (string, error) {
	if opts == nil {
		opts = NewExecuteOptions()
	}

	s.audit.record("execute", logrus.Fields{"command": command})

	session, err := s.session()
	if err != nil {
		return "", err
	}
	defer session.Close()

	if !opts.waitForOutput {
		if !strings.Contains(command, "nohup") {
			logrus.WithContext(ctx).Warn("remoteops usage of `nohup` recommended for long-running commands")
		}
		return "", session.Start(command)
	}

	var stdout, stderr bytes.Buffer
	session.SetStdout(&stdout)
	session.SetStderr(&stderr)

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return stdout.String(), ctx.Err()
	case err = <-done:
	}

	if errText := strings.TrimRight(stderr.String(), "\r\n"); errText != "" {
		logrus.WithContext(ctx).Warnf("remoteops remote stderr: %s", errText)
	}

	var exitErr *ssh.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return stdout.String(), err
	}

	return stdout.String(), nil
}

// Kill sends SIGKILL to the process with the given pid.
func (s *SSH) Kill(ctx context.Context, pid int) error {
	if pid <= protectedPidCeiling {
		return ProtectedPidError
	}

	s.audit.record("kill", logrus.Fields{"pid": pid})

	_, err := s.Execute(ctx, fmt.Sprintf("kill -9 %d", pid), nil)
	return err
}

// Processes lists the remote process table, keeping only rows whose command
// contains every given pattern.
func (s *SSH) Processes(ctx context.Context, patterns ...string) ([]Process, error) {
	s.audit.record("processes", logrus.Fields{"patterns": patterns})

	out, err := s.Execute(ctx, "ps -ef", nil)
	if err != nil {
		return nil, err
	}

	procs, err := parseProcessTable(out)
	if err != nil {
		return nil, err
	}

	filtered := procs[:0]
	for _, p := range procs {
		keep := true
		for _, pattern := range patterns {
			if !strings.Contains(p.Command, pattern) {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, p)
		}
	}

	return filtered, nil
}

// KillMatching kills every process whose command matches all patterns and
// returns the matched rows. At least one pattern is required and the matches
// must not include a protected pid.
func (s *SSH) KillMatching(ctx context.Context, patterns ...string) ([]Process, error) {
	if len(patterns) == 0 {
		return nil, UnfilteredKillError
	}

	procs, err := s.Processes(ctx, patterns...)
	if err != nil {
		return nil, err
	}

	seen := map[int]bool{}
	pids := make([]int, 0, len(procs))
	for _, p := range procs {
		if !seen[p.PID] {
			seen[p.PID] = true
			pids = append(pids, p.PID)
		}
	}
	sort.Ints(pids)

	for _, pid := range pids {
		if pid <= protectedPidCeiling {
			return procs, ProtectedPidError
		}
	}

	for i, pid := range pids {
		logrus.WithContext(ctx).Infof("remoteops [%d/%d] killing process with pid=%d", i+1, len(pids), pid)
		if err := s.Kill(ctx, pid); err != nil {
			return procs, err
		}
	}

	return procs, nil
}

// ProcessRunning reports whether name appears in the process table after
// piping `ps -ef` through a grep per pattern.
func (s *SSH) ProcessRunning(ctx context.Context, name string, patterns []string, caseInsensitive bool) (bool, error) {
	s.audit.record("process_running", logrus.Fields{"name": name, "patterns": patterns})

	cmd := "ps -ef"
	for _, pattern := range patterns {
		if caseInsensitive {
			cmd += fmt.Sprintf(" | grep -i \"%s\"", pattern)
		} else {
			cmd += fmt.Sprintf(" | grep \"%s\"", pattern)
		}
	}

	out, err := s.Execute(ctx, cmd, nil)
	if err != nil {
		return false, err
	}

	return strings.Contains(out, name), nil
}

// Exists reports whether the absolute remote path exists.
func (s *SSH) Exists(ctx context.Context, remotePath string) (bool, error) {
	if !path.IsAbs(remotePath) {
		return false, RelativeRemotePathError
	}

	s.audit.record("exists", logrus.Fields{"remote_path": remotePath})

	out, err := s.Execute(ctx, fmt.Sprintf("ls -l %s", remotePath), nil)
	if err != nil {
		return false, err
	}

	return strings.TrimRight(out, "\r\n") != "", nil
}

// Mkdir creates a directory at the absolute remote path.
func (s *SSH) Mkdir(ctx context.Context, remotePath string, parents bool) error {
	if !path.IsAbs(remotePath) {
		return RelativeRemotePathError
	}

	s.audit.record("mkdir", logrus.Fields{"remote_path": remotePath})

	cmd := fmt.Sprintf("mkdir \"%s\"", remotePath)
	if parents {
		cmd = fmt.Sprintf("mkdir --parents \"%s\"", remotePath)
	}

	_, err := s.Execute(ctx, cmd, nil)
	return err
}

// Move renames a remote file or directory. The source must be absolute.
func (s *SSH) Move(ctx context.Context, remotePath, newRemotePath string) error {
	if !path.IsAbs(remotePath) {
		return RelativeRemotePathError
	}

	s.audit.record("move", logrus.Fields{"remote_path": remotePath, "new_remote_path": newRemotePath})

	_, err := s.Execute(ctx, fmt.Sprintf("mv \"%s\" \"%s\"", remotePath, newRemotePath), nil)
	return err
}

// Remove deletes a remote path. The path must be absolute and at least two
// levels deep, so a stray argument can never remove a top-level tree.
func (s *SSH) Remove(ctx context.Context, remotePath string, recursive, force bool) error {
	if !path.IsAbs(remotePath) {
		return RelativeRemotePathError
	}
	if strings.Count(remotePath, "/") < 2 {
		return ShallowRemotePathError
	}

	s.audit.record("remove", logrus.Fields{"remote_path": remotePath})

	cmd := "rm "
	switch {
	case recursive && force:
		cmd += "-rf "
	case recursive:
		cmd += "-r "
	case force:
		cmd += "-f "
	}
	cmd += fmt.Sprintf("\"%s\"", remotePath)

	_, err := s.Execute(ctx, cmd, nil)
	return err
}

// TarGz archives the remote target into a gzipped tarball at outputPath. The
// archive is written to a .partial path first and renamed into place only
// once it exists, so a watcher never sees a half-written archive.
func (s *SSH) TarGz(ctx context.Context, remoteTarget, outputPath string) (string, error) {
	if !path.IsAbs(remoteTarget) || !path.IsAbs(outputPath) {
		return "", RelativeRemotePathError
	}
	if !strings.HasSuffix(outputPath, ".tgz") && !strings.HasSuffix(outputPath, ".tar.gz") {
		return "", ArchiveSuffixError
	}

	s.audit.record("tar_gz", logrus.Fields{
		"remote_target":      remoteTarget,
		"remote_output_path": outputPath,
	})

	exists, err := s.Exists(ctx, remoteTarget)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", RemoteSourceMissingError
	}

	tmpPath := outputPath + ".partial"

	out, err := s.Execute(ctx, fmt.Sprintf("cd \"%s\"; tar cvzf \"%s\" \"%s\"",
		path.Dir(remoteTarget), tmpPath, path.Base(remoteTarget)), nil)
	if err != nil {
		return "", err
	}
	logrus.WithContext(ctx).Debugf("remoteops tar output: %s", out)

	ok, err := s.Exists(ctx, tmpPath)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", TransferIncompleteError
	}

	if overwriting, err := s.Exists(ctx, outputPath); err != nil {
		return "", err
	} else if overwriting {
		if err := s.Remove(ctx, outputPath, false, true); err != nil {
			return "", err
		}
	}

	if err := s.Move(ctx, tmpPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}

// Download copies a remote file to the local filesystem over SFTP. The file
// lands at a .partial path and is renamed only after the copy succeeds.
// Returns the local path, or the empty string when the destination exists and
// overwrite is disabled.
func (s *SSH) Download(ctx context.Context, remotePath, localPath string, opts *TransferOptions) (string, error) {
	if opts == nil {
		opts = NewTransferOptions()
	}

	if !path.IsAbs(remotePath) {
		return "", RelativeRemotePathError
	}

	localPath, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}

	if _, statErr := os.Stat(localPath); statErr == nil && !opts.overwrite {
		logrus.WithContext(ctx).Infof("remoteops overwrite is disabled and local path exists: <%s>", localPath)
		return "", nil
	}

	exists, err := s.Exists(ctx, remotePath)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", RemoteSourceMissingError
	}

	tmpPath := localPath + ".partial"
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(tmpPath), 0o755); err != nil {
		return "", err
	}

	logrus.WithContext(ctx).Infof("remoteops retrieving <%s> to <%s>", remotePath, localPath)
	s.audit.record("download", logrus.Fields{
		"remote_source":     remotePath,
		"local_destination": localPath,
	})

	if err := s.sftpGet(remotePath, tmpPath); err != nil {
		return "", err
	}

	if _, err := os.Stat(tmpPath); err != nil {
		return "", TransferIncompleteError
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		return "", err
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		return "", err
	}

	return localPath, nil
}

// Upload copies a local file to the remote host over SFTP. The file lands at
// a .partial path and is renamed only after the copy succeeds. The remote
// parent directory is created when missing. Returns the remote path, or the
// empty string when the destination exists and overwrite is disabled.
func (s *SSH) Upload(ctx context.Context, localPath, remotePath string, opts *TransferOptions) (string, error) {
	if opts == nil {
		opts = NewTransferOptions()
	}

	if !path.IsAbs(remotePath) {
		return "", RelativeRemotePathError
	}

	localPath, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}

	if exists, err := s.Exists(ctx, remotePath); err != nil {
		return "", err
	} else if exists && !opts.overwrite {
		logrus.WithContext(ctx).Infof("remoteops overwrite is disabled and remote path exists: <%s>", remotePath)
		return "", nil
	}

	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}

	tmpPath := remotePath + ".partial"
	if exists, err := s.Exists(ctx, tmpPath); err != nil {
		return "", err
	} else if exists {
		if err := s.Remove(ctx, tmpPath, false, true); err != nil {
			return "", err
		}
	}

	remoteDir := path.Dir(tmpPath)
	if exists, err := s.Exists(ctx, remoteDir); err != nil {
		return "", err
	} else if !exists {
		logrus.WithContext(ctx).Infof("remoteops remote dir <%s> does not exist, creating...", remoteDir)
		if err := s.Mkdir(ctx, remoteDir, true); err != nil {
			return "", err
		}
	}

	logrus.WithContext(ctx).Infof("remoteops transmitting <%s> to <%s>", localPath, remotePath)
	s.audit.record("upload", logrus.Fields{
		"local_source":       localPath,
		"remote_destination": remotePath,
	})

	if err := s.sftpPut(localPath, tmpPath); err != nil {
		return "", err
	}

	if exists, err := s.Exists(ctx, tmpPath); err != nil {
		return "", err
	} else if !exists {
		return "", TransferIncompleteError
	}

	if exists, err := s.Exists(ctx, remotePath); err != nil {
		return "", err
	} else if exists {
		if err := s.Remove(ctx, remotePath, false, true); err != nil {
			return "", err
		}
	}

	if err := s.Move(ctx, tmpPath, remotePath); err != nil {
		return "", err
	}

	return remotePath, nil
}

func (s *SSH) sftpGet(remotePath, localPath string) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return NotConnectedError
	}

	ftp, err := newSFTPClient(client.Client())
	if err != nil {
		return err
	}
	defer ftp.Close()

	src, err := ftp.Open(remotePath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func (s *SSH) sftpPut(localPath, remotePath string) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return NotConnectedError
	}

	ftp, err := newSFTPClient(client.Client())
	if err != nil {
		return err
	}
	defer ftp.Close()

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := ftp.Create(remotePath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

// parseProcessTable parses `ps -ef` output into rows. The header line is
// skipped; the command column keeps its internal spacing.
func parseProcessTable(out string) ([]Process, error) {
	lines := strings.Split(out, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}

	procs := make([]Process, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := splitColumns(line, 8)
		if len(fields) < 8 {
			return nil, fmt.Errorf("unparseable ps output line: %q", line)
		}

		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("unparseable pid in ps output line %q: %w", line, err)
		}
		ppid, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("unparseable parent pid in ps output line %q: %w", line, err)
		}
		cpu, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("unparseable cpu in ps output line %q: %w", line, err)
		}

		procs = append(procs, Process{
			User:        fields[0],
			PID:         pid,
			ParentPID:   ppid,
			CPU:         cpu,
			StartTime:   fields[4],
			TTY:         fields[5],
			RunningTime: fields[6],
			Command:     fields[7],
		})
	}

	return procs, nil
}

// splitColumns splits a line on runs of whitespace into at most n fields, the
// last field keeping the remainder of the line verbatim.
func splitColumns(line string, n int) []string {
	fields := make([]string, 0, n)
	rest := strings.TrimLeft(line, " \t")
	for len(fields) < n-1 && rest != "" {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			break
		}
		fields = append(fields, rest[:idx])
		rest = strings.TrimLeft(rest[idx:], " \t")
	}
	if rest != "" {
		fields = append(fields, strings.TrimRight(rest, " \t\r"))
	}
	return fields
}
