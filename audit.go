// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// auditSeparator terminates each journal record. The marker keeps the file
// compatible with jdump-style multi-document readers.
const auditSeparator = "--\n"

// auditOpenAttempts bounds how often a single record retries opening the
// journal file before giving up.
const auditOpenAttempts = 5

type (
	// auditLog journals every wrapper call as a pretty-printed JSON record in
	// an append-only file. A nil auditLog (or an empty path) disables
	// journaling; recording failures never fail the operation being journaled.
	auditLog struct {
		logger *logrus.Logger
		base   logrus.Fields
	}

	// auditWriter appends each serialized record plus the separator to the
	// journal file, opening it per write so concurrent sessions can share one
	// journal.
	auditWriter struct {
		path  string
		sleep func(time.Duration)
	}
)

// newAuditLog creates a journal writing to path. The base fields (connection
// coordinates) are attached to every record. An empty path disables the journal.
func newAuditLog(path string, base logrus.Fields) *auditLog {
	if path == "" {
		return nil
	}

	l := logrus.New()
	l.SetOutput(&auditWriter{path: path, sleep: time.Sleep})
	l.SetFormatter(&logrus.JSONFormatter{
		PrettyPrint:     true,
		TimestampFormat: time.RFC3339,
	})
	l.SetLevel(logrus.InfoLevel)

	return &auditLog{logger: l, base: base}
}

// record journals one wrapper call. The function name becomes the record
// message and fields hold the call parameters.
func (a *auditLog) record(function string, fields logrus.Fields) {
	if a == nil {
		return
	}

	entry := a.logger.WithFields(a.base)
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Info(function)
}

func (w *auditWriter) Write(p []byte) (int, error) {
	var lastErr error
	for i := 0; i < auditOpenAttempts; i++ {
		if i > 0 {
			w.sleep(time.Second)
		}

		f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			lastErr = err
			continue
		}

		if _, err = f.Write(p); err == nil {
			_, err = io.WriteString(f, auditSeparator)
		}
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
		if err == nil {
			return len(p), nil
		}
		lastErr = err
	}

	return 0, lastErr
}
