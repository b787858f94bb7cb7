// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package experiments

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Sink receives the human-readable log lines of a training run.
// Implementations must be safe to call from the training loop; a line does
// not include the trailing newline.
type Sink interface {
	Log(msg string)
}

// Logf formats and logs one line to the sink. A nil sink drops the line.
func Logf(sink Sink, format string, args ...any) {
	if sink == nil {
		return
	}
	sink.Log(fmt.Sprintf(format, args...))
}

// NopSink discards everything.
type NopSink struct{}

// Log implements Sink.
func (NopSink) Log(string) {}

// WriterSink appends lines to an io.Writer, one per call.
type WriterSink struct {
	W io.Writer
}

// Log implements Sink.
func (s WriterSink) Log(msg string) {
	fmt.Fprintln(s.W, msg)
}

// FileSink appends lines to a log file, flushing after every line so the
// file trails the run even if it crashes.
type FileSink struct {
	f *os.File
}

// NewFileSink creates (or truncates) the log file at path.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for log file %q", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create log file %q", path)
	}
	return &FileSink{f: f}, nil
}

// Log implements Sink.
func (s *FileSink) Log(msg string) {
	fmt.Fprintln(s.f, msg)
	_ = s.f.Sync()
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	return s.f.Close()
}

// TeeSink fans every line out to all its sinks, used to mirror the run log
// to the console and train_log.txt at once.
type TeeSink []Sink

// Tee bundles sinks into one. Nil entries are dropped.
func Tee(sinks ...Sink) Sink {
	tee := make(TeeSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			tee = append(tee, s)
		}
	}
	return tee
}

// Log implements Sink.
func (tee TeeSink) Log(msg string) {
	for _, s := range tee {
		s.Log(msg)
	}
}
