// Copyright 2026 Bob Vawter (bob@vawter.org)
// SPDX-License-Identifier: Apache-2.0

package drain

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// A WriterSink writes each message as a single line of text. It is the
// sink behind [NewLogService].
type WriterSink struct {
	w io.Writer
}

var _ Sink[string] = (*WriterSink)(nil)

// NewWriterSink wraps the writer. Ownership of the writer passes to the
// sink; if the writer implements [io.Closer], it will be closed when
// the Service has drained.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Process implements [Sink].
func (s *WriterSink) Process(msg string) error {
	_, err := fmt.Fprintln(s.w, msg)
	return err
}

// Close implements [Sink].
func (s *WriterSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// logEntry is a fluentd-compatible envelope.
type logEntry struct {
	Message          string `json:"message"`
	TimestampSeconds int64  `json:"timestampSeconds"`
	TimestampNanos   int    `json:"timestampNanos"`
}

// A JSONSink writes each message as a timestamped, newline-delimited
// JSON envelope.
type JSONSink struct {
	w io.Writer
}

var _ Sink[string] = (*JSONSink)(nil)

// NewJSONSink wraps the writer. The same ownership rules as
// [NewWriterSink] apply.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w}
}

// Process implements [Sink].
func (s *JSONSink) Process(msg string) error {
	now := time.Now()
	buf, err := json.Marshal(&logEntry{
		Message:          msg,
		TimestampSeconds: now.Unix(),
		TimestampNanos:   now.Nanosecond(),
	})
	if err != nil {
		return err
	}
	buf = append(buf, '\n')
	_, err = s.w.Write(buf)
	return err
}

// Close implements [Sink].
func (s *JSONSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewLogService returns a Service that appends each submitted message
// to the writer as one line. This decouples callers from a slow or
// rotating log destination: submission is cheap and non-blocking in the
// common case, while a shutdown flushes every accepted line before the
// writer is closed.
//
// The writer is commonly a [gopkg.in/natefinch/lumberjack.v2.Logger] to
// obtain size-based rotation of the output file.
func NewLogService(w io.Writer, opts ...Option) *Service[string] {
	return New(Sink[string](NewWriterSink(w)), opts...)
}
