// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package events

import (
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/tomtom215/crosswatch/internal/logging"
)

// Fields carries the structured payload of an event.
type Fields map[string]any

// Emitter receives engine events. Implementations must be safe for use from
// a single cycle goroutine; the engine never emits concurrently.
type Emitter interface {
	Emit(event string, fields Fields)
}

// Func adapts a plain function to an Emitter.
type Func func(event string, fields Fields)

// Emit implements Emitter.
func (f Func) Emit(event string, fields Fields) { f(event, fields) }

// Nop discards all events.
var Nop Emitter = Func(func(string, Fields) {})

// Tee forwards each event to every emitter in order.
func Tee(emitters ...Emitter) Emitter {
	return Func(func(event string, fields Fields) {
		for _, e := range emitters {
			if e != nil {
				e.Emit(event, fields)
			}
		}
	})
}

// JSONLines writes one JSON object per event, stamped with the event name,
// an RFC 3339 timestamp and the run id.
type JSONLines struct {
	mu    sync.Mutex
	w     io.Writer
	runID string
	now   func() time.Time
}

// NewJSONLines creates a JSON-lines emitter with a fresh run id.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w, runID: uuid.NewString(), now: time.Now}
}

// RunID returns the run correlation id stamped on every line.
func (j *JSONLines) RunID() string { return j.runID }

// Emit implements Emitter.
func (j *JSONLines) Emit(event string, fields Fields) {
	line := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		line[k] = v
	}
	line["event"] = event
	line["ts"] = j.now().UTC().Format(time.RFC3339)
	line["run_id"] = j.runID

	buf, err := json.Marshal(line)
	if err != nil {
		logging.Err(err).Str("event", event).Msg("marshal event")
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.w.Write(append(buf, '\n')); err != nil {
		logging.Err(err).Str("event", event).Msg("write event")
	}
}

// NewRotatingSink opens a lumberjack-rotated JSON-lines sink at path.
// The returned closer flushes and closes the underlying file.
func NewRotatingSink(path string) (*JSONLines, io.Closer) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}
	return NewJSONLines(lj), lj
}
