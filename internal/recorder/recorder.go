// Package recorder appends engine events to hourly zstd-compressed JSONL
// files.
package recorder

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/zeusync/scenehook/internal/core/events/bus"
)

var (
	ErrEmptyDir = errors.New("recorder: empty dir")
	ErrClosed   = errors.New("recorder: closed")
)

// Record is one line of the log.
type Record struct {
	Type   string    `json:"type"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
	Data   any       `json:"data,omitempty"`
}

type Recorder struct {
	dir    string
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	written uint64
	closed  bool
}

func Open(dir, prefix string) (*Recorder, error) {
	if dir == "" {
		return nil, ErrEmptyDir
	}
	if prefix == "" {
		prefix = "events"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	return &Recorder{dir: dir, prefix: prefix, now: time.Now}, nil
}

// Handler records every bus event it receives.
func (r *Recorder) Handler() bus.EventHandler {
	return func(ev bus.Event) error {
		return r.Write(Record{Type: ev.Type(), Source: ev.Source(), At: ev.Timestamp(), Data: ev.Data()})
	}
}

func (r *Recorder) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("recorder: encode: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	hour := r.now().UTC().Format("2006-01-02-15")
	if hour != r.curHour {
		if err := r.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return err
	}
	r.written++
	return r.w.Flush()
}

// Written reports how many records were appended.
func (r *Recorder) Written() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Path returns the file for the current hour.
func (r *Recorder) Path() string {
	return r.pathForHour(r.now().UTC().Format("2006-01-02-15"))
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.closeLocked()
}

func (r *Recorder) rotateLocked(hour string) error {
	if err := r.closeLocked(); err != nil {
		return err
	}
	f, err := os.OpenFile(r.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("recorder: %w", err)
	}
	r.f = f
	r.enc = enc
	r.w = bufio.NewWriterSize(enc, 64*1024)
	r.curHour = hour
	return nil
}

func (r *Recorder) closeLocked() error {
	var err error
	if r.w != nil {
		err = r.w.Flush()
	}
	if r.enc != nil {
		err = errors.Join(err, r.enc.Close())
		r.enc = nil
	}
	if r.f != nil {
		err = errors.Join(err, r.f.Close())
		r.f = nil
	}
	r.w = nil
	r.curHour = ""
	return err
}

func (r *Recorder) pathForHour(hour string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s-%s.jsonl.zst", r.prefix, hour))
}
