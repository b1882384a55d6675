// Package log keeps the delivery history of finished packets as hourly,
// zstd-compressed JSON lines.
package log

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelpipes.ai/internal/sim/pipes/transport"
)

const (
	deliveryPrefix = "deliveries-"
	deliverySuffix = ".jsonl.zst"
	hourLayout     = "2006-01-02-15"
)

// DeliveryDir is where a DeliveryLogger rooted at dataDir writes.
func DeliveryDir(dataDir string) string { return filepath.Join(dataDir, "deliveries") }

// segment is the open file for one UTC hour.
type segment struct {
	hour string
	file *os.File
	zw   *zstd.Encoder
	enc  *json.Encoder
}

func openSegment(dir, hour string) (*segment, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, deliveryPrefix+hour+deliverySuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	// Reopening an hour appends a new zstd frame; readers decode frames back to back.
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{hour: hour, file: f, zw: zw, enc: json.NewEncoder(zw)}, nil
}

func (s *segment) close() error {
	err := s.zw.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}

type LoggerOption func(*DeliveryLogger)

// WithClock replaces time.Now for choosing the hourly file.
func WithClock(now func() time.Time) LoggerOption {
	return func(l *DeliveryLogger) {
		if now != nil {
			l.clock = now
		}
	}
}

// DeliveryLogger writes one record per finished packet. It satisfies
// transport.Recorder and is safe for concurrent use.
type DeliveryLogger struct {
	dir   string
	clock func() time.Time

	mu  sync.Mutex
	cur *segment
}

func NewDeliveryLogger(dataDir string, opts ...LoggerOption) *DeliveryLogger {
	l := &DeliveryLogger{dir: DeliveryDir(dataDir), clock: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordDelivery appends rec to the current hour's file and flushes it, so a
// crash loses at most the record being written.
func (l *DeliveryLogger) RecordDelivery(rec transport.DeliveryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hour := l.clock().UTC().Format(hourLayout)
	if l.cur == nil || l.cur.hour != hour {
		if l.cur != nil {
			if err := l.cur.close(); err != nil {
				return fmt.Errorf("close %s: %w", l.cur.hour, err)
			}
			l.cur = nil
		}
		seg, err := openSegment(l.dir, hour)
		if err != nil {
			return err
		}
		l.cur = seg
	}
	if err := l.cur.enc.Encode(rec); err != nil {
		return err
	}
	return l.cur.zw.Flush()
}

func (l *DeliveryLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur == nil {
		return nil
	}
	err := l.cur.close()
	l.cur = nil
	return err
}

// ReadDeliveries decodes every delivery file in dir, oldest hour first.
func ReadDeliveries(dir string) ([]transport.DeliveryRecord, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var hours []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, deliveryPrefix) || !strings.HasSuffix(name, deliverySuffix) {
			continue
		}
		hours = append(hours, name)
	}
	sort.Strings(hours)

	var out []transport.DeliveryRecord
	for _, name := range hours {
		if out, err = appendDeliveries(out, filepath.Join(dir, name)); err != nil {
			return out, fmt.Errorf("%s: %w", name, err)
		}
	}
	return out, nil
}

func appendDeliveries(out []transport.DeliveryRecord, path string) ([]transport.DeliveryRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return out, err
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)
	for {
		var rec transport.DeliveryRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
