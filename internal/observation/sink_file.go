package observation

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xenocomm/coordinator/internal/model"
)

// FileSink is the append-only line-delimited JSON persistence sink
// (spec.md §4.A "Persistence sink", §6 "Persisted state layout"),
// grounded on the teacher's buffered-writer-with-own-lock pattern (seen
// in orchestration/redis_task_queue.go's buffered op pattern, adapted to
// a local file instead of Redis).
type FileSink struct {
	mu       sync.Mutex
	dir      string
	gzip     bool
	maxBytes int64
	bufSize  int

	seq       int
	buf       []model.FlowEvent
	file      *os.File
	writer    *bufio.Writer
	gzWriter  *gzip.Writer
	bytesWritten int64
}

// NewFileSink creates a sink rooted at dir. The directory is created if
// it does not exist.
func NewFileSink(dir string, gz bool, maxBytes int64, bufSize int) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("observation: create persistence dir: %w", err)
	}
	if bufSize <= 0 {
		bufSize = 100
	}
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	s := &FileSink{dir: dir, gzip: gz, maxBytes: maxBytes, bufSize: bufSize}
	if err := s.rotate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSink) fileName() string {
	ts := time.Now().UTC().Format("20060102_150405")
	name := fmt.Sprintf("flows_%s_%03d.jsonl", ts, s.seq)
	if s.gzip {
		name += ".gz"
	}
	return name
}

func (s *FileSink) rotate() error {
	if s.file != nil {
		if s.gzWriter != nil {
			s.gzWriter.Close()
		}
		s.writer.Flush()
		s.file.Close()
	}
	s.seq++
	path := filepath.Join(s.dir, s.fileName())
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("observation: open flow log: %w", err)
	}
	s.file = f
	s.bytesWritten = 0
	if s.gzip {
		s.gzWriter = gzip.NewWriter(f)
		s.writer = bufio.NewWriter(s.gzWriter)
	} else {
		s.gzWriter = nil
		s.writer = bufio.NewWriter(f)
	}
	return nil
}

// Write buffers e and flushes when the buffer reaches its configured size.
func (s *FileSink) Write(e model.FlowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, e)
	if len(s.buf) >= s.bufSize {
		return s.flushLocked()
	}
	return nil
}

// Flush drains any buffered events to disk.
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *FileSink) flushLocked() error {
	for _, e := range s.buf {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("observation: marshal flow event: %w", err)
		}
		data = append(data, '\n')
		n, err := s.writer.Write(data)
		if err != nil {
			return fmt.Errorf("observation: write flow event: %w", err)
		}
		s.bytesWritten += int64(n)
	}
	s.buf = s.buf[:0]
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if s.gzWriter != nil {
		if err := s.gzWriter.Flush(); err != nil {
			return err
		}
	}
	if s.bytesWritten >= s.maxBytes {
		return s.rotate()
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushLocked(); err != nil {
		return err
	}
	if s.gzWriter != nil {
		if err := s.gzWriter.Close(); err != nil {
			return err
		}
	}
	return s.file.Close()
}
