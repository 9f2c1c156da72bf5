package observation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/xenocomm/coordinator/internal/model"
)

// RedisSink is an alternative append-only persistence sink that XADDs
// each FlowEvent to a Redis stream, grounded on the teacher's
// orchestration/redis_task_queue.go Redis-client wiring. It is a log
// transport, not a queryable store: nothing in this package reads the
// stream back by key or index.
type RedisSink struct {
	mu     sync.Mutex
	client *redis.Client
	stream string
	buf    []model.FlowEvent
	bufCap int
}

// NewRedisSink connects to rawURL (e.g. "redis://localhost:6379") and
// returns a sink writing to the given stream key.
func NewRedisSink(rawURL, stream string, bufCap int) (*RedisSink, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("observation: parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if bufCap <= 0 {
		bufCap = 50
	}
	return &RedisSink{client: client, stream: stream, bufCap: bufCap}, nil
}

// Write buffers e and flushes once the buffer reaches its capacity.
func (s *RedisSink) Write(e model.FlowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, e)
	if len(s.buf) >= s.bufCap {
		return s.flushLocked()
	}
	return nil
}

// Flush XADDs every buffered event to the stream.
func (s *RedisSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *RedisSink) flushLocked() error {
	if len(s.buf) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := s.client.Pipeline()
	for _, e := range s.buf {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("observation: marshal flow event: %w", err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			Values: map[string]interface{}{"event": string(data)},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("observation: xadd flow events: %w", err)
	}
	s.buf = s.buf[:0]
	return nil
}

// Close flushes remaining events and closes the Redis client.
func (s *RedisSink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.client.Close()
}
