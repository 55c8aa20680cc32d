// Package redis publishes routing usage to Redis for the rest of the fleet.
//
// Each attempt record is appended to a stream (durable, replayable by
// consumers) and announced on a Pub/Sub channel (live dashboards). The
// Publisher's Publish method has the usage.PublishFunc signature so it can be
// plugged straight into a usage.Syncer.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aceteam-ai/guardian/internal/usage"
)

const (
	// DefaultStream is the stream attempt records are appended to
	DefaultStream = "guardian:usage:stream"

	// DefaultChannel is the Pub/Sub channel usage events are published on
	DefaultChannel = "guardian:usage"

	// DefaultMaxLen caps the stream length (approximate trimming)
	DefaultMaxLen = 10000
)

// UsageEvent is the Pub/Sub payload announcing a published batch.
type UsageEvent struct {
	Version     string   `json:"version"`
	Type        string   `json:"type"` // "batch"
	PublisherID string   `json:"publisherId"`
	Timestamp   string   `json:"timestamp"`
	Count       int      `json:"count"`
	Sources     []string `json:"sources,omitempty"`
}

// Publisher wraps Redis operations for usage publishing.
type Publisher struct {
	client      *redis.Client
	url         string
	password    string
	publisherID string
	stream      string
	channel     string
	maxLen      int64
}

// PublisherConfig holds configuration for the Redis publisher.
type PublisherConfig struct {
	// URL is the redis:// address Connect dials (required)
	URL string

	// Password overrides any password in URL when set
	Password string

	Stream   string
	Channel  string
	MaxLen   int64
}

// NewPublisher creates a publisher. Call Connect before publishing.
func NewPublisher(cfg PublisherConfig) *Publisher {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.MaxLen == 0 {
		cfg.MaxLen = DefaultMaxLen
	}

	return &Publisher{
		url:         cfg.URL,
		password:    cfg.Password,
		publisherID: fmt.Sprintf("guardian-%s", uuid.New().String()[:8]),
		stream:      cfg.Stream,
		channel:     cfg.Channel,
		maxLen:      cfg.MaxLen,
	}
}

// Connect establishes the connection configured in PublisherConfig.
func (p *Publisher) Connect(ctx context.Context) error {
	if p.url == "" {
		return fmt.Errorf("redis URL is not configured")
	}
	opts, err := redis.ParseURL(p.url)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if p.password != "" {
		opts.Password = p.password
	}

	p.client = redis.NewClient(opts)

	// Verify connection
	if err := p.client.Ping(ctx).Err(); err != nil {
		p.client.Close()
		p.client = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return nil
}

// Publish appends each record to the stream in one pipeline, then announces
// the batch on the channel. A failed announcement does not fail the publish.
func (p *Publisher) Publish(ctx context.Context, records []usage.Record) error {
	if p.client == nil {
		return fmt.Errorf("publisher not connected")
	}
	if len(records) == 0 {
		return nil
	}

	pipe := p.client.Pipeline()
	seen := make(map[string]bool)
	var sources []string
	for _, r := range records {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: true,
			Values: recordFields(r, p.publisherID),
		})
		if !seen[r.Source] {
			seen[r.Source] = true
			sources = append(sources, r.Source)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append usage records: %w", err)
	}

	event := UsageEvent{
		Version:     "1.0",
		Type:        "batch",
		PublisherID: p.publisherID,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Count:       len(records),
		Sources:     sources,
	}
	eventJSON, _ := json.Marshal(event)
	p.client.Publish(ctx, p.channel, eventJSON)

	return nil
}

// recordFields flattens a record into stream entry fields.
func recordFields(r usage.Record, publisherID string) map[string]interface{} {
	fields := map[string]interface{}{
		"request_id":     r.RequestID,
		"attempt":        r.Attempt,
		"source":         r.Source,
		"model":          r.Model,
		"archetype":      r.Archetype,
		"status":         r.Status,
		"started_at":     r.StartedAt.UTC().Format(time.RFC3339Nano),
		"completed_at":   r.CompletedAt.UTC().Format(time.RFC3339Nano),
		"duration_ms":    r.DurationMs,
		"request_bytes":  r.RequestBytes,
		"response_bytes": r.ResponseBytes,
		"publisher_id":   publisherID,
	}
	if r.ErrorMessage != "" {
		fields["error_message"] = r.ErrorMessage
	}
	return fields
}

// Recent returns up to count of the newest records on the stream, newest first.
func (p *Publisher) Recent(ctx context.Context, count int64) ([]usage.Record, error) {
	if p.client == nil {
		return nil, fmt.Errorf("publisher not connected")
	}
	msgs, err := p.client.XRevRangeN(ctx, p.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read usage stream: %w", err)
	}

	records := make([]usage.Record, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, parseRecord(msg))
	}
	return records, nil
}

// parseRecord converts a stream message back into a record.
func parseRecord(msg redis.XMessage) usage.Record {
	str := func(k string) string {
		s, _ := msg.Values[k].(string)
		return s
	}
	num := func(k string) int64 {
		n, _ := strconv.ParseInt(str(k), 10, 64)
		return n
	}
	ts := func(k string) time.Time {
		t, _ := time.Parse(time.RFC3339Nano, str(k))
		return t
	}

	return usage.Record{
		RequestID:     str("request_id"),
		Attempt:       int(num("attempt")),
		Source:        str("source"),
		Model:         str("model"),
		Archetype:     str("archetype"),
		Status:        str("status"),
		ErrorMessage:  str("error_message"),
		StartedAt:     ts("started_at"),
		CompletedAt:   ts("completed_at"),
		DurationMs:    num("duration_ms"),
		RequestBytes:  num("request_bytes"),
		ResponseBytes: num("response_bytes"),
		Synced:        true,
	}
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// PublisherID returns the unique publisher identifier.
func (p *Publisher) PublisherID() string {
	return p.publisherID
}

// Stream returns the stream name this publisher appends to.
func (p *Publisher) Stream() string {
	return p.stream
}
