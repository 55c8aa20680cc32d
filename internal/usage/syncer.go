package usage

import (
	"context"
	"fmt"
	"time"
)

// PublishFunc ships attempt records off-node (e.g. to Redis). The records of
// one request are always adjacent and in attempt order. A returned error
// leaves the whole batch unsynced.
type PublishFunc func(ctx context.Context, records []Record) error

// SyncerConfig holds configuration for the background syncer.
type SyncerConfig struct {
	// Store is the local usage database
	Store *Store

	// PublishFn sends records to the external system
	PublishFn PublishFunc

	// Interval between sync cycles (default: 60s)
	Interval time.Duration

	// MaxBackoff caps the wait after consecutive publish failures
	// (default: 8 x Interval)
	MaxBackoff time.Duration

	// BatchSize is the max requests per sync cycle (default: 50)
	BatchSize int

	// SettleAfter holds back requests whose latest attempt is younger than
	// this, so a request still falling back is published whole (default: 0)
	SettleAfter time.Duration

	// FlushTimeout bounds the final sync when Start's context ends
	// (default: 5s)
	FlushTimeout time.Duration

	// LogFn is called for log messages (optional)
	LogFn func(level, msg string)
}

// Syncer publishes settled requests from the ledger, backing off while the
// sink is failing and flushing once more on shutdown.
type Syncer struct {
	cfg SyncerConfig
	now func() time.Time
}

// NewSyncer creates a new usage syncer.
func NewSyncer(cfg SyncerConfig) *Syncer {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 8 * cfg.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 5 * time.Second
	}
	return &Syncer{cfg: cfg, now: time.Now}
}

// Start syncs every Interval until ctx is done, then makes one final sync
// bounded by FlushTimeout and returns ctx.Err(). After a failed cycle the wait
// doubles, up to MaxBackoff; a successful cycle resets it.
func (s *Syncer) Start(ctx context.Context) error {
	wait := s.cfg.Interval
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush(ctx)
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			wait = min(wait*2, s.cfg.MaxBackoff)
			s.log("warning", fmt.Sprintf("usage sync: %v (next attempt in %s)", err, wait))
		} else {
			wait = s.cfg.Interval
		}
		timer.Reset(wait)
	}
}

func (s *Syncer) flush(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FlushTimeout)
	defer cancel()
	if _, err := s.SyncOnce(flushCtx); err != nil {
		s.log("warning", fmt.Sprintf("usage sync: final flush: %v", err))
	}
}

// SyncOnce publishes up to BatchSize settled requests and marks their
// attempts synced. It returns the number of requests published.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	requests, err := s.cfg.Store.PendingRequests(s.cfg.BatchSize, s.now().Add(-s.cfg.SettleAfter))
	if err != nil {
		return 0, err
	}
	if len(requests) == 0 {
		return 0, nil
	}

	var records []Record
	var ids []int64
	failed := 0
	for _, req := range requests {
		if req.Outcome() == "" {
			failed++
		}
		for _, a := range req.Attempts {
			records = append(records, a)
			ids = append(ids, a.ID)
		}
	}

	if err := s.cfg.PublishFn(ctx, records); err != nil {
		return 0, fmt.Errorf("publish %d requests: %w", len(requests), err)
	}
	if err := s.cfg.Store.MarkSynced(ids); err != nil {
		return 0, fmt.Errorf("mark synced: %w", err)
	}

	s.log("info", fmt.Sprintf("usage sync: published %d requests (%d attempts, %d exhausted)", len(requests), len(records), failed))
	return len(requests), nil
}

func (s *Syncer) log(level, msg string) {
	if s.cfg.LogFn != nil {
		s.cfg.LogFn(level, msg)
	}
}
