package sensors

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Reader is one data source.
type Reader interface {
	Kind() Kind
	FetchOnce(ctx context.Context) (Reading, error)
	BeginStreaming(ctx context.Context) error
	EndStreaming()
	Live() bool
}

// Config holds configuration for the aggregator.
type Config struct {
	// Readers registers one source per kind. A later reader for the same
	// kind replaces an earlier one.
	Readers []Reader

	// Monitor is the spec used by the continuous loop
	Monitor Spec

	// Interval between continuous collections (default: 30s)
	Interval time.Duration

	// LogFn is called for log messages (if nil, warnings go to stderr)
	LogFn func(level, msg string)
}

// Aggregator fans a Spec out to its readers and joins the results.
// Concurrent Collect calls are independent.
type Aggregator struct {
	readers  map[Kind]Reader
	monitor  Spec
	interval time.Duration
	logFn    func(level, msg string)
	now      func() time.Time

	last atomic.Pointer[Snapshot]

	// mu guards the monitoring state below
	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	streaming []Reader
}

// New creates an aggregator.
func New(cfg Config) *Aggregator {
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}
	readers := make(map[Kind]Reader, len(cfg.Readers))
	for _, r := range cfg.Readers {
		readers[r.Kind()] = r
	}
	return &Aggregator{
		readers:  readers,
		monitor:  cfg.Monitor,
		interval: interval,
		logFn:    cfg.LogFn,
		now:      time.Now,
	}
}

// log outputs a message - uses logFn callback if set, otherwise prints warnings to stderr.
func (a *Aggregator) log(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if a.logFn != nil {
		a.logFn(level, msg)
		return
	}
	if level == "error" || level == "warning" {
		fmt.Fprintf(os.Stderr, "%s\n", msg)
	}
}

// Collect fetches every enabled kind concurrently and returns once all
// fetches finish or the spec's deadline elapses, whichever is first. It never
// fails: failed, timed-out and disabled kinds are recorded in Snapshot.Absent.
// The result replaces the cached last snapshot.
func (a *Aggregator) Collect(ctx context.Context, spec Spec) *Snapshot {
	snap := a.collect(ctx, spec)
	a.last.Store(snap)
	return snap
}

func (a *Aggregator) collect(ctx context.Context, spec Spec) *Snapshot {
	ctx, cancel := context.WithTimeout(ctx, spec.deadline())
	defer cancel()

	snap := &Snapshot{Absent: make(map[Kind]Absence)}
	for _, k := range AllKinds() {
		if !spec.Enables(k) {
			snap.Absent[k] = AbsentDisabled
		}
	}

	// mu guards snap and closed; fetches that finish after closed is set
	// are discarded
	var mu sync.Mutex
	closed := false
	pending := make(map[Kind]bool)

	var g errgroup.Group
	for _, kind := range spec.kinds() {
		reader, ok := a.readers[kind]
		if !ok {
			snap.Absent[kind] = AbsentFailed
			a.log("warning", "sensor %s: no reader registered", kind)
			continue
		}
		pending[kind] = true

		g.Go(func() error {
			reading, err := fetch(ctx, reader, kind)

			mu.Lock()
			defer mu.Unlock()
			if closed {
				return nil
			}
			delete(pending, kind)

			if err == nil && snap.set(reading) && snap.Has(kind) {
				return nil
			}
			if err == nil {
				err = fmt.Errorf("%w: %T", ErrUnexpectedReading, reading)
			}
			snap.Absent[kind] = AbsentFailed
			a.log("warning", "sensor %s: %v", kind, err)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	closed = true
	for kind := range pending {
		snap.Absent[kind] = AbsentTimedOut
	}
	snap.CapturedAt = a.now().UTC()
	mu.Unlock()

	if len(pending) > 0 {
		a.log("debug", "sensor collect: deadline reached with %d source(s) outstanding", len(pending))
	}
	return snap
}

// fetch runs one FetchOnce, checks the reading matches kind, and converts a
// panic into an error.
func fetch(ctx context.Context, r Reader, kind Kind) (reading Reading, err error) {
	defer func() {
		if p := recover(); p != nil {
			reading, err = nil, fmt.Errorf("%w: %v", ErrReaderPanic, p)
		}
	}()
	reading, err = r.FetchOnce(ctx)
	if err != nil {
		return nil, err
	}
	if reading == nil || reading.Kind() != kind {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedReading, reading)
	}
	return reading, nil
}

// Last returns the most recent snapshot, or nil if Collect was never called.
func (a *Aggregator) Last() *Snapshot {
	return a.last.Load()
}

// Readers returns the registered kinds and whether each reader is live.
func (a *Aggregator) Readers() map[Kind]bool {
	out := make(map[Kind]bool, len(a.readers))
	for k, r := range a.readers {
		out[k] = r.Live()
	}
	return out
}

// StartContinuous begins streaming on each reader enabled in the monitor spec
// and starts a background loop that refreshes the cached snapshot every
// interval. A reader that fails to start is logged and skipped. Returns
// ErrAlreadyMonitoring if the loop is already running. Cancelling ctx ends
// monitoring the same way Stop does.
func (a *Aggregator) StartContinuous(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return ErrAlreadyMonitoring
	}

	loopCtx, cancel := context.WithCancel(ctx)

	var streaming []Reader
	for _, kind := range a.monitor.kinds() {
		reader, ok := a.readers[kind]
		if !ok {
			continue
		}
		if err := reader.BeginStreaming(loopCtx); err != nil {
			a.log("warning", "sensor %s: begin streaming failed: %v", kind, err)
			continue
		}
		streaming = append(streaming, reader)
	}

	a.cancel = cancel
	a.done = make(chan struct{})
	a.streaming = streaming

	go a.monitorLoop(loopCtx, a.done)

	a.log("info", "sensor monitoring started (%d of %d sources streaming)", len(streaming), len(a.monitor.kinds()))
	return nil
}

func (a *Aggregator) monitorLoop(ctx context.Context, done chan struct{}) {
	defer a.loopExited(ctx, done)

	a.refresh(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refresh(ctx)
		}
	}
}

// refresh collects the monitor spec and caches the result. A collection cut
// short by the loop ending keeps the previous snapshot.
func (a *Aggregator) refresh(ctx context.Context) {
	snap := a.collect(ctx, a.monitor)
	if ctx.Err() != nil {
		return
	}
	a.last.Store(snap)
}

// loopExited releases the monitoring state when the loop ended on its own,
// i.e. the StartContinuous context was cancelled. After Stop it only signals
// done, since Stop has already taken the state.
func (a *Aggregator) loopExited(ctx context.Context, done chan struct{}) {
	defer close(done)

	a.mu.Lock()
	if a.done != done {
		a.mu.Unlock()
		return
	}
	cancel, streaming := a.cancel, a.streaming
	a.cancel, a.done, a.streaming = nil, nil, nil
	a.mu.Unlock()

	cancel()
	for _, r := range streaming {
		r.EndStreaming()
	}
	a.log("info", "sensor monitoring ended: %v", context.Cause(ctx))
}

// Stop ends the continuous loop and streaming. It is a no-op when not
// monitoring.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if a.cancel == nil {
		a.mu.Unlock()
		return
	}
	cancel, done, streaming := a.cancel, a.done, a.streaming
	a.cancel, a.done, a.streaming = nil, nil, nil
	a.mu.Unlock()

	cancel()
	<-done
	for _, r := range streaming {
		r.EndStreaming()
	}
	a.log("info", "sensor monitoring stopped")
}

// Monitoring reports whether the continuous loop is running.
func (a *Aggregator) Monitoring() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

// MonitorSpec returns the spec of the running loop, or ErrNotMonitoring.
func (a *Aggregator) MonitorSpec() (Spec, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel == nil {
		return Spec{}, ErrNotMonitoring
	}
	return a.monitor, nil
}
