// Package router executes completion requests against an ordered fallback
// chain of providers.
//
// Entries are tried strictly in order and each gets exactly one attempt: the
// router chooses among alternatives, it does not make any one of them more
// resilient (wrap a provider in provider.Retrying for that). Usage is counted
// only for the entry that actually served the request.
package router

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aceteam-ai/guardian/internal/provider"
	"github.com/aceteam-ai/guardian/internal/usage"
	"github.com/google/uuid"
)

// Counter is the usage ledger the router increments on success.
type Counter interface {
	Increment(name string)
}

// Recorder receives one record per attempt, successful or not. A record
// error is logged and never fails the route.
type Recorder interface {
	Record(r usage.Record) error
}

// Config holds the router's collaborators.
type Config struct {
	// Counter is incremented once per successful Route (required)
	Counter Counter

	// Recorder persists per-attempt history (optional)
	Recorder Recorder

	// LogFn is called for log messages (if nil, warnings go to stderr)
	LogFn func(level, msg string)
}

// Router is safe for concurrent Route calls; it holds no per-call state.
type Router struct {
	counter  Counter
	recorder Recorder
	logFn    func(level, msg string)
	now      func() time.Time
}

// New creates a router. A nil Counter gets a private usage.Counter.
func New(cfg Config) *Router {
	counter := cfg.Counter
	if counter == nil {
		counter = usage.NewCounter()
	}
	return &Router{
		counter:  counter,
		recorder: cfg.Recorder,
		logFn:    cfg.LogFn,
		now:      time.Now,
	}
}

// Meta carries request metadata that only feeds the attempt records.
type Meta struct {
	RequestID string
	Archetype string
}

// Route sends req to the chain's primary and, when that fails and fallback is
// enabled, to each alternate in order. It returns the first success or an
// *ExhaustedError.
func (r *Router) Route(ctx context.Context, req provider.Request, chain provider.Chain) (provider.Response, error) {
	return r.RouteWithMeta(ctx, req, chain, Meta{})
}

// RouteWithMeta is Route with request metadata attached to the attempt records.
func (r *Router) RouteWithMeta(ctx context.Context, req provider.Request, chain provider.Chain, meta Meta) (provider.Response, error) {
	if err := chain.Validate(); err != nil {
		return provider.Response{}, err
	}
	if meta.RequestID == "" {
		meta.RequestID = uuid.New().String()
	}

	entries := chain.Entries
	if !chain.FallbackEnabled {
		entries = entries[:1]
	}

	var attempts []*AttemptError
	var stopped error
	attempted := 0
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, &AttemptError{Source: entry.Descriptor.Name, Position: i, Err: err})
			stopped = err
			break
		}

		attempted++
		resp, err := r.attempt(ctx, req, entry, i, meta)
		if err == nil {
			r.counter.Increment(entry.Descriptor.Name)
			return resp, nil
		}

		attempts = append(attempts, &AttemptError{Source: entry.Descriptor.Name, Position: i, Err: err})
		r.log("warning", "source %s failed (attempt %d/%d): %v", entry.Descriptor.Name, i+1, len(entries), err)
	}

	exhausted := &ExhaustedError{
		Kind:     ErrAllSourcesExhausted,
		Attempts: attempts,
		Complete: attempted == len(chain.Entries),
	}
	switch {
	case stopped != nil:
		exhausted.Kind = stopped
	case len(entries) == 1:
		exhausted.Kind = ErrPrimaryFailed
	}
	return provider.Response{}, exhausted
}

// attempt runs one provider call and records its outcome.
func (r *Router) attempt(ctx context.Context, req provider.Request, entry provider.Entry, index int, meta Meta) (provider.Response, error) {
	started := r.now()
	resp, err := entry.Provider.Complete(ctx, req)
	completed := r.now()

	if r.recorder == nil {
		return resp, err
	}

	model := req.Model
	if model == "" {
		model = entry.Descriptor.Model
	}
	record := usage.Record{
		RequestID:    meta.RequestID,
		Attempt:      index + 1,
		Source:       entry.Descriptor.Name,
		Model:        model,
		Archetype:    meta.Archetype,
		Status:       usage.StatusSuccess,
		StartedAt:    started,
		CompletedAt:  completed,
		DurationMs:   completed.Sub(started).Milliseconds(),
		RequestBytes: int64(len(req.Prompt)),
	}
	if err != nil {
		record.Status = usage.StatusFailed
		record.ErrorMessage = err.Error()
	} else {
		record.ResponseBytes = int64(len(resp.Content))
	}
	if recErr := r.recorder.Record(record); recErr != nil {
		r.log("warning", "usage record for %s attempt %d dropped: %v", record.Source, record.Attempt, recErr)
	}

	return resp, err
}

func (r *Router) log(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r.logFn != nil {
		r.logFn(level, msg)
		return
	}
	if level == "error" || level == "warning" {
		fmt.Fprintf(os.Stderr, "%s\n", msg)
	}
}
