package sensors

import (
	"context"
	"sync"
)

// stream tracks the live flag shared by the built-in readers.
type stream struct {
	mu   sync.Mutex
	live bool
}

func (s *stream) BeginStreaming(context.Context) error {
	s.mu.Lock()
	s.live = true
	s.mu.Unlock()
	return nil
}

func (s *stream) EndStreaming() {
	s.mu.Lock()
	s.live = false
	s.mu.Unlock()
}

func (s *stream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// FuncReader adapts a fetch function into a Reader. Streaming only toggles
// the live flag.
type FuncReader struct {
	stream
	kind  Kind
	fetch func(ctx context.Context) (Reading, error)
}

// NewFuncReader creates a reader of kind k backed by fetch.
func NewFuncReader(k Kind, fetch func(ctx context.Context) (Reading, error)) *FuncReader {
	return &FuncReader{kind: k, fetch: fetch}
}

func (r *FuncReader) Kind() Kind { return r.kind }

func (r *FuncReader) FetchOnce(ctx context.Context) (Reading, error) {
	return r.fetch(ctx)
}
