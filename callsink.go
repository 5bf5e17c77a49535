package livehtml

import "sync"

// CallRecord is one component-call metadata entry (spec §5): enough to
// let a later, external validation pass check a component's signature
// against how it was actually invoked.
type CallRecord struct {
	File         string
	Line         uint32
	CallerModule string
	Component    string // componentRef(n): local name, or dotted module path for a remote component
	Attrs        []string
	Slots        []string
}

// CallSink is the module-scoped side channel component-call metadata is
// appended to (spec §5: "the compiler may append per-template
// component-call metadata... into a module-scoped attribute collection").
// A nil CallSink on CompileOptions means the append is skipped silently,
// matching spec §5's "if the module is closed for writing, the append is
// skipped silently" — Compile never requires one.
type CallSink interface {
	Append(CallRecord)
}

// InMemoryCallSink is the default in-process CallSink: a mutex-guarded
// slice, grounded on the teacher's scope.go mutex-guarded registries
// (chtml's Scope implementations serialize access the same way for
// concurrent template compilation).
type InMemoryCallSink struct {
	mu      sync.Mutex
	closed  bool
	records []CallRecord
}

// NewInMemoryCallSink returns a ready, open sink.
func NewInMemoryCallSink() *InMemoryCallSink {
	return &InMemoryCallSink{}
}

// Append records one call, silently doing nothing once Close has been
// called (spec §5: "if the module is closed for writing, the append is
// skipped silently").
func (s *InMemoryCallSink) Append(r CallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.records = append(s.records, r)
}

// Records returns a snapshot of everything appended so far.
func (s *InMemoryCallSink) Records() []CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Close stops accepting further appends; a later validation pass calls
// this once it has taken its snapshot, so any compile that races past
// that point is silently ignored rather than corrupting the pass's view.
func (s *InMemoryCallSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
