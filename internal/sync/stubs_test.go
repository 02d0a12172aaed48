package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"sync/atomic"

	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

type stubManifest struct {
	entries []interfaces.ManifestEntry
	err     error
}

func (s stubManifest) Load(context.Context, string) ([]interfaces.ManifestEntry, error) {
	return s.entries, s.err
}

type stubFetcher struct {
	mu       stdsync.Mutex
	docs     map[string]string
	fails    map[string]error
	calls    map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
	gate     chan struct{}
}

func newStubFetcher(docs map[string]string) *stubFetcher {
	return &stubFetcher{docs: docs, fails: map[string]error{}, calls: map[string]int{}}
}

func (s *stubFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if current <= peak || s.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[location]++
	if err := s.fails[location]; err != nil {
		return nil, err
	}
	doc, ok := s.docs[location]
	if !ok {
		return nil, fmt.Errorf("not found: %s", location)
	}
	return []byte(doc), nil
}

type publishCall struct {
	req interfaces.PublishRequest
}

type stubPublisher struct {
	calls   []publishCall
	fail    map[string]error
	pages   map[string]int
	nextID  int
	dryRun  bool
	onCall  func(req interfaces.PublishRequest)
	parents map[string]int
}

func newStubPublisher() *stubPublisher {
	return &stubPublisher{fail: map[string]error{}, pages: map[string]int{}, parents: map[string]int{}, nextID: 100}
}

func (s *stubPublisher) Publish(_ context.Context, req interfaces.PublishRequest) (*interfaces.PublishResult, error) {
	s.calls = append(s.calls, publishCall{req: req})
	if s.onCall != nil {
		s.onCall(req)
	}
	if err := s.fail[req.Slug]; err != nil {
		return nil, err
	}
	parentID := 0
	if req.ParentSlug != "" {
		parentID = s.pages[req.ParentSlug]
	}
	s.parents[req.Slug] = parentID

	id, exists := s.pages[req.Slug]
	if s.dryRun {
		return &interfaces.PublishResult{ID: id, ParentID: parentID, Action: interfaces.PublishActionDryRun}, nil
	}
	action := interfaces.PublishActionUpdated
	if !exists {
		s.nextID++
		id = s.nextID
		s.pages[req.Slug] = id
		action = interfaces.PublishActionCreated
	}
	return &interfaces.PublishResult{ID: id, ParentID: parentID, Action: action, Link: "https://example.org/" + req.Slug + "/"}, nil
}

func (s *stubPublisher) slugs() []string {
	out := make([]string, 0, len(s.calls))
	for _, call := range s.calls {
		out = append(out, call.req.Slug)
	}
	return out
}

type memoryStore struct {
	hashes   map[string]string
	flushes  int
	flushErr error
	// persisted mirrors what the last successful Flush wrote.
	persisted map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{hashes: map[string]string{}, persisted: map[string]string{}}
}

func (m *memoryStore) Get(source string) (string, bool) {
	hash, ok := m.hashes[source]
	return hash, ok
}

func (m *memoryStore) Set(source, hash string) { m.hashes[source] = hash }

func (m *memoryStore) Len() int { return len(m.hashes) }

func (m *memoryStore) Flush() error {
	m.flushes++
	if m.flushErr != nil {
		return m.flushErr
	}
	m.persisted = make(map[string]string, len(m.hashes))
	for k, v := range m.hashes {
		m.persisted[k] = v
	}
	return nil
}

var errBoom = errors.New("boom")
