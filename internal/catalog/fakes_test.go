package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lepinkainen/bookhaven/internal/book"
	"github.com/lepinkainen/bookhaven/internal/cache"
	"github.com/lepinkainen/bookhaven/internal/googlebooks"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubClient serves volumes from a map and counts calls.
type stubClient struct {
	mu          sync.Mutex
	volumes     map[string]googlebooks.Volume
	fetchErr    error
	search      []googlebooks.Volume
	searchErr   error
	fetchCalls  atomic.Int32
	searchCalls atomic.Int32
	queries     []string
	limits      []int
	block       chan struct{}
	started     chan struct{}
}

func newStubClient() *stubClient {
	return &stubClient{volumes: map[string]googlebooks.Volume{}}
}

func (c *stubClient) FetchByKey(ctx context.Context, key string) (*googlebooks.Volume, error) {
	c.fetchCalls.Add(1)
	if c.started != nil {
		c.started <- struct{}{}
	}
	if c.block != nil {
		<-c.block
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	v, ok := c.volumes[key]
	if !ok {
		return nil, googlebooks.ErrNotFound
	}
	return &v, nil
}

func (c *stubClient) Search(ctx context.Context, query string, offset, limit int) ([]googlebooks.Volume, error) {
	c.searchCalls.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	c.limits = append(c.limits, limit)
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	return c.search, nil
}

func (c *stubClient) setVolume(v googlebooks.Volume) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volumes[v.ID] = v
}

// memStore is an in-memory Store that counts upserts.
type memStore struct {
	mu          sync.Mutex
	records     map[string]book.Record
	clock       func() time.Time
	getErr      error
	upsertErr   error
	upsertCalls map[string]int
}

func newMemStore(clock func() time.Time) *memStore {
	return &memStore{
		records:     map[string]book.Record{},
		clock:       clock,
		upsertCalls: map[string]int{},
	}
}

func (s *memStore) Get(_ context.Context, key string) (*book.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[key]
	if !ok {
		return nil, cache.ErrAbsent
	}
	return &rec, nil
}

func (s *memStore) Upsert(_ context.Context, rec book.Record) (book.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls[rec.Key]++
	if s.upsertErr != nil {
		return book.Record{}, s.upsertErr
	}
	rec.RefreshedAt = s.clock().UTC()
	s.records[rec.Key] = rec
	return rec, nil
}

func (s *memStore) ListByCategory(_ context.Context, category, excludeKey string, limit int) ([]book.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []book.Record{}
	for key, rec := range s.records {
		if len(out) >= limit {
			break
		}
		if key == excludeKey || rec.Category == nil || !strings.Contains(*rec.Category, category) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *memStore) put(rec book.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Key] = rec
}

func (s *memStore) upserts(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCalls[key]
}

var errBoom = errors.New("boom")

func strPtr(s string) *string { return &s }

func volume(id, title string, categories ...string) googlebooks.Volume {
	return googlebooks.Volume{
		ID: id,
		VolumeInfo: &googlebooks.VolumeInfo{
			Title:      strPtr(title),
			Authors:    []string{"Author " + id},
			Categories: categories,
		},
	}
}
