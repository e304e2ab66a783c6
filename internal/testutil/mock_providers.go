package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/propsage/compval/internal/domain/market"
	"github.com/propsage/compval/internal/domain/property"
	domainvaluation "github.com/propsage/compval/internal/domain/valuation"
	"github.com/propsage/compval/pkg/errors"
)

// MockCorpus implements market.CorpusProvider over an in-memory sale list.
// Search applies the criteria filters like a real provider would.
type MockCorpus struct {
	Sales          []property.Comparable
	CorpusVersion  string
	SearchErr      error
	PushdownFilter bool

	mu          sync.Mutex
	SearchCalls int
}

func (m *MockCorpus) Search(ctx context.Context, criteria market.SearchCriteria, limit int) ([]property.Comparable, error) {
	m.mu.Lock()
	m.SearchCalls++
	m.mu.Unlock()

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	out := m.Sales
	if m.PushdownFilter {
		out = market.FilterCandidates(out, criteria)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockCorpus) Version(ctx context.Context) (string, error) {
	if m.CorpusVersion == "" {
		return "test-corpus-v1", nil
	}
	return m.CorpusVersion, nil
}

// MockStatsProvider implements market.NeighborhoodStatsProvider from a
// fixed map.  Missing neighborhoods yield a not-found error, matching the
// production contract.
type MockStatsProvider struct {
	Stats map[string]*market.NeighborhoodStats
	Err   error
}

func (m *MockStatsProvider) GetStats(ctx context.Context, neighborhood string) (*market.NeighborhoodStats, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if s, ok := m.Stats[neighborhood]; ok {
		return s, nil
	}
	return nil, errors.NotFound("no statistics for neighborhood " + neighborhood)
}

// MockMetrics counts metric observations for assertions.
type MockMetrics struct {
	mu              sync.Mutex
	Valuations      int
	Fallbacks       map[domainvaluation.FallbackSource]int
	CacheHits       int
	CacheMisses     int
	PanicsRecovered int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{Fallbacks: make(map[domainvaluation.FallbackSource]int)}
}

func (m *MockMetrics) ObserveValuation(level domainvaluation.ConfidenceLevel, score int, comparables int, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Valuations++
}

func (m *MockMetrics) IncFallback(source domainvaluation.FallbackSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fallbacks[source]++
}

func (m *MockMetrics) IncCacheHit(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.CacheHits++
	} else {
		m.CacheMisses++
	}
}

func (m *MockMetrics) IncPanicRecovered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PanicsRecovered++
}

// MockResultCache is an in-memory read-through cache matching the redis
// adapter's GetOrSet contract: a hit decodes the stored JSON into dest, a
// miss runs fetch and stores its encoding.
type MockResultCache struct {
	mu      sync.Mutex
	Entries map[string][]byte
	Hits    int
	Misses  int
	Err     error
}

func NewMockResultCache() *MockResultCache {
	return &MockResultCache{Entries: make(map[string][]byte)}
}

func (c *MockResultCache) GetOrSet(ctx context.Context, key string, dest interface{}, fetch func(ctx context.Context) (interface{}, error)) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	raw, ok := c.Entries[key]
	c.mu.Unlock()
	if ok {
		c.mu.Lock()
		c.Hits++
		c.mu.Unlock()
		return json.Unmarshal(raw, dest)
	}

	value, err := fetch(ctx)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.Misses++
	c.Entries[key] = encoded
	c.mu.Unlock()
	return json.Unmarshal(encoded, dest)
}
