package store

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLookup struct {
	calls  int
	result domain.UnitFactor
	found  bool
	err    error
}

func (m *countingLookup) UnitFactor(_ context.Context, _ int, _ string) (domain.UnitFactor, bool, error) {
	m.calls++
	return m.result, m.found, m.err
}

type hitCounter struct{ hits, misses int }

func (h *hitCounter) ElementCacheResult(hit bool) {
	if hit {
		h.hits++
		return
	}
	h.misses++
}

func TestCachedFactors_Hit(t *testing.T) {
	inner := &countingLookup{result: domain.UnitFactor{Factor: 0.1, Unit: "C"}, found: true}
	rec := &hitCounter{}
	cached := NewCachedFactors(inner, 10, rec)

	for range 3 {
		uf, ok, err := cached.UnitFactor(context.Background(), 1, "TX1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.InDelta(t, 0.1, uf.Factor, 1e-12)
	}

	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, 2, rec.hits)
	assert.Equal(t, 1, rec.misses)
}

func TestCachedFactors_ProvidersAreSeparate(t *testing.T) {
	inner := &countingLookup{result: domain.UnitFactor{Factor: 1}, found: true}
	cached := NewCachedFactors(inner, 10, nil)

	_, _, _ = cached.UnitFactor(context.Background(), 1, "TX1")
	_, _, _ = cached.UnitFactor(context.Background(), 2, "TX1")

	assert.Equal(t, 2, inner.calls)
}

func TestCachedFactors_MissNotCached(t *testing.T) {
	inner := &countingLookup{}
	cached := NewCachedFactors(inner, 10, nil)

	_, ok, err := cached.UnitFactor(context.Background(), 1, "TX9")
	require.NoError(t, err)
	assert.False(t, ok)
	_, _, _ = cached.UnitFactor(context.Background(), 1, "TX9")

	assert.Equal(t, 2, inner.calls)
}

func TestCachedFactors_Error(t *testing.T) {
	inner := &countingLookup{err: errors.New("db down")}
	cached := NewCachedFactors(inner, 10, nil)

	_, _, err := cached.UnitFactor(context.Background(), 1, "TX1")
	assert.Error(t, err)
	assert.Equal(t, 0, cached.cache.len())
}

func TestCachedFactors_Purge(t *testing.T) {
	inner := &countingLookup{result: domain.UnitFactor{Factor: 1}, found: true}
	cached := NewCachedFactors(inner, 10, nil)

	_, _, _ = cached.UnitFactor(context.Background(), 1, "TX1")
	cached.Purge()
	_, _, _ = cached.UnitFactor(context.Background(), 1, "TX1")

	assert.Equal(t, 2, inner.calls)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.UnitFactor{Factor: 1})
	c.put("b", domain.UnitFactor{Factor: 2})
	c.put("c", domain.UnitFactor{Factor: 3}) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	uf, ok := c.get("b")
	assert.True(t, ok)
	assert.InDelta(t, 2.0, uf.Factor, 0)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.UnitFactor{Factor: 1})
	c.put("b", domain.UnitFactor{Factor: 2})
	c.get("a")
	c.put("c", domain.UnitFactor{Factor: 3}) // evicts "b"

	_, ok := c.get("a")
	assert.True(t, ok)
	_, ok = c.get("b")
	assert.False(t, ok)
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.UnitFactor{Factor: 1})
	c.put("a", domain.UnitFactor{Factor: 10})

	uf, ok := c.get("a")
	assert.True(t, ok)
	assert.InDelta(t, 10.0, uf.Factor, 0)
	assert.Equal(t, 1, c.len())
}
