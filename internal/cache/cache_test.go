package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/insights-agent/internal/schema"
)

func kpiFragment(value float64) *schema.Fragment {
	return &schema.Fragment{
		Ref:  "kpi.sales_summary",
		Kind: schema.OutputKPI,
		KPIs: map[string]float64{"total_sales": value},
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	c := New(time.Minute, 10)

	_, ok := c.Get("k1")
	assert.False(t, ok)

	c.Set("k1", kpiFragment(100))
	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, 100.0, got.KPIs["total_sales"])
}

func TestExpiryEvictsOnRead(t *testing.T) {
	c := New(15*time.Minute, 10)
	clock := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Set("k1", kpiFragment(100))

	clock = clock.Add(14 * time.Minute)
	_, ok := c.Get("k1")
	assert.True(t, ok, "entry within TTL must hit")

	clock = clock.Add(2 * time.Minute)
	_, ok = c.Get("k1")
	assert.False(t, ok, "entry past TTL must miss")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 0, stats.Size)
}

func TestLastWriterWins(t *testing.T) {
	c := New(time.Minute, 10)
	c.Set("k1", kpiFragment(1))
	c.Set("k1", kpiFragment(2))

	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, 2.0, got.KPIs["total_sales"])
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	c := New(time.Hour, 3)
	clock := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), kpiFragment(float64(i)))
		clock = clock.Add(time.Second)
	}
	c.Set("k3", kpiFragment(3))

	_, ok := c.Get("k0")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("k3")
	assert.True(t, ok)
}

func TestInvalidateClearsAll(t *testing.T) {
	c := New(time.Minute, 10)
	c.Set("k1", kpiFragment(1))
	c.Set("k2", kpiFragment(2))

	n := c.Invalidate()
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, c.Stats().Size)

	_, ok := c.Get("k1")
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute, 100)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n%4)
			for j := 0; j < 100; j++ {
				c.Set(key, kpiFragment(float64(j)))
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Stats().Size, 4)
}

func TestHitRate(t *testing.T) {
	c := New(time.Minute, 10)
	c.Set("k1", kpiFragment(1))
	c.Get("k1")
	c.Get("k1")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.6667, stats.HitRate, 0.001)
}
