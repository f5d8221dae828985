package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGeocoder struct {
	calls  int
	result domain.GeocodingResult
	err    error
}

func (m *countingGeocoder) ForwardGeocode(_ context.Context, _ string) (domain.GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func bandungResult() domain.GeocodingResult {
	return domain.GeocodingResult{
		Coordinates:      domain.Coordinates{Lat: -6.9175, Lon: 107.6191},
		PlaceName:        "Bandung",
		FormattedAddress: "Bandung, West Java, Indonesia",
	}
}

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{result: bandungResult()}
	m := testMetrics()
	cached := NewCachedGeocoder(inner, 10, m)

	r1, err := cached.ForwardGeocode(context.Background(), "Bandung")
	require.NoError(t, err)
	r2, err := cached.ForwardGeocode(context.Background(), "  bandung ")
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "normalized query is served from cache")
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("miss")), 0)
}

func TestCachedGeocoder_EmptyResultNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.ForwardGeocode(context.Background(), "Nowhere")
	_, _ = cached.ForwardGeocode(context.Background(), "Nowhere")
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_ErrorPassesThrough(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("boom")}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, err := cached.ForwardGeocode(context.Background(), "Bandung")
	require.Error(t, err)
	assert.Equal(t, 0, cached.cache.len())
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRUCache(2)
	c.put("bandung", domain.GeocodingResult{PlaceName: "Bandung"})
	c.put("bogor", domain.GeocodingResult{PlaceName: "Bogor"})

	_, ok := c.get("bandung")
	require.True(t, ok)

	c.put("cirebon", domain.GeocodingResult{PlaceName: "Cirebon"})

	_, ok = c.get("bogor")
	assert.False(t, ok, "bogor was least recently used")
	_, ok = c.get("bandung")
	assert.True(t, ok)
	_, ok = c.get("cirebon")
	assert.True(t, ok)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_PutOverwrites(t *testing.T) {
	c := newLRUCache(2)
	c.put("bandung", domain.GeocodingResult{PlaceName: "old"})
	c.put("bandung", domain.GeocodingResult{PlaceName: "new"})

	got, ok := c.get("bandung")
	require.True(t, ok)
	assert.Equal(t, "new", got.PlaceName)
	assert.Equal(t, 1, c.len())
}
