// Package storetest holds behavior tests shared by every domain.RecordStore
// backend.
package storetest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Record builds a record offset hours after a fixed base time.
func Record(hour int, temp float64, source domain.Source) domain.WeatherRecord {
	return domain.WeatherRecord{
		Timestamp:   base.Add(time.Duration(hour) * time.Hour),
		Temperature: temp,
		Humidity:    80,
		Pressure:    domain.DefaultPressure,
		WindSpeed:   3,
		Rainfall:    0,
		Source:      source,
	}
}

// Run exercises the RecordStore contract. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) domain.RecordStore) {
	t.Run("ReplaceSourceSwapsOnlyThatSource", func(t *testing.T) {
		testReplaceSource(t, newStore(t))
	})
	t.Run("ReplaceSourceRetagsRecords", func(t *testing.T) {
		testReplaceRetags(t, newStore(t))
	})
	t.Run("ReplaceSourceRejectsEmptyBatch", func(t *testing.T) {
		testEmptyBatch(t, newStore(t))
	})
	t.Run("ReplaceSourceFailedInsertKeepsPriorGeneration", func(t *testing.T) {
		testFailedReplace(t, newStore(t))
	})
	t.Run("AppendNeverDeletes", func(t *testing.T) {
		testAppend(t, newStore(t))
	})
	t.Run("QueryFiltersAndOrders", func(t *testing.T) {
		testQuery(t, newStore(t))
	})
	t.Run("LatestAcrossSources", func(t *testing.T) {
		testLatest(t, newStore(t))
	})
	t.Run("ConcurrentReplacesLeaveOneGeneration", func(t *testing.T) {
		testConcurrentReplace(t, newStore(t))
	})
	t.Run("Readiness", func(t *testing.T) {
		require.NoError(t, newStore(t).CheckReadiness(context.Background()))
	})
}

func bySource(t *testing.T, s domain.RecordStore, src domain.Source) []domain.WeatherRecord {
	t.Helper()
	recs, err := s.Query(context.Background(), domain.RecordQuery{Include: []domain.Source{src}})
	require.NoError(t, err)
	return recs
}

func testReplaceSource(t *testing.T, s domain.RecordStore) {
	ctx := context.Background()
	require.NoError(t, s.ReplaceSource(ctx, domain.SourceAPI, []domain.WeatherRecord{
		Record(0, 20, domain.SourceAPI), Record(1, 21, domain.SourceAPI), Record(2, 22, domain.SourceAPI),
	}))
	require.NoError(t, s.ReplaceSource(ctx, domain.SourceCSVImport, []domain.WeatherRecord{
		Record(0, 10, domain.SourceCSVImport),
	}))

	require.NoError(t, s.ReplaceSource(ctx, domain.SourceAPI, []domain.WeatherRecord{
		Record(5, 30, domain.SourceAPI), Record(6, 31, domain.SourceAPI),
	}))

	api := bySource(t, s, domain.SourceAPI)
	require.Len(t, api, 2)
	assert.InDelta(t, 30, api[0].Temperature, 1e-9)
	assert.InDelta(t, 31, api[1].Temperature, 1e-9)
	assert.True(t, api[0].Timestamp.Equal(base.Add(5*time.Hour)))
	assert.Equal(t, time.UTC, api[0].Timestamp.Location())

	assert.Len(t, bySource(t, s, domain.SourceCSVImport), 1, "other sources untouched")
}

func testReplaceRetags(t *testing.T, s domain.RecordStore) {
	require.NoError(t, s.ReplaceSource(context.Background(), domain.SourcePrediction, []domain.WeatherRecord{
		Record(0, 20, domain.SourceManual),
	}))
	preds := bySource(t, s, domain.SourcePrediction)
	require.Len(t, preds, 1)
	assert.Equal(t, domain.SourcePrediction, preds[0].Source)
	assert.Empty(t, bySource(t, s, domain.SourceManual))
}

func testEmptyBatch(t *testing.T, s domain.RecordStore) {
	ctx := context.Background()
	require.NoError(t, s.ReplaceSource(ctx, domain.SourceAPI, []domain.WeatherRecord{Record(0, 20, domain.SourceAPI)}))

	err := s.ReplaceSource(ctx, domain.SourceAPI, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyBatch))
	assert.Len(t, bySource(t, s, domain.SourceAPI), 1, "store untouched")
}

func testFailedReplace(t *testing.T, s domain.RecordStore) {
	ctx := context.Background()
	require.NoError(t, s.ReplaceSource(ctx, domain.SourceAPI, []domain.WeatherRecord{
		Record(0, 20, domain.SourceAPI), Record(1, 21, domain.SourceAPI),
	}))

	err := s.ReplaceSource(ctx, domain.SourceAPI, []domain.WeatherRecord{
		Record(5, 30, domain.SourceAPI), Record(6, math.NaN(), domain.SourceAPI),
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))

	api := bySource(t, s, domain.SourceAPI)
	require.Len(t, api, 2, "delete rolled back with the failed insert")
	assert.InDelta(t, 20, api[0].Temperature, 1e-9)
	assert.InDelta(t, 21, api[1].Temperature, 1e-9)
}

func testAppend(t *testing.T, s domain.RecordStore) {
	ctx := context.Background()
	require.NoError(t, s.ReplaceSource(ctx, domain.SourceAPI, []domain.WeatherRecord{Record(0, 20, domain.SourceAPI)}))

	first, err := s.Append(ctx, Record(1, 25, domain.SourceManual))
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	second, err := s.Append(ctx, Record(1, 26, domain.SourceManual))
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	assert.Len(t, bySource(t, s, domain.SourceManual), 2, "same timestamp is not deduplicated")
	assert.Len(t, bySource(t, s, domain.SourceAPI), 1)
}

func testQuery(t *testing.T, s domain.RecordStore) {
	ctx := context.Background()
	require.NoError(t, s.ReplaceSource(ctx, domain.SourceAPI, []domain.WeatherRecord{
		Record(2, 22, domain.SourceAPI), Record(0, 20, domain.SourceAPI),
	}))
	require.NoError(t, s.ReplaceSource(ctx, domain.SourceAgencyFeed, []domain.WeatherRecord{Record(1, 99, domain.SourceAgencyFeed)}))
	require.NoError(t, s.ReplaceSource(ctx, domain.SourcePrediction, []domain.WeatherRecord{Record(3, 23, domain.SourcePrediction)}))
	_, err := s.Append(ctx, Record(1, 21, domain.SourceManual))
	require.NoError(t, err)

	recs, err := s.Query(ctx, domain.RecordQuery{
		Exclude: []domain.Source{domain.SourcePrediction, domain.SourceAgencyFeed},
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.InDelta(t, 20, recs[0].Temperature, 1e-9)
	assert.InDelta(t, 21, recs[1].Temperature, 1e-9)
	assert.InDelta(t, 22, recs[2].Temperature, 1e-9)

	desc, err := s.Query(ctx, domain.RecordQuery{Order: domain.Descending, Limit: 2})
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, domain.SourcePrediction, desc[0].Source)
	assert.InDelta(t, 22, desc[1].Temperature, 1e-9)
}

func testLatest(t *testing.T, s domain.RecordStore) {
	ctx := context.Background()
	var batch []domain.WeatherRecord
	for h := range 30 {
		batch = append(batch, Record(h, float64(h), domain.SourceAPI))
	}
	require.NoError(t, s.ReplaceSource(ctx, domain.SourceAPI, batch))
	_, err := s.Append(ctx, Record(40, 99, domain.SourceManual))
	require.NoError(t, err)

	latest, err := s.Latest(ctx, 24)
	require.NoError(t, err)
	require.Len(t, latest, 24)
	assert.Equal(t, domain.SourceManual, latest[0].Source)
	for i := 1; i < len(latest); i++ {
		assert.False(t, latest[i].Timestamp.After(latest[i-1].Timestamp))
	}
}

func testConcurrentReplace(t *testing.T, s domain.RecordStore) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for g := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]domain.WeatherRecord, 5)
			for i := range batch {
				batch[i] = Record(i, float64(g), domain.SourceAPI)
			}
			assert.NoError(t, s.ReplaceSource(ctx, domain.SourceAPI, batch))
		}()
	}
	wg.Wait()

	recs := bySource(t, s, domain.SourceAPI)
	require.Len(t, recs, 5)
	for _, r := range recs {
		assert.InDelta(t, recs[0].Temperature, r.Temperature, 1e-9, "records come from a single run")
	}
}
