package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_RoundTripsThroughCSVAdapter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, generate(&buf, clockwork.NewFakeClockAt(endDate), 48, 7))

	records, err := domain.ParseCSV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, records, 48)

	assert.Equal(t, endDate.Add(-48*time.Hour), records[0].Timestamp)
	assert.Equal(t, endDate.Add(-time.Hour), records[47].Timestamp)
	for _, r := range records {
		assert.Equal(t, domain.SourceCSVImport, r.Source)
		assert.GreaterOrEqual(t, r.Humidity, 30.0)
		assert.LessOrEqual(t, r.Humidity, 100.0)
		assert.GreaterOrEqual(t, r.WindSpeed, 0.0)
		assert.InDelta(t, 1010, r.Pressure, 5)
	}
}

func TestGenerate_IsDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	clock := clockwork.NewFakeClockAt(endDate)
	require.NoError(t, generate(&a, clock, 24, 3))
	require.NoError(t, generate(&b, clock, 24, 3))
	assert.Equal(t, a.String(), b.String())
}
