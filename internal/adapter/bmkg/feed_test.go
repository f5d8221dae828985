package bmkg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<data source="meteofactory" productioncenter="BMKG">
  <forecast domain="JawaBarat">
    <issue><timestamp>20240315060000</timestamp></issue>
    <area id="501186" description="Bogor" type="land">
      <name xml:lang="en_US">Bogor</name>
      <parameter id="t" description="Temperature" type="hourly">
        <timerange type="hourly" h="0" datetime="202403150000"><value unit="C">26</value><value unit="F">78.8</value></timerange>
        <timerange type="hourly" h="6" datetime="202403150600"><value unit="C">30</value></timerange>
        <timerange type="hourly" h="12" datetime="202403151200"><value unit="C">27</value></timerange>
        <timerange type="hourly" h="18" datetime="202403151800"><value unit="C">24</value></timerange>
      </parameter>
    </area>
    <area id="501212" description="Kota Bandung" type="land">
      <name xml:lang="en_US">Bandung</name>
      <name xml:lang="id_ID">Bandung</name>
      <parameter id="hu" description="Humidity" type="hourly">
        <timerange type="hourly" h="0" datetime="202403150000"><value unit="%">85</value></timerange>
        <timerange type="hourly" h="6" datetime="202403150600"><value unit="%">70</value></timerange>
        <timerange type="hourly" h="12" datetime="202403151200"><value unit="%">80</value></timerange>
        <timerange type="hourly" h="18" datetime="202403151800"><value unit="%">90</value></timerange>
      </parameter>
      <parameter id="t" description="Temperature" type="hourly">
        <timerange type="hourly" h="0" datetime="202403150000"><value unit="C">21</value><value unit="F">69.8</value></timerange>
        <timerange type="hourly" h="6" datetime="202403150600"><value unit="C">27</value></timerange>
        <timerange type="hourly" h="12" datetime="202403151200"><value unit="C">n/a</value></timerange>
      </parameter>
      <parameter id="ws" description="Wind speed" type="hourly">
        <timerange type="hourly" h="0" datetime="202403150000"><value unit="Kt">5</value><value unit="MS">2.6</value></timerange>
        <timerange type="hourly" h="6" datetime="202403150600"><value unit="Kt">10</value></timerange>
        <timerange type="hourly" h="12" datetime="202403151200"><value unit="Kt">8</value></timerange>
        <timerange type="hourly" h="18" datetime="202403151800"><value unit="Kt">3</value></timerange>
      </parameter>
    </area>
  </forecast>
</data>`

type fakeFetcher struct {
	body []byte
	err  error
}

func (f *fakeFetcher) Get(_ context.Context, _ string) ([]byte, error) {
	return f.body, f.err
}

var now = time.Date(2024, 3, 15, 7, 42, 10, 0, time.UTC)

func newTestClient(body string, area string, logs *bytes.Buffer) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if logs != nil {
		logger = slog.New(slog.NewTextHandler(logs, nil))
	}
	return NewClient(&fakeFetcher{body: []byte(body)}, "http://feed", area, clockwork.NewFakeClockAt(now), logger)
}

func TestClient_Extract_PreferredArea(t *testing.T) {
	c := newTestClient(sampleFeed, "Bandung", nil)
	assert.Equal(t, domain.SourceAgencyFeed, c.Source())

	records, err := c.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 4)

	base := time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC)
	for i, rec := range records {
		assert.Equal(t, base.Add(time.Duration(i)*6*time.Hour), rec.Timestamp)
		assert.InDelta(t, 1010.0, rec.Pressure, 1e-9)
		assert.InDelta(t, 0, rec.Rainfall, 1e-9)
		assert.Equal(t, domain.SourceAgencyFeed, rec.Source)
	}

	assert.InDelta(t, 21, records[0].Temperature, 1e-9)
	assert.InDelta(t, 27, records[1].Temperature, 1e-9)
	assert.InDelta(t, 0, records[2].Temperature, 1e-9, "unparsable value reads as zero")
	assert.InDelta(t, 0, records[3].Temperature, 1e-9, "missing timerange reads as zero")

	assert.InDelta(t, 85, records[0].Humidity, 1e-9)
	assert.InDelta(t, 90, records[3].Humidity, 1e-9)
	assert.InDelta(t, 5, records[0].WindSpeed, 1e-9, "first value is used")
	assert.InDelta(t, 3, records[3].WindSpeed, 1e-9)
}

func TestClient_Extract_MatchesDescription(t *testing.T) {
	c := newTestClient(sampleFeed, "Kota Bandung", nil)
	records, err := c.Extract(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 21, records[0].Temperature, 1e-9)
}

func TestClient_Extract_FallsBackToFirstArea(t *testing.T) {
	var logs bytes.Buffer
	c := newTestClient(sampleFeed, "Surabaya", &logs)

	records, err := c.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 4)

	for i := 1; i < len(records); i++ {
		assert.Equal(t, 6*time.Hour, records[i].Timestamp.Sub(records[i-1].Timestamp))
	}
	assert.InDelta(t, 26, records[0].Temperature, 1e-9)
	assert.InDelta(t, 24, records[3].Temperature, 1e-9)
	assert.InDelta(t, 0, records[0].Humidity, 1e-9, "missing parameter reads as zero")
	assert.InDelta(t, 0, records[0].WindSpeed, 1e-9)

	assert.Contains(t, logs.String(), "preferred forecast area not found")
	assert.Contains(t, logs.String(), "Surabaya")
}

func TestClient_Extract_Failures(t *testing.T) {
	t.Run("malformed xml", func(t *testing.T) {
		records, err := newTestClient("<data><forecast>", "Bandung", nil).Extract(context.Background())
		require.Error(t, err)
		assert.Empty(t, records)
		assert.Equal(t, domain.KindParse, domain.KindOf(err))
	})

	t.Run("no areas", func(t *testing.T) {
		records, err := newTestClient(`<data><forecast domain="x"></forecast></data>`, "Bandung", nil).Extract(context.Background())
		require.Error(t, err)
		assert.Empty(t, records)
		assert.Equal(t, domain.KindParse, domain.KindOf(err))
	})

	t.Run("fetch error", func(t *testing.T) {
		upstream := domain.NewError(domain.KindNetwork, "agency get", errors.New("unexpected status 503"))
		c := NewClient(&fakeFetcher{err: upstream}, "http://feed", "Bandung",
			clockwork.NewFakeClockAt(now), slog.New(slog.NewTextHandler(io.Discard, nil)))
		records, err := c.Extract(context.Background())
		require.Error(t, err)
		assert.Empty(t, records)
		assert.Equal(t, domain.KindNetwork, domain.KindOf(err))
	})
}
