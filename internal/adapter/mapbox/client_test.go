package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/adapter/httpclient"
	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/couchcryptid/weather-dashboard-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

// newTestClient points a client at srv with retries disabled.
func newTestClient(srv *httptest.Server, timeout time.Duration) *Client {
	fetcher := httpclient.New("mapbox", timeout, httpclient.Backoff{}, observability.NewMetricsForTesting(), discardLogger())
	c := NewClient(fetcher, testToken, discardLogger())
	c.baseURL = srv.URL
	return c
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestForwardGeocode_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Kota Bandung.json", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))
		assert.Equal(t, placeTypes, r.URL.Query().Get("types"))
		_, _ = w.Write([]byte(`{"features":[{"center":[107.6191,-6.9175],"place_name":"Bandung, West Java, Indonesia","text":"Bandung","relevance":0.97}]}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv, 5*time.Second).ForwardGeocode(context.Background(), " Kota Bandung ")
	require.NoError(t, err)

	assert.InDelta(t, -6.9175, result.Lat, 1e-9)
	assert.InDelta(t, 107.6191, result.Lon, 1e-9)
	assert.Equal(t, "Bandung, West Java, Indonesia", result.FormattedAddress)
	assert.Equal(t, "Bandung", result.PlaceName)
	assert.InDelta(t, 0.97, result.Confidence, 1e-9)
}

func TestForwardGeocode_SkipsFeaturesWithoutCenter(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"features":[{"text":"Broken"},{"center":[110.4,-7.0],"text":"Semarang"}]}`)

	result, err := newTestClient(srv, 5*time.Second).ForwardGeocode(context.Background(), "Semarang")
	require.NoError(t, err)
	assert.Equal(t, "Semarang", result.PlaceName)
	assert.InDelta(t, -7.0, result.Lat, 1e-9)
}

func TestForwardGeocode_NoMatch(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"features":[]}`)

	result, err := newTestClient(srv, 5*time.Second).ForwardGeocode(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.True(t, result.Zero())
	assert.Empty(t, result.FormattedAddress)
}

func TestForwardGeocode_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   domain.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"Not Authorized"}`, domain.KindNetwork},
		{"malformed body", http.StatusOK, `{"features":`, domain.KindParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			_, err := newTestClient(srv, 5*time.Second).ForwardGeocode(context.Background(), "Bandung")
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
		})
	}
}

func TestForwardGeocode_EmptyQuery(t *testing.T) {
	c := NewClient(nil, testToken, discardLogger())
	_, err := c.ForwardGeocode(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestForwardGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 50*time.Millisecond).ForwardGeocode(context.Background(), "Bandung")
	require.Error(t, err)
	assert.Equal(t, domain.KindNetwork, domain.KindOf(err))
}
