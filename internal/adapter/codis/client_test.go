package codis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/codis-weather-etl/internal/adapter/codis/codismock"
	"github.com/couchcryptid/codis-weather-etl/internal/config"
	"github.com/couchcryptid/codis-weather-etl/internal/domain"
	"github.com/couchcryptid/codis-weather-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const viewMainPath = "/HistoryDataQuery/DayDataController.do?command=viewMain"

var testDay = domain.NewDate(2020, 1, 5)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return NewClient(&config.Config{
		BaseURL:            baseURL + viewMainPath,
		RequestTimeout:     5 * time.Second,
		FetchMaxRetries:    2,
		FetchRetryInterval: time.Millisecond,
	}, observability.NewMetricsForTesting(), discardLogger())
}

func TestDayURL_DoubleEscapesName(t *testing.T) {
	c := testClient("http://e-service.example")

	raw, err := c.DayURL("467530", "阿里山", testDay)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/HistoryDataQuery/DayDataController.do", u.Path)

	q := u.Query()
	assert.Equal(t, "viewMain", q.Get("command"))
	assert.Equal(t, "467530", q.Get("station"))
	assert.Equal(t, "2020-01-05", q.Get("datepicker"))
	assert.Equal(t, url.QueryEscape("阿里山"), q.Get("stname"))
	assert.Contains(t, raw, "stname="+url.QueryEscape(url.QueryEscape("阿里山")))
}

func TestFetchDay_MockPortal(t *testing.T) {
	mock := codismock.NewHandler(nil, discardLogger())
	srv := httptest.NewServer(mock)
	defer srv.Close()

	rows, err := testClient(srv.URL).FetchDay(context.Background(), "467530", "阿里山", testDay)
	require.NoError(t, err)
	require.Len(t, rows, 24)
	assert.Equal(t, "01", rows[0].Hour)
	assert.Equal(t, "24", rows[23].Hour)

	obs, err := domain.Normalize(testDay, rows)
	require.NoError(t, err)
	require.Len(t, obs, 24)
	assert.Equal(t, domain.NewDate(2020, 1, 6), obs[23].Date)
	assert.True(t, obs[23].Time.IsMidnight())
	// Hour 7 carries the trace marker, global radiation is always "X".
	assert.Equal(t, domain.Measured(domain.TracePrecipitation), obs[6].Precipitation)
	assert.Equal(t, domain.Missing, obs[0].GlobalRadiation)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, codismock.Request{StationID: "467530", Name: "阿里山", Day: testDay}, reqs[0])
}

func TestFetchDay_NoData(t *testing.T) {
	mock := codismock.NewHandler(func(string, domain.Date) ([]domain.RawRow, error) {
		return nil, nil
	}, discardLogger())
	srv := httptest.NewServer(mock)
	defer srv.Close()

	rows, err := testClient(srv.URL).FetchDay(context.Background(), "C0I110", "竹山", testDay)
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestFetchDay_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mock := codismock.NewHandler(nil, discardLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		mock.ServeHTTP(w, r)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	rows, err := c.FetchDay(context.Background(), "467530", "阿里山", testDay)
	require.NoError(t, err)
	assert.Len(t, rows, 24)
	assert.Equal(t, int32(3), calls.Load())
	assert.InDelta(t, 2, testutil.ToFloat64(c.metrics.SourceRequests.WithLabelValues("retry")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.SourceRequests.WithLabelValues("success")), 0)
}

func TestFetchDay_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchDay(context.Background(), "467530", "阿里山", testDay)
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDay_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchDay(context.Background(), "467530", "阿里山", testDay)
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchDay_UnexpectedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html><body><p>maintenance</p></body></html>")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchDay(context.Background(), "467530", "阿里山", testDay)
	require.ErrorIs(t, err, domain.ErrRemoteSchema)
	assert.NotErrorIs(t, err, domain.ErrNetwork)
}

func TestFetchDay_Canceled(t *testing.T) {
	srv := httptest.NewServer(codismock.NewHandler(nil, discardLogger()))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).FetchDay(ctx, "467530", "阿里山", testDay)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NotErrorIs(t, err, domain.ErrNetwork)
}

func TestFetchDay_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := testClient(base)
	c.backoff.MaxRetries = 0
	_, err := c.FetchDay(context.Background(), "467530", "阿里山", testDay)
	require.ErrorIs(t, err, domain.ErrNetwork)
}

func TestFetchDay_BreakerIsPerStation(t *testing.T) {
	mock := codismock.NewHandler(func(id string, d domain.Date) ([]domain.RawRow, error) {
		if id == "BAD1" {
			return nil, errors.New("backend down")
		}
		return codismock.SyntheticDay(id, d), nil
	}, discardLogger())
	srv := httptest.NewServer(mock)
	defer srv.Close()

	c := testClient(srv.URL)
	ctx := context.Background()

	// Two days with three attempts each trip BAD1's breaker.
	for range 2 {
		_, err := c.FetchDay(ctx, "BAD1", "壞站", testDay)
		require.ErrorIs(t, err, domain.ErrNetwork)
	}
	served := len(mock.Requests())

	_, err := c.FetchDay(ctx, "BAD1", "壞站", testDay)
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Len(t, mock.Requests(), served)

	rows, err := c.FetchDay(ctx, "467530", "阿里山", testDay)
	require.NoError(t, err)
	assert.Len(t, rows, 24)
}
