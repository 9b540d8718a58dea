package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	httpadapter "github.com/couchcryptid/codis-weather-etl/internal/adapter/http"
	"github.com/couchcryptid/codis-weather-etl/internal/domain"
	"github.com/couchcryptid/codis-weather-etl/internal/ledger"
	"github.com/couchcryptid/codis-weather-etl/internal/observability"
	"github.com/couchcryptid/codis-weather-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptySource struct{}

func (emptySource) FetchDay(context.Context, string, string, domain.Date) ([]domain.RawRow, error) {
	return nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(srv http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Endpoints(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	p := pipeline.New(emptySource{}, ledger.New(dir, discardLogger()), nil, discardLogger(), observability.NewMetricsForTesting())
	srv := httpadapter.NewServer(":0", p, discardLogger())

	assert.Equal(t, http.StatusOK, get(srv, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(srv, "/readyz").Code)
	assert.JSONEq(t, `{"finished":0,"failed":0,"stations":[]}`, get(srv, "/stations").Body.String())

	day := domain.NewDate(2020, 1, 1)
	p.Run(context.Background(), domain.FetchJob{
		DataDirectory: dir,
		Start:         day,
		End:           day,
		Stations:      []domain.StationSpec{{FileKey: "Alishan", StationID: "467530", DisplayName: "阿里山"}},
	})
	assert.Equal(t, http.StatusOK, get(srv, "/readyz").Code)

	var body struct {
		Finished int `json:"finished"`
		Failed   int `json:"failed"`
		Stations []struct {
			Station struct {
				FileKey string `json:"file_key"`
			} `json:"station"`
			State     string `json:"state"`
			DaysEmpty int    `json:"days_empty"`
			FirstDay  string `json:"first_day"`
		} `json:"stations"`
	}
	rec := get(srv, "/stations")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Finished)
	assert.Zero(t, body.Failed)
	require.Len(t, body.Stations, 1)
	assert.Equal(t, "Alishan", body.Stations[0].Station.FileKey)
	assert.Equal(t, "done", body.Stations[0].State)
	assert.Equal(t, 1, body.Stations[0].DaysEmpty)
	assert.Equal(t, "2020-01-01", body.Stations[0].FirstDay)

	rec = get(srv, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := httpadapter.NewServer(":0", pipeline.New(emptySource{}, nil, nil, discardLogger(), observability.NewMetricsForTesting()), discardLogger())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
