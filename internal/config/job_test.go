package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/codis-weather-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJob(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadJob_JSON(t *testing.T) {
	path := writeJob(t, `{
    "data_directory" : "./my_CODiS_data",
    "start_date"     : "2017-07-21",
    "end_date"       : "2017-08-01",
    "station_list"   : {
        "Zhushan" : { "station" : "C0I110", "stname" : "竹山"   },
        "Alishan" : { "station" : "467530", "stname" : "阿里山" }}
}`)

	job, err := LoadJob(path)
	require.NoError(t, err)

	assert.Equal(t, "./my_CODiS_data", job.DataDirectory)
	assert.Equal(t, domain.NewDate(2017, 7, 21), job.Start)
	assert.Equal(t, domain.NewDate(2017, 8, 1), job.End)
	// File order, not sorted.
	assert.Equal(t, []domain.StationSpec{
		{FileKey: "Zhushan", StationID: "C0I110", DisplayName: "竹山"},
		{FileKey: "Alishan", StationID: "467530", DisplayName: "阿里山"},
	}, job.Stations)
}

func TestLoadJob_YAMLWithDefaults(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.April, 27, 1, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	path := writeJob(t, `
station_list:
  Alishan:
    station: 467530
    stname: 阿里山
`)
	job, err := LoadJob(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultDataDirectory, job.DataDirectory)
	assert.Equal(t, domain.EarliestCoverage, job.Start)
	assert.Equal(t, domain.NewDate(2024, 4, 25), job.End)
	require.Len(t, job.Stations, 1)
	assert.Equal(t, "467530", job.Stations[0].StationID)
	require.NoError(t, job.Validate())
}

func TestLoadJob_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{"empty", "", "empty"},
		{"malformed", `{"station_list": `, "parse"},
		{"bad start date", `{"start_date": "21.07.2017", "station_list": {"A": {"station": "1", "stname": "a"}}}`, "start_date"},
		{"bad end date", `{"end_date": "2017/08/01", "station_list": {"A": {"station": "1", "stname": "a"}}}`, "end_date"},
		{"missing station list", `{"data_directory": "./data"}`, "station_list not defined"},
		{"station list is a list", `{"station_list": ["A"]}`, "must be a mapping"},
		{"unknown field", `{"start-date": "2017-07-21", "station_list": {}}`, "start-date"},
		{"bad station entry", `{"station_list": {"A": "467530"}}`, `station "A"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadJob(writeJob(t, tt.content))
			require.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadJob_MissingFile(t *testing.T) {
	_, err := LoadJob(filepath.Join(t.TempDir(), "config.json"))
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "missing")
}
