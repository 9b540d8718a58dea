package kafka

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/codis-weather-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 27, 1, 0, 0, 0, time.UTC)
	failed := domain.NewDate(2020, 1, 3)
	outcome := domain.StationOutcome{
		Station:       domain.StationSpec{FileKey: "Alishan", StationID: "467530", DisplayName: "阿里山"},
		State:         domain.StateFailed,
		FailedIn:      domain.StateFetching,
		Reason:        "network failure: connection reset",
		Err:           errors.New("connection reset"),
		DaysRequested: 5,
		DaysFetched:   2,
		FailedDay:     &failed,
		RowsAppended:  48,
		FinishedAt:    now,
	}

	msg, err := serializeToMessage(outcome)
	require.NoError(t, err)

	assert.Equal(t, []byte("Alishan"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "state", msg.Headers[0].Key)
	assert.Equal(t, []byte("failed"), msg.Headers[0].Value)
	assert.Equal(t, "finished_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "failed", body["state"])
	assert.Equal(t, "fetching", body["failed_in"])
	assert.Equal(t, "2020-01-03", body["failed_day"])
	assert.InDelta(t, 48, body["rows_appended"], 0)
	assert.NotContains(t, body, "Err")
	assert.NotContains(t, body, "first_day")

	station, ok := body["station"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "467530", station["station_id"])
}
