package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysToFetch(t *testing.T) {
	start := NewDate(2020, 1, 1)
	end := NewDate(2020, 1, 10)

	t.Run("no artifact starts at job start", func(t *testing.T) {
		days := DaysToFetch(start, end, nil)
		require.Len(t, days, 10)
		assert.Equal(t, start, days[0])
		assert.Equal(t, end, days[9])
	})

	t.Run("resumes the day after the last row", func(t *testing.T) {
		resume := &ResumePoint{Date: NewDate(2020, 1, 5), Time: TimeOfDay{Hour: 23}, HasTime: true}
		days := DaysToFetch(start, end, resume)
		assert.Equal(t, []Date{
			NewDate(2020, 1, 6),
			NewDate(2020, 1, 7),
			NewDate(2020, 1, 8),
			NewDate(2020, 1, 9),
			NewDate(2020, 1, 10),
		}, days)
	})

	t.Run("date-only resume point", func(t *testing.T) {
		days := DaysToFetch(start, end, &ResumePoint{Date: NewDate(2020, 1, 5)})
		require.Len(t, days, 5)
		assert.Equal(t, NewDate(2020, 1, 6), days[0])
	})

	t.Run("midnight row belongs to the previous day", func(t *testing.T) {
		// 2020-01-05 was fetched completely; its hour 24 is stamped 2020-01-06 00:00.
		resume := &ResumePoint{Date: NewDate(2020, 1, 6), HasTime: true}
		days := DaysToFetch(start, end, resume)
		require.Len(t, days, 5)
		assert.Equal(t, NewDate(2020, 1, 6), days[0])
	})

	t.Run("last row on end date is up to date", func(t *testing.T) {
		resume := &ResumePoint{Date: NewDate(2020, 1, 10), Time: TimeOfDay{Hour: 22}, HasTime: true}
		assert.Empty(t, DaysToFetch(start, end, resume))
	})

	t.Run("midnight row after end date is up to date", func(t *testing.T) {
		resume := &ResumePoint{Date: NewDate(2020, 1, 11), HasTime: true}
		assert.Empty(t, DaysToFetch(start, end, resume))
	})

	t.Run("resume beyond end", func(t *testing.T) {
		assert.Empty(t, DaysToFetch(start, end, &ResumePoint{Date: NewDate(2021, 3, 1)}))
	})

	t.Run("single day", func(t *testing.T) {
		assert.Equal(t, []Date{start}, DaysToFetch(start, start, nil))
	})

	t.Run("ascending across month boundary", func(t *testing.T) {
		days := DaysToFetch(NewDate(2020, 2, 27), NewDate(2020, 3, 2), nil)
		require.Len(t, days, 5)
		assert.Equal(t, NewDate(2020, 2, 29), days[2])
		for i := 1; i < len(days); i++ {
			assert.True(t, days[i].After(days[i-1]))
		}
	})
}

func TestResumePoint_LastFetchedDay(t *testing.T) {
	tests := []struct {
		name     string
		point    ResumePoint
		expected Date
	}{
		{"hourly row", ResumePoint{Date: NewDate(2020, 3, 1), Time: TimeOfDay{Hour: 5}, HasTime: true}, NewDate(2020, 3, 1)},
		{"midnight row", ResumePoint{Date: NewDate(2020, 3, 1), HasTime: true}, NewDate(2020, 2, 29)},
		{"no time", ResumePoint{Date: NewDate(2020, 3, 1)}, NewDate(2020, 3, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.point.LastFetchedDay())
		})
	}
}
