package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate(t *testing.T) {
	d := NewDate(2020, 2, 28)

	assert.Equal(t, "2020-02-28", d.String())
	assert.Equal(t, NewDate(2020, 2, 29), d.AddDays(1))
	assert.Equal(t, NewDate(2020, 3, 1), d.AddDays(2))
	assert.Equal(t, NewDate(2019, 12, 31), NewDate(2020, 1, 1).AddDays(-1))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.After(d))
	assert.True(t, Date{}.IsZero())
	assert.Equal(t, time.Date(2020, 2, 28, 0, 0, 0, 0, time.UTC), d.Time())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2017-07-21")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2017, 7, 21), d)

	_, err = ParseDate("21.07.2017")
	require.Error(t, err)

	var u Date
	require.NoError(t, u.UnmarshalText([]byte("2010-01-01")))
	assert.Equal(t, EarliestCoverage, u)
}

func TestTimeOfDay_Text(t *testing.T) {
	b, err := TimeOfDay{Hour: 7}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "07:00:00", string(b))

	var tod TimeOfDay
	require.NoError(t, tod.UnmarshalText([]byte("23:00:00")))
	assert.Equal(t, TimeOfDay{Hour: 23}, tod)
	assert.False(t, tod.IsMidnight())

	require.Error(t, tod.UnmarshalText([]byte("25:00")))
}
