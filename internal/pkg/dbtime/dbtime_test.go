package dbtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tod, err := Parse("08:30")
	require.NoError(t, err)
	assert.Equal(t, "08:30:00", tod.String())

	tod, err = Parse("22:05:09.123456")
	require.NoError(t, err)
	assert.Equal(t, 22, tod.Hour())
	assert.Equal(t, 5, tod.Minute())
	assert.Equal(t, 9, tod.Second())

	_, err = Parse("25:00")
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.Scan("17:00:00.000000"))
	assert.Equal(t, NewTimeOfDay(17, 0, 0), tod)

	require.NoError(t, tod.Scan([]byte("06:15:00")))
	assert.Equal(t, NewTimeOfDay(6, 15, 0), tod)

	require.NoError(t, tod.Scan(time.Date(2000, 1, 1, 9, 45, 0, 0, time.UTC)))
	assert.Equal(t, "09:45:00", tod.String())

	assert.Error(t, tod.Scan(42))

	v, err := NewTimeOfDay(6, 0, 0).Value()
	require.NoError(t, err)
	assert.Equal(t, "06:00:00", v)
}

func TestJSON(t *testing.T) {
	b, err := json.Marshal(NewTimeOfDay(22, 0, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `"22:00:00"`, string(b))

	var tod TimeOfDay
	require.NoError(t, json.Unmarshal([]byte(`"07:30"`), &tod))
	assert.Equal(t, NewTimeOfDay(7, 30, 0), tod)
}

func TestOn(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)

	got := MustParse("22:00").On(date)
	assert.Equal(t, time.Date(2024, 3, 10, 22, 0, 0, 0, loc), got)
	assert.True(t, MustParse("06:00").Before(MustParse("22:00")))
}

func TestDateHelpers(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)

	// 20:30 UTC is already the next day in UTC+7
	instant := time.Date(2024, 3, 10, 20, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, loc), DateOf(instant, loc))

	d, err := ParseDate("2024-03-11", loc)
	require.NoError(t, err)
	assert.True(t, SameDate(d, DateOf(instant, loc)))
	assert.Equal(t, "2024-03-10", FormatDate(AddDays(d, -1)))

	assert.Equal(t, d, NormalizeDate(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), loc))
	assert.Equal(t, time.UTC, LoadLocation("Nowhere/Unknown"))
}

func TestWholeMinutes(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, 10, WholeMinutes(base, base.Add(10*time.Minute+59*time.Second)))
	assert.Equal(t, 0, WholeMinutes(base, base.Add(-time.Minute)))
}
