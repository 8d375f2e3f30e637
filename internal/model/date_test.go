package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.June, Day: 1}, d)
	assert.Equal(t, "2024-06-01", d.String())
	assert.Equal(t, time.Saturday, d.Weekday())

	_, err = ParseDate("2024-13-01")
	assert.Error(t, err)
	_, err = ParseDate("01/06/2024")
	assert.Error(t, err)
}

func TestDateArithmetic(t *testing.T) {
	d := Date{Year: 2024, Month: time.February, Day: 28}
	assert.Equal(t, Date{Year: 2024, Month: time.February, Day: 29}, d.AddDays(1))
	assert.Equal(t, Date{Year: 2024, Month: time.March, Day: 1}, d.AddDays(2))
	assert.Equal(t, Date{Year: 2023, Month: time.December, Day: 31}, Date{Year: 2024, Month: time.January, Day: 1}.AddDays(-1))

	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.Before(d))
	assert.True(t, Date{}.IsZero())
}

func TestDateTextRoundTrip(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalText([]byte("2025-01-09")))
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2025-01-09", string(b))
	assert.Error(t, d.UnmarshalText([]byte("nope")))
}

func TestDateAtUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	d := Date{Year: 2024, Month: time.June, Day: 1}
	at := d.At(loc, 15*time.Hour)
	assert.Equal(t, time.Date(2024, time.June, 1, 13, 0, 0, 0, time.UTC), at.UTC())
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), d.At(nil, 0))
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"06:00", 6 * time.Hour, true},
		{"15:30", 15*time.Hour + 30*time.Minute, true},
		{"24:00", 24 * time.Hour, true},
		{"24:30", 0, false},
		{"12:60", 0, false},
		{"-1:00", 0, false},
		{"noon", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
	assert.Equal(t, "07:05", FormatClock(7*time.Hour+5*time.Minute))
}

func TestTimeSlotOverlaps(t *testing.T) {
	d := Date{Year: 2024, Month: time.June, Day: 1}
	slot := func(from, to time.Duration) TimeSlot { return TimeSlot{Date: d, Start: from, End: to} }
	base := slot(15*time.Hour, 16*time.Hour)

	assert.True(t, base.Overlaps(slot(15*time.Hour+30*time.Minute, 16*time.Hour+30*time.Minute)))
	assert.True(t, base.Overlaps(slot(15*time.Hour, 16*time.Hour)), "identical slots overlap")
	assert.True(t, base.Overlaps(slot(14*time.Hour, 17*time.Hour)), "containing slot overlaps")
	assert.False(t, base.Overlaps(slot(16*time.Hour, 17*time.Hour)), "back-to-back after")
	assert.False(t, base.Overlaps(slot(14*time.Hour, 15*time.Hour)), "back-to-back before")

	other := TimeSlot{Date: d.AddDays(1), Start: 15 * time.Hour, End: 16 * time.Hour}
	assert.False(t, base.Overlaps(other), "different dates never overlap")
	assert.Equal(t, time.Hour, base.Duration())
	assert.Equal(t, "2024-06-01 15:00-16:00", base.String())
}
