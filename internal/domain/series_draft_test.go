package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeriesDrafts(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		content := `
- title: Standup
  date: 2024-03-04
  time: "09:00"
  timezone: Europe/Berlin
  duration: 15
  repeat: {freq: weekly, interval: 1, count: 10}
- title: Dentist
  date: 2024-04-02
  time: "14:30"
  duration: 60
`
		drafts, err := ParseSeriesDrafts(content)
		require.NoError(t, err)
		require.Len(t, drafts, 2)

		assert.Equal(t, "Standup", drafts[0].Title)
		assert.Equal(t, "2024-03-04", drafts[0].Date)
		assert.Equal(t, "09:00", drafts[0].Time)
		assert.Equal(t, 15, drafts[0].Duration)
		assert.Equal(t, RecurrenceSpec{Frequency: "weekly", Interval: 1, Count: 10}, drafts[0].Recurrence())
		assert.True(t, drafts[1].Recurrence().IsOnce())
	})

	t.Run("series document", func(t *testing.T) {
		drafts, err := ParseSeriesDrafts("series:\n  - title: Gym\n    date: 2024-01-01\n    time: \"07:00\"\n    duration: 60\n")
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, "Gym", drafts[0].Title)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseSeriesDrafts("  \n")
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("no series", func(t *testing.T) {
		_, err := ParseSeriesDrafts("series: []\n")
		assert.ErrorIs(t, err, ErrNoSeriesInFile)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseSeriesDrafts("- title: [unclosed\n")
		assert.Error(t, err)
	})
}

func TestRecurrenceSpec_Rule(t *testing.T) {
	t.Run("once", func(t *testing.T) {
		r, err := RecurrenceSpec{Frequency: "once"}.Rule("UTC")
		require.NoError(t, err)
		assert.Nil(t, r)
	})

	t.Run("interval defaults to 1", func(t *testing.T) {
		r, err := RecurrenceSpec{Frequency: "daily"}.Rule("UTC")
		require.NoError(t, err)
		assert.Equal(t, "FREQ=DAILY;INTERVAL=1", r.String())
	})

	t.Run("date until ends with the local day", func(t *testing.T) {
		r, err := RecurrenceSpec{Frequency: "weekly", Until: "2024-03-31"}.Rule("Europe/Berlin")
		require.NoError(t, err)
		assert.Equal(t, ts("2024-03-31T21:59:59.999999999Z"), r.End.Until)
	})

	t.Run("instant until", func(t *testing.T) {
		r, err := RecurrenceSpec{Frequency: "weekly", Until: "2024-03-31T10:00:00+02:00"}.Rule("UTC")
		require.NoError(t, err)
		assert.Equal(t, ts("2024-03-31T08:00:00Z"), r.End.Until)
	})

	errCases := []struct {
		name  string
		spec  RecurrenceSpec
		field string
	}{
		{"count and until", RecurrenceSpec{Frequency: "daily", Count: 2, Until: "2024-03-31"}, "end"},
		{"count without frequency", RecurrenceSpec{Count: 2}, "recurrence"},
		{"bad frequency", RecurrenceSpec{Frequency: "hourly"}, "frequency"},
		{"negative interval", RecurrenceSpec{Frequency: "daily", Interval: -2}, "interval"},
		{"bad until", RecurrenceSpec{Frequency: "daily", Until: "soon"}, "until"},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spec.Rule("UTC")
			require.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.field, FieldOf(err))
		})
	}
}

func TestLimits(t *testing.T) {
	l := Limits{}.Normalize()
	assert.Equal(t, DefaultLimits(), l)

	assert.NoError(t, l.ValidateDuration(1))
	assert.NoError(t, l.ValidateDuration(1440))
	assert.ErrorIs(t, l.ValidateDuration(0), ErrValidation)
	assert.ErrorIs(t, l.ValidateDuration(1441), ErrValidation)
	assert.NoError(t, Limits{MaxDurationMinutes: 2000}.ValidateDuration(1441))

	dtstart := ts("2024-01-01T09:00:00Z")
	assert.NoError(t, l.ValidateRule(daily(AfterCount(25)), dtstart))
	assert.ErrorIs(t, l.ValidateRule(daily(AfterCount(26)), dtstart), ErrCapExceeded)
	assert.NoError(t, l.ValidateRule(daily(Never()), dtstart))
}

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle("Standup"))
	assert.ErrorIs(t, ValidateTitle(""), ErrValidation)
	assert.ErrorIs(t, ValidateTitle("   "), ErrValidation)

	long := make([]rune, MaxTitleLength+1)
	for i := range long {
		long[i] = 'ä'
	}
	assert.ErrorIs(t, ValidateTitle(string(long)), ErrValidation)
	assert.NoError(t, ValidateTitle(string(long[:MaxTitleLength])))
}
