package dateparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEpochMillis(t *testing.T) {
	got, ok := Parse("1700000000000")
	require.True(t, ok)
	assert.Equal(t, "2023-11-14T22:13:20Z", got.Format(time.RFC3339))
}

func TestParseRelativeWeeks(t *testing.T) {
	clock := fixedClock(t, "2024-01-15T00:00:00Z")
	got, ok := ParseAt("about 1 Weeks ago!", clock)
	require.True(t, ok)
	want, _ := time.Parse(time.RFC3339, "2024-01-08T00:00:00Z")
	assert.WithinDuration(t, want, got, 24*time.Hour)
}

func TestParseMinutesShorthand(t *testing.T) {
	clock := fixedClock(t, "2024-06-01T12:00:00Z")
	got, ok := ParseAt("like 2 minutes ago", clock)
	require.True(t, ok)
	assert.Equal(t, clock().Add(-2*time.Minute), got)
}

func TestParseEmptyIsNone(t *testing.T) {
	_, ok := Parse("   ")
	assert.False(t, ok)
}

func TestParseCurrentWords(t *testing.T) {
	clock := fixedClock(t, "2024-06-01T12:00:00Z")
	for _, input := range []string{"now", "Latest Release", "hot off the press", "today", "current chapter", "a while ago"} {
		got, ok := ParseAt(input, clock)
		require.True(t, ok, input)
		assert.Equal(t, clock(), got, input)
	}
}

func TestParseYesterday(t *testing.T) {
	clock := fixedClock(t, "2024-06-02T00:00:00Z")
	got, ok := ParseAt("yesterday", clock)
	require.True(t, ok)
	assert.Equal(t, clock().AddDate(0, 0, -1), got)
}

func TestParseAbsoluteFormats(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"2022-01-30T09:10:11.123Z", "2022-01-30T09:10:11.123Z"},
		{"2022.12.30", "2022-12-30T00:00:00Z"},
		{"Oct 30 2022", "2022-10-30T00:00:00Z"},
		{"30 Jan 2022", "2022-01-30T00:00:00Z"},
	}
	for _, tc := range cases {
		got, ok := Parse(tc.input)
		require.True(t, ok, tc.input)
		want, err := time.Parse(time.RFC3339, tc.want)
		require.NoError(t, err)
		assert.Equal(t, want, got, tc.input)
	}
}

func TestParseOrdinalSuffix(t *testing.T) {
	got, ok := Parse("Jan 1st 2022")
	require.True(t, ok)
	want, _ := time.Parse(time.RFC3339, "2022-01-01T00:00:00Z")
	assert.Equal(t, want, got)
}

func TestParseGarbageNeverPanics(t *testing.T) {
	inputs := []string{"", "???", "asdkjashdkjashd", "123abc456", "-----", "1y2w3d"}
	for _, input := range inputs {
		assert.NotPanics(t, func() {
			Parse(input)
		}, input)
	}
}

func fixedClock(t *testing.T, rfc3339 string) Clock {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, rfc3339)
	require.NoError(t, err)
	return func() time.Time { return parsed }
}
