package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_UTCMillis(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2026, 10, 15, 10, 30, 0, 123456789, loc)

	assert.Equal(t, "2026-10-15T08:30:00.123Z", Format(ts))
}

func TestParse_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 10, 15, 8, 30, 0, 123000000, time.UTC)

	got, err := Parse(Format(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
}

func TestParse_AcceptsRFC3339(t *testing.T) {
	got, err := Parse("2026-10-15T08:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("yesterday")
	assert.Error(t, err)
}

func TestSystem_Now(t *testing.T) {
	before := time.Now()
	now := System{}.Now()
	assert.False(t, now.Before(before))
}
