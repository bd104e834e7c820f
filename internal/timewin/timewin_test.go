package timewin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToUTC(t *testing.T) {
	p, err := New("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, p.Location())

	_, err = New("Not/AZone")
	assert.Error(t, err)
}

func TestSameDay(t *testing.T) {
	p := MustNew("UTC")

	morning := time.Date(2026, 3, 10, 0, 0, 1, 0, time.UTC)
	night := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)
	nextDay := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	assert.True(t, p.SameDay(morning, night))
	assert.False(t, p.SameDay(night, nextDay))
}

func TestSameDayRespectsZone(t *testing.T) {
	p := MustNew("Asia/Shanghai")

	// 2026-03-10 23:00 UTC is already 2026-03-11 07:00 in Shanghai
	lateUTC := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	earlyUTC := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)

	assert.False(t, p.SameDay(earlyUTC, lateUTC))
	assert.Equal(t,
		time.Date(2026, 3, 11, 0, 0, 0, 0, p.Location()),
		p.DayOf(lateUTC))
}

func TestHasRolledOver(t *testing.T) {
	p := MustNew("UTC")
	now := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)

	assert.True(t, p.HasRolledOver(time.Time{}, now))
	assert.True(t, p.HasRolledOver(now.Add(-24*time.Hour), now))
	assert.False(t, p.HasRolledOver(now.Add(-time.Hour), now))
}

func TestStaleToZero(t *testing.T) {
	p := MustNew("UTC")
	now := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(7), p.StaleToZero(7, now.Add(-time.Hour), now))
	assert.Equal(t, int64(0), p.StaleToZero(7, now.Add(-9*time.Hour), now))
	assert.Equal(t, int64(0), p.StaleToZero(7, time.Time{}, now))
}

func TestUntilNextDay(t *testing.T) {
	p := MustNew("UTC")
	now := time.Date(2026, 3, 11, 22, 30, 0, 0, time.UTC)

	assert.Equal(t, 90*time.Minute, p.UntilNextDay(now))
}

func TestIsYesterday(t *testing.T) {
	p := MustNew("UTC")
	now := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)

	assert.True(t, p.IsYesterday(time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC), now))
	assert.False(t, p.IsYesterday(time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC), now))
	assert.False(t, p.IsYesterday(time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC), now))
}

func TestElapsedDays(t *testing.T) {
	p := MustNew("UTC")
	from := time.Date(2026, 3, 8, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(0), p.ElapsedDays(from, from.Add(3*time.Hour)))
	assert.Equal(t, int64(1), p.ElapsedDays(from, from.Add(12*time.Hour)))
	assert.Equal(t, int64(3), p.ElapsedDays(from, from.Add(72*time.Hour)))
	assert.Equal(t, int64(0), p.ElapsedDays(from, from.Add(-time.Hour)))
}

func TestElapsedDaysAcrossDST(t *testing.T) {
	p := MustNew("America/New_York")

	// The 2026 spring-forward day is 23 hours long; the span still counts
	// as two calendar days.
	from := time.Date(2026, 3, 7, 12, 0, 0, 0, p.Location())
	to := time.Date(2026, 3, 9, 12, 0, 0, 0, p.Location())
	assert.Equal(t, int64(2), p.ElapsedDays(from, to))
}
