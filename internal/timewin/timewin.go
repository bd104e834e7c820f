// Package timewin is the single source of truth for day-window arithmetic.
// Every daily counter, check-in gate and leaderboard read goes through one
// Policy so the whole system agrees on what "today" means.
package timewin

import (
	"fmt"
	"time"
)

// Policy normalizes timestamps into calendar days of one fixed timezone.
type Policy struct {
	loc *time.Location
}

// New creates a Policy for the given IANA timezone name. An empty name
// selects UTC.
func New(tz string) (*Policy, error) {
	if tz == "" {
		return &Policy{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", tz, err)
	}
	return &Policy{loc: loc}, nil
}

// MustNew is New for static configuration known to be valid.
func MustNew(tz string) *Policy {
	p, err := New(tz)
	if err != nil {
		panic(err)
	}
	return p
}

// Location returns the policy timezone.
func (p *Policy) Location() *time.Location {
	return p.loc
}

// DayOf truncates a timestamp to midnight of its calendar day in the policy
// timezone.
func (p *Policy) DayOf(t time.Time) time.Time {
	t = t.In(p.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.loc)
}

// SameDay reports whether two timestamps fall on the same policy day.
func (p *Policy) SameDay(a, b time.Time) bool {
	return p.DayOf(a).Equal(p.DayOf(b))
}

// HasRolledOver reports whether the day boundary has passed between last and
// now. A zero last timestamp always counts as rolled over.
func (p *Policy) HasRolledOver(last, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return p.DayOf(last).Before(p.DayOf(now))
}

// DayStart returns midnight of now's policy day.
func (p *Policy) DayStart(now time.Time) time.Time {
	return p.DayOf(now)
}

// UntilNextDay returns the time remaining until the next day boundary,
// used for "come back in Xh Ym" messaging.
func (p *Policy) UntilNextDay(now time.Time) time.Duration {
	return p.DayOf(now).AddDate(0, 0, 1).Sub(now.In(p.loc))
}

// StaleToZero applies the lazy-reset rule for daily counters: a stored value
// whose update timestamp predates today's boundary reads as zero. Stored raw
// values are never trusted across a rollover.
func (p *Policy) StaleToZero(value int64, updatedAt, now time.Time) int64 {
	if p.HasRolledOver(updatedAt, now) {
		return 0
	}
	return value
}

// IsYesterday reports whether t falls exactly on the policy day preceding
// now's day. Used for check-in streak continuation.
func (p *Policy) IsYesterday(t, now time.Time) bool {
	return p.DayOf(t).Equal(p.DayOf(now).AddDate(0, 0, -1))
}

// ElapsedDays returns the number of whole policy days between from and to.
// Negative spans clamp to zero.
func (p *Policy) ElapsedDays(from, to time.Time) int64 {
	if !from.Before(to) {
		return 0
	}
	// Round to absorb DST offsets in non-UTC policy zones.
	days := int64(p.DayOf(to).Sub(p.DayOf(from)).Hours()/24 + 0.5)
	if days < 0 {
		return 0
	}
	return days
}
