package service

import (
	"fmt"
	"time"
)

// Calendar assigns instants to calendar days in one fixed time zone.
type Calendar struct {
	loc *time.Location
}

func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// LoadCalendar resolves an IANA zone name such as "Asia/Kolkata".
func LoadCalendar(zone string) (Calendar, error) {
	if zone == "" {
		zone = "UTC"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Calendar{}, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return NewCalendar(loc), nil
}

func (c Calendar) Location() *time.Location { return c.loc }

// DayOf returns the YYYY-MM-DD day containing t.
func (c Calendar) DayOf(t time.Time) string {
	return t.In(c.loc).Format(time.DateOnly)
}

// Bounds returns [start, end) of the day containing t.  end is the next local
// midnight, so days around DST transitions are 23 or 25 hours long.
func (c Calendar) Bounds(t time.Time) (start, end time.Time) {
	y, m, d := t.In(c.loc).Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, c.loc)
	end = time.Date(y, m, d+1, 0, 0, 0, 0, c.loc)
	return start.UTC(), end.UTC()
}

// ParseDay returns local midnight of a YYYY-MM-DD date.
func (c Calendar) ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, c.loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
