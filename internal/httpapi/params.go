package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/service"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

// parseRange reads startDate/endDate.  Each accepts RFC 3339 or YYYY-MM-DD
// in the ledger's zone.  A date-only endDate includes that whole day.
func parseRange(r *http.Request, cal service.Calendar) (store.TimeRange, error) {
	q := r.URL.Query()

	var (
		rng store.TimeRange
		err error
	)
	if v := strings.TrimSpace(q.Get("startDate")); v != "" {
		if rng.From, _, err = parseBound(v, cal); err != nil {
			return store.TimeRange{}, fmt.Errorf("startDate: %w", err)
		}
	}
	if v := strings.TrimSpace(q.Get("endDate")); v != "" {
		to, dateOnly, err := parseBound(v, cal)
		if err != nil {
			return store.TimeRange{}, fmt.Errorf("endDate: %w", err)
		}
		if dateOnly {
			_, to = cal.Bounds(to)
		}
		rng.To = to
	}
	return rng, nil
}

func parseBound(v string, cal service.Calendar) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), false, nil
	}
	if t, err := cal.ParseDay(v); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", v)
}

// parseOptionalTimestamp attempts to parse a sensor-reported timestamp.
// Returns nil if the string is empty or unparseable.
func parseOptionalTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		u := t.UTC()
		return &u
	}
	return nil
}
