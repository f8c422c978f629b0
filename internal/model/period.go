package model

import (
	"regexp"
	"time"
)

const dateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Period is an inclusive date range. End defaults to "today" at parse time
// when the caller omits it.
type Period struct {
	Start time.Time `json:"-"`
	End   time.Time `json:"-"`
}

// now is swapped in tests to pin "today".
var now = time.Now

// ParsePeriod validates and parses a start/end date pair. An empty end means
// today. Rejects before any upstream call when start > end.
func ParsePeriod(start, end string) (Period, error) {
	startT, err := parseDate("start", start)
	if err != nil {
		return Period{}, err
	}

	var endT time.Time
	if end == "" {
		y, m, d := now().Date()
		endT = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	} else {
		endT, err = parseDate("end", end)
		if err != nil {
			return Period{}, err
		}
	}

	if startT.After(endT) {
		return Period{}, Invalid("start", "start date %s is after end date %s", startT.Format(dateLayout), endT.Format(dateLayout))
	}
	return Period{Start: startT, End: endT}, nil
}

// ParseOptionalPeriod treats an empty start as "all time" (Unix epoch).
func ParseOptionalPeriod(start, end string) (Period, error) {
	if start == "" {
		start = "1970-01-01"
	}
	return ParsePeriod(start, end)
}

func parseDate(field, value string) (time.Time, error) {
	if !datePattern.MatchString(value) {
		return time.Time{}, Invalid(field, "must be an ISO date (YYYY-MM-DD), got %q", value)
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, Invalid(field, "invalid date %q", value)
	}
	return t, nil
}

// Days returns the inclusive day count of the period.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

func (p Period) StartString() string { return p.Start.Format(dateLayout) }
func (p Period) EndString() string   { return p.End.Format(dateLayout) }

func (p Period) String() string {
	return p.StartString() + " to " + p.EndString()
}

// MarshalJSON keeps periods stable on the wire as {"start": ..., "end": ...}.
func (p Period) MarshalJSON() ([]byte, error) {
	return []byte(`{"start":"` + p.StartString() + `","end":"` + p.EndString() + `"}`), nil
}
