package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Resolver turns relative due phrases ("by Friday", "next week") into
// concrete times, interpreted against the message's receipt time in the
// configured timezone. Phrases it cannot resolve map to nil, never to a
// guessed date.
type Resolver struct {
	loc         *time.Location
	defaultHour int
}

// NewResolver creates a resolver for the given timezone. defaultHour is the
// hour of day assigned when the phrase names a day but no time.
func NewResolver(loc *time.Location, defaultHour int) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if defaultHour < 0 || defaultHour > 23 {
		defaultHour = 17
	}
	return &Resolver{loc: loc, defaultHour: defaultHour}
}

var (
	inDaysPattern  = regexp.MustCompile(`^in (\d+) days?$`)
	inWeeksPattern = regexp.MustCompile(`^in (\d+) weeks?$`)
)

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// Resolve maps a due phrase to a concrete time, or nil when the phrase
// carries no resolvable date.
func (r *Resolver) Resolve(phrase string, receivedAt time.Time) *time.Time {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if p == "" {
		return nil
	}

	// Strip connective lead-ins the model tends to keep
	for _, prefix := range []string{"due ", "by ", "on ", "before ", "until "} {
		if strings.HasPrefix(p, prefix) {
			p = strings.TrimPrefix(p, prefix)
			break
		}
	}
	p = strings.TrimPrefix(p, "the ")
	p = strings.TrimSpace(p)

	now := receivedAt.In(r.loc)

	// Absolute dates first
	if t, err := time.ParseInLocation("2006-01-02 15:04", p, r.loc); err == nil {
		return &t
	}
	if t, err := time.ParseInLocation("2006-01-02", p, r.loc); err == nil {
		t = r.atDefaultHour(t)
		return &t
	}

	switch p {
	case "today", "tonight", "end of day", "eod":
		t := r.atDefaultHour(now)
		return &t
	case "tomorrow":
		t := r.atDefaultHour(now.AddDate(0, 0, 1))
		return &t
	case "next week":
		t := r.atDefaultHour(nextWeekday(now, time.Monday))
		return &t
	case "end of week", "end of the week", "eow":
		t := r.atDefaultHour(nextWeekday(now, time.Friday))
		return &t
	case "end of month", "end of the month", "eom":
		firstOfNext := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, r.loc).AddDate(0, 1, 0)
		t := r.atDefaultHour(firstOfNext.AddDate(0, 0, -1))
		return &t
	}

	if m := inDaysPattern.FindStringSubmatch(p); m != nil {
		n, _ := strconv.Atoi(m[1])
		t := r.atDefaultHour(now.AddDate(0, 0, n))
		return &t
	}
	if m := inWeeksPattern.FindStringSubmatch(p); m != nil {
		n, _ := strconv.Atoi(m[1])
		t := r.atDefaultHour(now.AddDate(0, 0, 7*n))
		return &t
	}

	if rest, ok := strings.CutPrefix(p, "next "); ok {
		if wd, found := weekdays[rest]; found {
			t := r.atDefaultHour(nextWeekday(now, wd).AddDate(0, 0, 7))
			return &t
		}
	}
	if wd, found := weekdays[p]; found {
		t := r.atDefaultHour(nextWeekday(now, wd))
		return &t
	}

	return nil
}

// nextWeekday returns the first occurrence of wd strictly after day
func nextWeekday(day time.Time, wd time.Weekday) time.Time {
	ahead := (int(wd) - int(day.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return day.AddDate(0, 0, ahead)
}

func (r *Resolver) atDefaultHour(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), r.defaultHour, 0, 0, 0, r.loc)
}
