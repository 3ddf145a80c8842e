package recurrence

import (
	"errors"
	"sort"
	"time"
)

var brt = time.FixedZone("BRT", -3*60*60)

// MaxWindow bounds how many days a single expansion may cover.
const MaxWindow = 366 * 24 * time.Hour

// ErrInvalidWindow indicates the generation window ends before it starts.
var ErrInvalidWindow = errors.New("recurrence: window end precedes start")

// ErrWindowTooLarge indicates the generation window exceeds MaxWindow.
var ErrWindowTooLarge = errors.New("recurrence: window too large")

// ErrInvalidWeekday indicates a weekday outside Sunday..Saturday.
var ErrInvalidWeekday = errors.New("recurrence: invalid weekday")

// Engine expands weekly weekday sets into calendar dates.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that normalizes dates to the provided
// location. If loc is nil, Brasília time (UTC-3) is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = brt
	}
	return &Engine{location: loc}
}

// Dates lists every date between from and to, inclusive, whose weekday is in
// weekdays. Results are midnight in the engine location, ascending and free
// of duplicates.
func (e *Engine) Dates(weekdays []time.Weekday, from, to time.Time) ([]time.Time, error) {
	loc := e.location
	if loc == nil {
		loc = brt
	}

	start := startOfDay(from, loc)
	end := startOfDay(to, loc)
	if end.Before(start) {
		return nil, ErrInvalidWindow
	}
	if end.Sub(start) > MaxWindow {
		return nil, ErrWindowTooLarge
	}

	set := make(map[time.Weekday]struct{}, len(weekdays))
	for _, day := range weekdays {
		if day < time.Sunday || day > time.Saturday {
			return nil, ErrInvalidWeekday
		}
		set[day] = struct{}{}
	}
	if len(set) == 0 {
		return nil, nil
	}

	dates := make([]time.Time, 0)
	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		if _, ok := set[current.Weekday()]; ok {
			dates = append(dates, current)
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
