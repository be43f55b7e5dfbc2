package engine

import (
	"time"
)

// Clock abstracts wall time so market-hours gating is testable without
// real waiting.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

// Calendar decides whether the market is open at a given instant.
type Calendar interface {
	IsOpen(t time.Time) bool
}

// USEquityCalendar gates trading to regular US equity hours: 9:30-16:00
// local exchange time, Monday through Friday. Exchange holidays are not
// modeled; a holiday behaves like a quiet session.
type USEquityCalendar struct {
	loc *time.Location
}

func NewUSEquityCalendar(timezone string) (*USEquityCalendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &USEquityCalendar{loc: loc}, nil
}

func (c *USEquityCalendar) IsOpen(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}

// AlwaysOpenCalendar never gates; used for simulation runs.
type AlwaysOpenCalendar struct{}

func (AlwaysOpenCalendar) IsOpen(time.Time) bool { return true }
