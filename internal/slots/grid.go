package slots

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"slotcal/internal/interval"
	"slotcal/internal/model"
)

// SlotState is one cell of the day/week grid.
type SlotState struct {
	Start    time.Time
	End      time.Time
	Disabled bool
}

// GridDay is one cell of the mini month calendar.
type GridDay struct {
	Date       time.Time
	InMonth    bool
	Today      bool
	Past       bool
	Selected   bool
	EventCount int
}

// DaySlots returns the SlotDuration cells covering day (midnight to
// midnight in the service location) with their disabled state. A DST day
// has 46 or 50 cells: the rule steps in UTC so every instant of the day is
// covered exactly once.
func (s *Service) DaySlots(day time.Time, events []model.Event) ([]SlotState, error) {
	start := interval.MidnightOf(day, s.Location)
	next := start.AddDate(0, 0, 1)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.MINUTELY,
		Interval: int(model.SlotDuration / time.Minute),
		Dtstart:  start.UTC(),
		Until:    next.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("slots: day rule: %w", err)
	}

	out := make([]SlotState, 0, int(next.Sub(start)/model.SlotDuration))
	for _, t := range r.All() {
		if !t.Before(next) {
			break
		}
		t = t.In(s.Location)
		out = append(out, SlotState{
			Start:    t,
			End:      t.Add(model.SlotDuration),
			Disabled: s.IsSlotDisabled(t, events),
		})
	}
	return out, nil
}

// MonthGrid returns the days shown by the mini calendar for month: whole
// weeks (starting on s.WeekStart) from the week holding the 1st to the week
// holding the last day. selected may be zero.
func (s *Service) MonthGrid(month, selected time.Time, events []model.Event) ([]GridDay, error) {
	m := month.In(s.Location)
	first := time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, s.Location)
	last := first.AddDate(0, 1, -1)

	gridStart := first.AddDate(0, 0, -daysSince(first.Weekday(), s.WeekStart))
	gridEnd := last.AddDate(0, 0, 6-daysSince(last.Weekday(), s.WeekStart))

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: gridStart,
		Until:   gridEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("slots: month rule: %w", err)
	}

	counts := eventsPerDay(events, s.Location)
	var sel time.Time
	if !selected.IsZero() {
		sel = interval.MidnightOf(selected, s.Location)
	}

	days := r.All()
	out := make([]GridDay, 0, len(days))
	for _, d := range days {
		d = interval.MidnightOf(d, s.Location)
		state := s.ClassifyDay(d)
		out = append(out, GridDay{
			Date:       d,
			InMonth:    d.Month() == first.Month(),
			Today:      state == DayToday,
			Past:       state == DayPast,
			Selected:   !sel.IsZero() && d.Equal(sel),
			EventCount: counts[d.Format(time.DateOnly)],
		})
	}
	return out, nil
}

// daysSince is how many days wd lies after the week start.
func daysSince(wd, weekStart time.Weekday) int {
	return (int(wd) - int(weekStart) + 7) % 7
}

func eventsPerDay(events []model.Event, loc *time.Location) map[string]int {
	counts := make(map[string]int, len(events))
	for _, ev := range events {
		counts[ev.Start.In(loc).Format(time.DateOnly)]++
	}
	return counts
}
