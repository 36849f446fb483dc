// Package slots computes the advisory state the calendar grid is drawn
// with: which slots are grayed out, which days are past or today, and the
// notices shown when the user clicks an unavailable slot. None of it gates
// a commit; validation does that.
package slots

import (
	"errors"
	"time"

	"slotcal/internal/interval"
	"slotcal/internal/metrics"
	"slotcal/internal/model"
)

var (
	ErrPastSlot   = errors.New("You cannot book a meeting in the past.")
	ErrSlotBooked = errors.New("This time slot is already booked. Please select a different time.")
)

// DayState classifies a calendar day relative to today.
type DayState int

const (
	DayFuture DayState = iota
	DayToday
	DayPast
)

func (s DayState) String() string {
	switch s {
	case DayToday:
		return "today"
	case DayPast:
		return "past"
	default:
		return "future"
	}
}

type Service struct {
	Now       func() time.Time
	Location  *time.Location
	WeekStart time.Weekday
}

func NewService(loc *time.Location, weekStart time.Weekday) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		Now:       time.Now,
		Location:  loc,
		WeekStart: weekStart,
	}
}

// IsSlotDisabled reports whether the slot starting at slotStart is in the
// past or collides with an event over one SlotDuration.
func (s *Service) IsSlotDisabled(slotStart time.Time, events []model.Event) bool {
	if slotStart.Before(s.Now()) {
		return true
	}
	return overlapsAny(slotStart, slotStart.Add(model.SlotDuration), events)
}

func (s *Service) IsPastDay(day time.Time) bool {
	return s.ClassifyDay(day) == DayPast
}

func (s *Service) IsToday(day time.Time) bool {
	return s.ClassifyDay(day) == DayToday
}

// ClassifyDay compares the midnight of day with the midnight of today.
func (s *Service) ClassifyDay(day time.Time) DayState {
	d := interval.MidnightOf(day, s.Location)
	today := interval.MidnightOf(s.Now(), s.Location)
	switch {
	case d.Before(today):
		return DayPast
	case d.Equal(today):
		return DayToday
	default:
		return DayFuture
	}
}

// CheckSelection is the gate in front of the create dialog when the user
// drags or clicks a raw range on the grid. A zero end checks one slot.
func (s *Service) CheckSelection(start, end time.Time, events []model.Event) error {
	if end.IsZero() {
		end = start.Add(model.SlotDuration)
	}
	if start.Before(s.Now()) {
		metrics.RecordSelectionRejected("past")
		return ErrPastSlot
	}
	if overlapsAny(start, end, events) {
		metrics.RecordSelectionRejected("booked")
		return ErrSlotBooked
	}
	return nil
}

func overlapsAny(start, end time.Time, events []model.Event) bool {
	for _, ev := range events {
		if interval.Overlaps(start, end, ev.Start, ev.End) {
			return true
		}
	}
	return false
}
