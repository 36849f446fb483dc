// Package store is the in-memory event list. It is the only owner of event
// identity and the last line of defence for the calendar invariants: every
// stored event is at least model.MinDuration long and no two stored events
// overlap.
package store

import (
	"fmt"
	"slices"
	"sync"

	"slotcal/internal/interval"
	"slotcal/internal/metrics"
	"slotcal/internal/model"
)

type Store struct {
	mu     sync.RWMutex
	events []model.Event
	// lastID is the highest id ever issued; ids are never handed out twice
	// even after the event holding the maximum id is removed.
	lastID int
}

func New() *Store {
	return &Store{}
}

// List returns a copy of all events ordered by start time, then id.
func (s *Store) List() []model.Event {
	s.mu.RLock()
	out := slices.Clone(s.events)
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.ID - b.ID
	})
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) Get(id int) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Event{}, fmt.Errorf("get event %d: %w", id, model.ErrNotFound)
	}
	return s.events[i], nil
}

// Add stores d under a fresh id: one more than the largest id ever issued,
// or 1 when nothing has been stored yet. The counter is a high-water mark,
// not max+1 over the current events, so ids are never reused, even after
// the newest event is removed.
func (s *Store) Add(d model.Draft) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(d, model.NoID); err != nil {
		return model.Event{}, fmt.Errorf("add event: %w", err)
	}

	ev := model.Event{
		ID:          s.nextIDLocked(),
		Title:       d.Title,
		Description: d.Description,
		Start:       d.Start,
		End:         d.End,
	}
	s.events = append(s.events, ev)
	s.lastID = ev.ID
	metrics.SetEventsStored(len(s.events))
	return ev, nil
}

// Update replaces the fields of event id with d.
func (s *Store) Update(id int, d model.Draft) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Event{}, fmt.Errorf("update event %d: %w", id, model.ErrNotFound)
	}
	if err := s.checkLocked(d, id); err != nil {
		return model.Event{}, fmt.Errorf("update event %d: %w", id, err)
	}

	ev := model.Event{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		Start:       d.Start,
		End:         d.End,
	}
	s.events[i] = ev
	return ev, nil
}

// Remove deletes event id and reports whether it was present. Removing an
// unknown id is a no-op.
func (s *Store) Remove(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.events = slices.Delete(s.events, i, i+1)
	metrics.SetEventsStored(len(s.events))
	return true
}

func (s *Store) indexOf(id int) int {
	return slices.IndexFunc(s.events, func(e model.Event) bool { return e.ID == id })
}

func (s *Store) nextIDLocked() int {
	maxID := s.lastID
	for _, e := range s.events {
		maxID = max(maxID, e.ID)
	}
	return maxID + 1
}

// checkLocked enforces the stored-event invariants for d, ignoring the event
// with id skip.
func (s *Store) checkLocked(d model.Draft, skip int) error {
	if interval.Duration(d.Start, d.End) < model.MinDuration {
		return fmt.Errorf("%w: event shorter than %s", model.ErrValidation, model.MinDuration)
	}
	for _, e := range s.events {
		if e.ID == skip {
			continue
		}
		if interval.Overlaps(d.Start, d.End, e.Start, e.End) {
			return fmt.Errorf("%w: event %d", model.ErrConflict, e.ID)
		}
	}
	return nil
}
