package store

import (
	"time"

	appLog "slotcal/internal/log"
	"slotcal/internal/model"
)

// Seed adds drafts in order and returns how many were stored. Seeds skip
// the "not in the past" rule, but a seed that would break the store
// invariants is logged and dropped.
func (s *Store) Seed(source string, drafts []model.Draft) int {
	added := 0
	for _, d := range drafts {
		ev, err := s.Add(d)
		if err != nil {
			appLog.Error("seed event rejected", err, "source", source, "title", d.Title, "start", d.Start.Format(time.RFC3339))
			continue
		}
		appLog.Debug("seed event stored", "source", source, "id", ev.ID, "title", ev.Title)
		added++
	}
	appLog.Info("seed completed", "source", source, "requested", len(drafts), "added", added)
	return added
}

// DemoDrafts returns the sample calendar laid out around today (midnight of
// the current day in its location): a few finished meetings and three
// back-to-back sessions early today.
func DemoDrafts(today time.Time) []model.Draft {
	at := func(dayOffset, hh, mm int) time.Time {
		return time.Date(today.Year(), today.Month(), today.Day()+dayOffset, hh, mm, 0, 0, today.Location())
	}
	return []model.Draft{
		{Title: "Demo Meeting", Description: "Initial demo event", Start: at(-1, 10, 0), End: at(-1, 11, 0)},
		{Title: "Bijan Test3", Start: at(-5, 15, 30), End: at(-5, 16, 0)},
		{Title: "Bijan Test2", Start: at(-3, 0, 30), End: at(-3, 1, 0)},
		{Title: "Demo check", Description: "demo meeting 1", Start: at(0, 2, 31), End: at(0, 3, 0)},
		{Title: "demo meeting 2", Description: "demo meeting 2", Start: at(0, 3, 0), End: at(0, 3, 30)},
		{Title: "Demo meeting 3", Description: "demo ", Start: at(0, 4, 0), End: at(0, 4, 30)},
	}
}
