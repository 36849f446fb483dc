package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"slotcal/internal/ics"
	"slotcal/internal/interval"
	appLog "slotcal/internal/log"
	"slotcal/internal/model"
)

type eventDTO struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

func (s *Server) eventDTO(ev model.Event) eventDTO {
	return eventDTO{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		Start:       ev.Start.In(s.loc),
		End:         ev.End.In(s.loc),
	}
}

type eventsResponse struct {
	Events   []eventDTO `json:"events"`
	TimeZone string     `json:"timezone"`
}

// GET /api/events
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	list := s.store.List()
	dtos := make([]eventDTO, 0, len(list))
	for _, ev := range list {
		dtos = append(dtos, s.eventDTO(ev))
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: dtos, TimeZone: s.loc.String()})
}

// GET /api/events.ics
func (s *Server) handleEventsICS(w http.ResponseWriter, _ *http.Request) {
	body, err := ics.Export(s.store.List(), ics.ExportOptions{Now: s.slots.Now})
	if err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export events")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="slotcal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type slotResponse struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Disabled bool      `json:"disabled"`
}

// GET /api/slots?start=2025-05-22T10:00
func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	start, err := s.parseTime(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, slotResponse{
		Start:    start,
		End:      start.Add(model.SlotDuration),
		Disabled: s.slots.IsSlotDisabled(start, s.store.List()),
	})
}

type dayResponse struct {
	Date  string         `json:"date"`
	State string         `json:"state"`
	Slots []slotResponse `json:"slots"`
}

// GET /api/days/{date}
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	day, err := time.ParseInLocation(time.DateOnly, chi.URLParam(r, "date"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	cells, err := s.slots.DaySlots(day, s.store.List())
	if err != nil {
		appLog.Error("day slots failed", err, "date", day.Format(time.DateOnly))
		writeError(w, http.StatusInternalServerError, "failed to compute slots")
		return
	}
	resp := dayResponse{
		Date:  day.Format(time.DateOnly),
		State: s.slots.ClassifyDay(day).String(),
		Slots: make([]slotResponse, 0, len(cells)),
	}
	for _, c := range cells {
		resp.Slots = append(resp.Slots, slotResponse{Start: c.Start, End: c.End, Disabled: c.Disabled})
	}
	writeJSON(w, http.StatusOK, resp)
}

type gridDayDTO struct {
	Date       string `json:"date"`
	InMonth    bool   `json:"in_month"`
	Today      bool   `json:"today"`
	Past       bool   `json:"past"`
	Selected   bool   `json:"selected"`
	EventCount int    `json:"event_count"`
}

type monthResponse struct {
	Month     string       `json:"month"`
	WeekStart string       `json:"week_start"`
	Days      []gridDayDTO `json:"days"`
}

// GET /api/month?month=2025-05&selected=2025-05-22
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	month := s.slots.Now().In(s.loc)
	if v := q.Get("month"); v != "" {
		m, err := time.ParseInLocation("2006-01", v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		month = m
	}
	var selected time.Time
	if v := q.Get("selected"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "selected must be YYYY-MM-DD")
			return
		}
		selected = d
	}

	grid, err := s.slots.MonthGrid(month, selected, s.store.List())
	if err != nil {
		appLog.Error("month grid failed", err, "month", month.Format("2006-01"))
		writeError(w, http.StatusInternalServerError, "failed to compute month")
		return
	}
	resp := monthResponse{
		Month:     month.Format("2006-01"),
		WeekStart: strings.ToLower(s.slots.WeekStart.String()),
		Days:      make([]gridDayDTO, 0, len(grid)),
	}
	for _, d := range grid {
		resp.Days = append(resp.Days, gridDayDTO{
			Date:       d.Date.Format(time.DateOnly),
			InMonth:    d.InMonth,
			Today:      d.Today,
			Past:       d.Past,
			Selected:   d.Selected,
			EventCount: d.EventCount,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type overlapsRequest struct {
	AStart string `json:"a_start"`
	AEnd   string `json:"a_end"`
	BStart string `json:"b_start"`
	BEnd   string `json:"b_end"`
}

// POST /api/overlaps
func (s *Server) handleOverlaps(w http.ResponseWriter, r *http.Request) {
	var req overlapsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var at [4]time.Time
	for i, v := range []string{req.AStart, req.AEnd, req.BStart, req.BEnd} {
		t, err := s.parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		at[i] = t
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"overlaps": interval.Overlaps(at[0], at[1], at[2], at[3]),
	})
}
