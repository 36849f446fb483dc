package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "slotcal/internal/log"
	"slotcal/internal/model"
)

var (
	// ErrEmptyBody is returned by Parse for a zero-length payload.
	ErrEmptyBody = errors.New("empty ICS body")

	errRecurring = errors.New("recurring event")
	errAllDay    = errors.New("all-day event")
)

// Parse converts an ICS payload into drafts suitable for seeding the store.
// Times are converted to loc.
//
// Recurring and all-day VEVENTs are skipped, as are events missing a
// summary or a timed DTSTART/DTEND. Each skip is logged; only a payload that
// cannot be parsed at all is an error.
func Parse(body []byte, loc *time.Location) ([]model.Draft, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse calendar: %w", err)
	}

	drafts := make([]model.Draft, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		d, perr := parseVEvent(ve, loc)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "uid", propValue(ve, ical.ComponentPropertyUniqueId), "reason", perr.Error())
			continue
		}
		drafts = append(drafts, d)
	}

	appLog.Debug("ics parse completed", "vevents", len(cal.Events()), "drafts", len(drafts))
	return drafts, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Draft, error) {
	var out model.Draft

	if ve.GetProperty(ical.ComponentPropertyRrule) != nil {
		return out, errRecurring
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	if isDateOnly(dtStart) {
		return out, errAllDay
	}

	out.Title = strings.TrimSpace(propValue(ve, ical.ComponentPropertySummary))
	if out.Title == "" {
		return out, errors.New("missing SUMMARY")
	}
	out.Description = propValue(ve, ical.ComponentPropertyDescription)

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, fmt.Errorf("DTEND: %w", err)
	}
	out.Start = start.In(loc)
	out.End = end.In(loc)
	return out, nil
}

// isDateOnly reports whether a DTSTART is VALUE=DATE or has no time part.
func isDateOnly(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}
