package ics

import (
	"errors"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"slotcal/internal/model"
)

// DefaultProductID is the PRODID written when ExportOptions leaves it empty.
const DefaultProductID = "-//slotcal//Booking Calendar//EN"

// uidNamespace scopes the name-based UUIDs used as VEVENT UIDs.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:slotcal:event"))

type ExportOptions struct {
	ProductID string
	// Now stamps DTSTAMP. Defaults to time.Now.
	Now func() time.Time
}

// UID returns the stable VEVENT UID for a stored event id.
func UID(id int) string {
	return uuid.NewSHA1(uidNamespace, []byte(strconv.Itoa(id))).String()
}

// Export renders events as a PUBLISH calendar. Times are written in UTC.
func Export(events []model.Event, opts ExportOptions) ([]byte, error) {
	if opts.ProductID == "" {
		opts.ProductID = DefaultProductID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	stamp := opts.Now().UTC()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProductID)

	for _, ev := range events {
		if ev.ID == model.NoID {
			return nil, errors.New("ics: export of unstored event")
		}
		ve := cal.AddEvent(UID(ev.ID))
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(ev.End.UTC())
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
	}

	return []byte(cal.Serialize()), nil
}
