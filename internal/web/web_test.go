package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotcal/internal/config"
	"slotcal/internal/model"
	"slotcal/internal/slots"
	"slotcal/internal/store"
	"slotcal/internal/validate"
	"slotcal/internal/workflow"
)

var now = time.Date(2025, 5, 21, 3, 19, 0, 0, time.UTC)

func ts(day, hh, mm int) time.Time {
	return time.Date(2025, 5, day, hh, mm, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, mutate func(*config.Config), seed ...model.Draft) (http.Handler, *store.Store) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.RateLimit.Requests = 0
	if mutate != nil {
		mutate(cfg)
	}

	clock := func() time.Time { return now }
	st := store.New()
	for _, d := range seed {
		_, err := st.Add(d)
		require.NoError(t, err)
	}
	sl := &slots.Service{Now: clock, Location: time.UTC, WeekStart: time.Sunday}
	wf := workflow.New(st, &validate.Engine{Now: clock})
	wf.SetClock(clock)

	srv, err := NewServer(Deps{Config: cfg, Location: time.UTC, Store: st, Slots: sl, Workflow: wf})
	require.NoError(t, err)
	return srv.Handler(), st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var booked = model.Draft{Title: "Booked", Start: ts(22, 9, 0), End: ts(22, 10, 0)}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(Deps{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	h, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "pw"}
	})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	rec := do(t, h, http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "pw")
	ok := httptest.NewRecorder()
	h.ServeHTTP(ok, req)
	assert.Equal(t, http.StatusOK, ok.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "nope")
	bad := httptest.NewRecorder()
	h.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestRateLimit(t *testing.T) {
	h, _ := newTestServer(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{Requests: 2, Window: time.Minute}
	})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/events", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/events", "").Code)

	rec := do(t, h, http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Outside /api is not limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, nil, booked)

	rec := do(t, h, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "slotcal_events_stored")
}

func TestEvents(t *testing.T) {
	h, _ := newTestServer(t, nil, booked)

	rec := do(t, h, http.MethodGet, "/api/events", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[eventsResponse](t, rec)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, 1, resp.Events[0].ID)
	assert.Equal(t, "Booked", resp.Events[0].Title)
	assert.True(t, booked.Start.Equal(resp.Events[0].Start))
	assert.Equal(t, "UTC", resp.TimeZone)
}

func TestEventsICS(t *testing.T) {
	h, _ := newTestServer(t, nil, booked)

	rec := do(t, h, http.MethodGet, "/api/events.ics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	assert.Contains(t, rec.Body.String(), "SUMMARY:Booked")
	assert.Contains(t, rec.Body.String(), "DTSTART:20250522T090000Z")
}

func TestSlot(t *testing.T) {
	h, _ := newTestServer(t, nil, booked)

	tests := []struct {
		start    string
		disabled bool
	}{
		{"2025-05-22T08:30", false},
		{"2025-05-22T09:30", true},
		{"2025-05-22T10:00:00Z", false},
		{"2025-05-21T03:00", true},
	}
	for _, tt := range tests {
		rec := do(t, h, http.MethodGet, "/api/slots?start="+tt.start, "")
		require.Equal(t, http.StatusOK, rec.Code, tt.start)
		assert.Equal(t, tt.disabled, decode[slotResponse](t, rec).Disabled, tt.start)
	}

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/slots?start=soon", "").Code)
}

func TestDay(t *testing.T) {
	h, _ := newTestServer(t, nil, booked)

	rec := do(t, h, http.MethodGet, "/api/days/2025-05-22", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dayResponse](t, rec)
	assert.Equal(t, "future", resp.State)
	require.Len(t, resp.Slots, 48)
	assert.False(t, resp.Slots[16].Disabled, "08:00")
	assert.True(t, resp.Slots[18].Disabled, "09:00")
	assert.True(t, resp.Slots[19].Disabled, "09:30")
	assert.False(t, resp.Slots[20].Disabled, "10:00")

	past := decode[dayResponse](t, do(t, h, http.MethodGet, "/api/days/2025-05-20", ""))
	assert.Equal(t, "past", past.State)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/days/tomorrow", "").Code)
}

func TestMonth(t *testing.T) {
	h, _ := newTestServer(t, nil, booked)

	rec := do(t, h, http.MethodGet, "/api/month?selected=2025-05-22", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[monthResponse](t, rec)
	assert.Equal(t, "2025-05", resp.Month)
	assert.Equal(t, "sunday", resp.WeekStart)
	require.Len(t, resp.Days, 35)
	assert.Equal(t, "2025-04-27", resp.Days[0].Date)
	for _, d := range resp.Days {
		switch d.Date {
		case "2025-05-21":
			assert.True(t, d.Today)
		case "2025-05-22":
			assert.True(t, d.Selected)
			assert.Equal(t, 1, d.EventCount)
		}
	}

	june := decode[monthResponse](t, do(t, h, http.MethodGet, "/api/month?month=2025-06", ""))
	assert.Equal(t, "2025-06", june.Month)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/month?month=June", "").Code)
}

func TestOverlaps(t *testing.T) {
	h, _ := newTestServer(t, nil)

	touching := `{"a_start":"2025-05-22T10:00","a_end":"2025-05-22T11:00","b_start":"2025-05-22T11:00","b_end":"2025-05-22T12:00"}`
	crossing := `{"a_start":"2025-05-22T10:00","a_end":"2025-05-22T11:00","b_start":"2025-05-22T10:30","b_end":"2025-05-22T12:00"}`

	assert.False(t, decode[map[string]bool](t, do(t, h, http.MethodPost, "/api/overlaps", touching))["overlaps"])
	assert.True(t, decode[map[string]bool](t, do(t, h, http.MethodPost, "/api/overlaps", crossing))["overlaps"])
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/overlaps", `{"a_start":"x"}`).Code)
}

func TestSelection(t *testing.T) {
	h, _ := newTestServer(t, nil, booked)

	rec := do(t, h, http.MethodPost, "/api/selection", `{"start":"2025-05-21T02:00"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "You cannot book a meeting in the past.", decode[errorResponse](t, rec).Error)

	rec = do(t, h, http.MethodPost, "/api/selection", `{"start":"2025-05-22T09:30","end":"2025-05-22T10:30"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "This time slot is already booked. Please select a different time.", decode[errorResponse](t, rec).Error)

	// Notices leave the dialog closed.
	assert.Equal(t, "idle", decode[dialogView](t, do(t, h, http.MethodGet, "/api/dialog", "")).State)

	rec = do(t, h, http.MethodPost, "/api/selection", `{"start":"2025-05-22T10:00","end":"2025-05-22T11:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[dialogView](t, rec)
	assert.Equal(t, "editing", view.State)
	assert.True(t, view.IsNew)
	require.NotNil(t, view.Draft)
	assert.True(t, ts(22, 10, 0).Equal(view.Draft.Start))
	assert.True(t, ts(22, 10, 30).Equal(view.Draft.End), "draft is one slot long")

	// A second selection while the dialog is open is refused.
	rec = do(t, h, http.MethodPost, "/api/selection", `{"start":"2025-05-23T10:00"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSelection_WholeDayOpensOneSlot(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/selection", `{"start":"2025-05-23T00:00","end":"2025-05-24T00:00"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[dialogView](t, rec)
	require.NotNil(t, view.Draft)
	assert.True(t, ts(23, 0, 0).Equal(view.Draft.Start))
	assert.True(t, ts(23, 0, 30).Equal(view.Draft.End))
}

func TestSelection_EndWidensBookedCheck(t *testing.T) {
	h, _ := newTestServer(t, nil, booked)

	// The first slot is free but the range runs into the booked event.
	rec := do(t, h, http.MethodPost, "/api/selection", `{"start":"2025-05-22T08:00","end":"2025-05-22T09:30"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "idle", decode[dialogView](t, do(t, h, http.MethodGet, "/api/dialog", "")).State)
}

func TestDialog_CreateFlow(t *testing.T) {
	h, st := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/dialog/create", `{"default_date":"2025-05-22T14:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/dialog/submit", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	fail := decode[errorResponse](t, rec)
	assert.Equal(t, "Title cannot be empty.", fail.Error)
	assert.Equal(t, "title", fail.Rule)
	require.NotNil(t, fail.Dialog)
	assert.Equal(t, "editing", fail.Dialog.State)
	assert.Equal(t, "Title cannot be empty.", fail.Dialog.Error)

	rec = do(t, h, http.MethodPatch, "/api/dialog", `{"title":"Retro","description":"sprint 12","end":"2025-05-22T15:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[dialogView](t, rec)
	assert.Empty(t, view.Error)
	assert.Equal(t, "Retro", view.Draft.Title)

	rec = do(t, h, http.MethodPost, "/api/dialog/submit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[dialogView](t, rec)
	assert.Equal(t, "confirm_pending", view.State)
	assert.Equal(t, "create", view.Action)
	assert.Equal(t, "Are you sure you want to create this event?", view.Prompt)
	assert.Zero(t, st.Len())

	rec = do(t, h, http.MethodPost, "/api/dialog/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[confirmResponse](t, rec)
	assert.True(t, done.Applied)
	assert.Equal(t, "create", done.Action)
	require.NotNil(t, done.Event)
	assert.Equal(t, 1, done.Event.ID)
	assert.Equal(t, "idle", done.Dialog.State)

	ev, err := st.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "sprint 12", ev.Description)
	assert.True(t, ts(22, 15, 0).Equal(ev.End))
}

func TestDialog_CreateWithoutDate(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/dialog/create", "")

	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[dialogView](t, rec)
	assert.True(t, now.Equal(view.Draft.Start))
}

func TestDialog_EditOverlapAndDelete(t *testing.T) {
	other := model.Draft{Title: "Other", Start: ts(22, 11, 0), End: ts(22, 12, 0)}
	h, st := newTestServer(t, nil, booked, other)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/dialog/edit", `{"event_id":42}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/dialog/edit", `{}`).Code)

	rec := do(t, h, http.MethodPost, "/api/dialog/edit", `{"event_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[dialogView](t, rec)
	assert.False(t, view.IsNew)
	assert.Equal(t, 1, view.EventID)

	do(t, h, http.MethodPatch, "/api/dialog", `{"end":"2025-05-22T11:30"}`)
	rec = do(t, h, http.MethodPost, "/api/dialog/submit", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "overlap", decode[errorResponse](t, rec).Rule)

	rec = do(t, h, http.MethodPost, "/api/dialog/delete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[dialogView](t, rec)
	assert.Equal(t, "delete", view.Action)
	assert.Equal(t, "Are you sure you want to delete this event?", view.Prompt)

	rec = do(t, h, http.MethodPost, "/api/dialog/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "editing", decode[dialogView](t, rec).State)

	do(t, h, http.MethodPost, "/api/dialog/delete", "")
	rec = do(t, h, http.MethodPost, "/api/dialog/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[confirmResponse](t, rec).Applied)
	assert.Equal(t, 1, st.Len())
	_, err := st.Get(1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDialog_InvalidTransitions(t *testing.T) {
	h, _ := newTestServer(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/dialog/submit"},
		{http.MethodPost, "/api/dialog/delete"},
		{http.MethodPost, "/api/dialog/confirm"},
		{http.MethodPost, "/api/dialog/cancel"},
		{http.MethodDelete, "/api/dialog"},
		{http.MethodPatch, "/api/dialog"},
	} {
		rec := do(t, h, tc.method, tc.path, "")
		assert.Equal(t, http.StatusConflict, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestDialog_CloseDiscards(t *testing.T) {
	h, st := newTestServer(t, nil)
	do(t, h, http.MethodPost, "/api/dialog/create", `{"default_date":"2025-05-22T14:00"}`)
	do(t, h, http.MethodPatch, "/api/dialog", `{"title":"draft"}`)
	do(t, h, http.MethodPost, "/api/dialog/submit", "")

	rec := do(t, h, http.MethodDelete, "/api/dialog", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decode[dialogView](t, rec).State)
	assert.Zero(t, st.Len())
}

func TestDialog_BadPayloads(t *testing.T) {
	h, _ := newTestServer(t, nil)
	do(t, h, http.MethodPost, "/api/dialog/create", "")

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPatch, "/api/dialog", `{"start":"someday"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPatch, "/api/dialog", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/selection", `{"start":""}`).Code)
}

func TestDecodeJSON_BodyLimit(t *testing.T) {
	h, _ := newTestServer(t, nil)
	do(t, h, http.MethodPost, "/api/dialog/create", "")

	huge := `{"title":"` + strings.Repeat("x", maxRequestBody) + `"}`
	rec := do(t, h, http.MethodPatch, "/api/dialog", huge)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, decode[dialogView](t, do(t, h, http.MethodGet, "/api/dialog", "")).Draft.Title)
}
