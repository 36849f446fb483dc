package web

import (
	"net/http"
	"time"

	"slotcal/internal/model"
	"slotcal/internal/workflow"
)

type draftDTO struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// dialogView is the client's picture of the event dialog.
type dialogView struct {
	State   string    `json:"state"`
	IsNew   bool      `json:"is_new,omitempty"`
	EventID int       `json:"event_id,omitempty"`
	Draft   *draftDTO `json:"draft,omitempty"`
	Error   string    `json:"error,omitempty"`
	Action  string    `json:"action,omitempty"`
	Prompt  string    `json:"prompt,omitempty"`
}

func (s *Server) dialogViewLocked() dialogView {
	st := s.workflow.State()
	view := dialogView{State: st.Name()}

	var ed workflow.Editing
	switch v := st.(type) {
	case workflow.Idle:
		return view
	case workflow.Editing:
		ed = v
	case workflow.ConfirmPending:
		ed = v.Editing
		view.Action = v.Action.String()
		view.Prompt = s.workflow.Prompt()
	}

	view.IsNew = ed.IsNew
	view.EventID = ed.ExcludeID
	view.Error = ed.Error
	view.Draft = &draftDTO{
		Title:       ed.Draft.Title,
		Description: ed.Draft.Description,
		Start:       ed.Draft.Start.In(s.loc),
		End:         ed.Draft.End.In(s.loc),
	}
	return view
}

// dialogOp runs op under the dialog lock and replies with the resulting view
// or the mapped error.
func (s *Server) dialogOp(w http.ResponseWriter, op func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := op(); err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dialogViewLocked())
}

// GET /api/dialog
func (s *Server) handleDialog(w http.ResponseWriter, _ *http.Request) {
	s.dialogOp(w, func() error { return nil })
}

type selectionRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// POST /api/selection: a click or drag on the grid. Unavailable ranges are
// refused with the notice text; otherwise a create dialog opens one slot
// long at the range start. end only widens the availability check.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start, err := s.parseTime(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := s.parseOptionalTime(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.dialogOp(w, func() error {
		if err := s.slots.CheckSelection(start, end, s.store.List()); err != nil {
			return err
		}
		return s.workflow.OpenForCreate(start)
	})
}

type createRequest struct {
	DefaultDate string `json:"default_date"`
}

// POST /api/dialog/create
func (s *Server) handleDialogCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	at, err := s.parseOptionalTime(req.DefaultDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.dialogOp(w, func() error { return s.workflow.OpenForCreate(at) })
}

type editRequest struct {
	EventID int `json:"event_id"`
}

// POST /api/dialog/edit
func (s *Server) handleDialogEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EventID == model.NoID {
		writeError(w, http.StatusBadRequest, "event_id is required")
		return
	}
	s.dialogOp(w, func() error { return s.workflow.OpenForEdit(req.EventID) })
}

type patchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
}

// PATCH /api/dialog
func (s *Server) handleDialogPatch(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p := workflow.Patch{Title: req.Title, Description: req.Description}
	for _, f := range []struct {
		in  *string
		out **time.Time
	}{{req.Start, &p.Start}, {req.End, &p.End}} {
		if f.in == nil {
			continue
		}
		t, err := s.parseTime(*f.in)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		*f.out = &t
	}
	s.dialogOp(w, func() error { return s.workflow.Apply(p) })
}

// POST /api/dialog/submit
func (s *Server) handleDialogSubmit(w http.ResponseWriter, _ *http.Request) {
	s.dialogOp(w, s.workflow.Submit)
}

// POST /api/dialog/delete
func (s *Server) handleDialogDelete(w http.ResponseWriter, _ *http.Request) {
	s.dialogOp(w, s.workflow.RequestDelete)
}

// POST /api/dialog/cancel
func (s *Server) handleDialogCancel(w http.ResponseWriter, _ *http.Request) {
	s.dialogOp(w, s.workflow.CancelConfirm)
}

// DELETE /api/dialog
func (s *Server) handleDialogClose(w http.ResponseWriter, _ *http.Request) {
	s.dialogOp(w, s.workflow.Close)
}

type confirmResponse struct {
	Action  string     `json:"action"`
	Applied bool       `json:"applied"`
	Event   *eventDTO  `json:"event,omitempty"`
	Dialog  dialogView `json:"dialog"`
}

// POST /api/dialog/confirm
func (s *Server) handleDialogConfirm(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.workflow.Confirm()
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	resp := confirmResponse{
		Action:  c.Action.String(),
		Applied: c.Applied,
		Dialog:  s.dialogViewLocked(),
	}
	if c.Applied {
		ev := s.eventDTO(c.Event)
		resp.Event = &ev
	}
	writeJSON(w, http.StatusOK, resp)
}
