// Package workflow is the create/edit/delete dialog state machine. Every
// store mutation goes through an explicit confirmation:
//
//	Idle --OpenForCreate/OpenForEdit--> Editing
//	Editing --Submit (valid)--> ConfirmPending(create|update)
//	Editing --RequestDelete--> ConfirmPending(delete)
//	ConfirmPending --Confirm--> Idle (store mutated)
//	ConfirmPending --CancelConfirm--> Editing
//	Editing/ConfirmPending --Close--> Idle
package workflow

import (
	"errors"
	"fmt"
	"time"

	appLog "slotcal/internal/log"
	"slotcal/internal/metrics"
	"slotcal/internal/model"
	"slotcal/internal/validate"
)

// ErrInvalidTransition is returned when an operation is not allowed in the
// current state. The state is left unchanged.
var ErrInvalidTransition = errors.New("operation not allowed in current dialog state")

// EventStore is the subset of the store the workflow reads and commits to.
type EventStore interface {
	List() []model.Event
	Get(id int) (model.Event, error)
	Add(d model.Draft) (model.Event, error)
	Update(id int, d model.Draft) (model.Event, error)
	Remove(id int) bool
}

type Validator interface {
	Validate(d model.Draft, excludeID int, existing []model.Event) error
}

// Patch holds the dialog fields to change; nil fields are left alone.
type Patch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
}

// Commit describes what Confirm did to the store.
type Commit struct {
	Action model.Action
	// Event is the stored event after create/update, or the deleted event's
	// last known state.
	Event model.Event
	// Applied is false when the target had vanished and nothing changed.
	Applied bool
}

type Workflow struct {
	store     EventStore
	validator Validator
	now       func() time.Time
	state     State
}

func New(store EventStore, validator Validator) *Workflow {
	return &Workflow{
		store:     store,
		validator: validator,
		now:       time.Now,
		state:     Idle{},
	}
}

// SetClock replaces the clock used to default a create dialog's start.
func (w *Workflow) SetClock(now func() time.Time) {
	w.now = now
}

func (w *Workflow) State() State {
	return w.state
}

// Prompt is the confirmation question while ConfirmPending, "" otherwise.
func (w *Workflow) Prompt() string {
	if cp, ok := w.state.(ConfirmPending); ok {
		return cp.Action.Prompt()
	}
	return ""
}

// OpenForCreate opens an empty dialog starting at defaultDate and lasting
// one slot. A zero defaultDate means now.
func (w *Workflow) OpenForCreate(defaultDate time.Time) error {
	if _, ok := w.state.(Idle); !ok {
		return fmt.Errorf("open for create from %s: %w", w.state.Name(), ErrInvalidTransition)
	}
	if defaultDate.IsZero() {
		defaultDate = w.now()
	}
	w.state = Editing{
		Draft: model.Draft{
			Start: defaultDate,
			End:   defaultDate.Add(model.SlotDuration),
		},
		IsNew:     true,
		ExcludeID: model.NoID,
	}
	return nil
}

// OpenForEdit opens the dialog on a copy of stored event id.
func (w *Workflow) OpenForEdit(id int) error {
	if _, ok := w.state.(Idle); !ok {
		return fmt.Errorf("open for edit from %s: %w", w.state.Name(), ErrInvalidTransition)
	}
	ev, err := w.store.Get(id)
	if err != nil {
		return err
	}
	w.state = Editing{
		Draft:     ev.Draft(),
		ExcludeID: ev.ID,
	}
	return nil
}

// Apply edits the dialog fields and clears any shown error.
func (w *Workflow) Apply(p Patch) error {
	ed, ok := w.state.(Editing)
	if !ok {
		return fmt.Errorf("edit fields in %s: %w", w.state.Name(), ErrInvalidTransition)
	}
	if p.Title != nil {
		ed.Draft.Title = *p.Title
	}
	if p.Description != nil {
		ed.Draft.Description = *p.Description
	}
	if p.Start != nil {
		ed.Draft.Start = *p.Start
	}
	if p.End != nil {
		ed.Draft.End = *p.End
	}
	ed.Error = ""
	w.state = ed
	return nil
}

func (w *Workflow) SetTitle(v string) error       { return w.Apply(Patch{Title: &v}) }
func (w *Workflow) SetDescription(v string) error { return w.Apply(Patch{Description: &v}) }
func (w *Workflow) SetStart(v time.Time) error    { return w.Apply(Patch{Start: &v}) }
func (w *Workflow) SetEnd(v time.Time) error      { return w.Apply(Patch{End: &v}) }

// Submit validates the draft against the current store contents. On success
// the dialog moves to ConfirmPending; on failure it stays in Editing with
// the message recorded and the *validate.Error returned.
func (w *Workflow) Submit() error {
	ed, ok := w.state.(Editing)
	if !ok {
		return fmt.Errorf("submit from %s: %w", w.state.Name(), ErrInvalidTransition)
	}
	if err := w.validator.Validate(ed.Draft, ed.ExcludeID, w.store.List()); err != nil {
		ed.Error = err.Error()
		w.state = ed
		appLog.Debug("dialog submit rejected", "reason", err.Error(), "event_id", ed.ExcludeID)
		return err
	}

	action := model.ActionCreate
	if !ed.IsNew {
		action = model.ActionUpdate
	}
	ed.Error = ""
	w.state = ConfirmPending{Editing: ed, Action: action}
	return nil
}

// RequestDelete asks for confirmation to delete the event being edited.
// The draft fields are not validated.
func (w *Workflow) RequestDelete() error {
	ed, ok := w.state.(Editing)
	if !ok || ed.IsNew {
		return fmt.Errorf("request delete from %s: %w", w.state.Name(), ErrInvalidTransition)
	}
	ed.Error = ""
	w.state = ConfirmPending{Editing: ed, Action: model.ActionDelete}
	return nil
}

// CancelConfirm dismisses the prompt and returns to the dialog as it was.
func (w *Workflow) CancelConfirm() error {
	cp, ok := w.state.(ConfirmPending)
	if !ok {
		return fmt.Errorf("cancel confirm from %s: %w", w.state.Name(), ErrInvalidTransition)
	}
	w.state = cp.Editing
	return nil
}

// Close discards the dialog without touching the store.
func (w *Workflow) Close() error {
	if _, ok := w.state.(Idle); ok {
		return fmt.Errorf("close from idle: %w", ErrInvalidTransition)
	}
	w.state = Idle{}
	return nil
}

// Confirm applies the pending action to the store and returns to Idle.
//
// A target that disappeared before the commit is not an error: the result
// has Applied=false. If the store refuses the draft because another event
// now occupies the range, the dialog goes back to Editing with the overlap
// message and that *validate.Error is returned.
func (w *Workflow) Confirm() (Commit, error) {
	cp, ok := w.state.(ConfirmPending)
	if !ok {
		return Commit{}, fmt.Errorf("confirm from %s: %w", w.state.Name(), ErrInvalidTransition)
	}

	c, err := w.commit(cp)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrNotFound):
		appLog.Warn("commit target vanished", "action", cp.Action.String(), "event_id", cp.Editing.ExcludeID)
		c = Commit{Action: cp.Action}
	case errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrValidation):
		rule := validate.RuleOverlap
		if !errors.Is(err, model.ErrConflict) {
			rule = validate.RuleMinDuration
		}
		verr := &validate.Error{Rule: rule}
		ed := cp.Editing
		ed.Error = verr.Error()
		w.state = ed
		metrics.RecordCommit(cp.Action.String(), "conflict")
		appLog.Warn("commit refused by store", "action", cp.Action.String(), "event_id", ed.ExcludeID, "err", err.Error())
		return Commit{Action: cp.Action}, verr
	default:
		return Commit{}, err
	}

	w.state = Idle{}
	outcome := "applied"
	if !c.Applied {
		outcome = "noop"
	}
	metrics.RecordCommit(c.Action.String(), outcome)
	appLog.Info("event committed", "action", c.Action.String(), "event_id", c.Event.ID, "applied", c.Applied)
	return c, nil
}

func (w *Workflow) commit(cp ConfirmPending) (Commit, error) {
	ed := cp.Editing
	switch cp.Action {
	case model.ActionCreate:
		ev, err := w.store.Add(ed.Draft)
		if err != nil {
			return Commit{}, err
		}
		return Commit{Action: cp.Action, Event: ev, Applied: true}, nil
	case model.ActionUpdate:
		ev, err := w.store.Update(ed.ExcludeID, ed.Draft)
		if err != nil {
			return Commit{}, err
		}
		return Commit{Action: cp.Action, Event: ev, Applied: true}, nil
	case model.ActionDelete:
		ev, err := w.store.Get(ed.ExcludeID)
		if err != nil {
			return Commit{}, err
		}
		if !w.store.Remove(ed.ExcludeID) {
			return Commit{}, fmt.Errorf("remove event %d: %w", ed.ExcludeID, model.ErrNotFound)
		}
		return Commit{Action: cp.Action, Event: ev, Applied: true}, nil
	default:
		return Commit{}, fmt.Errorf("confirm unknown action %d: %w", cp.Action, ErrInvalidTransition)
	}
}
