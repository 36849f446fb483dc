package workflow

import "slotcal/internal/model"

// State is one of Idle, Editing or ConfirmPending. Each variant carries only
// the data that is meaningful in that state.
type State interface {
	Name() string
	isState()
}

// Idle means no dialog is open.
type Idle struct{}

// Editing means the event dialog is open with Draft as its fields.
type Editing struct {
	Draft model.Draft
	// IsNew is true for a dialog opened to create an event.
	IsNew bool
	// ExcludeID is the id of the event being edited, model.NoID when IsNew.
	ExcludeID int
	// Error is the message of the last failed submit. Any field edit clears it.
	Error string
}

// ConfirmPending means the confirmation prompt is showing on top of the
// event dialog. Cancelling returns to Editing unchanged.
type ConfirmPending struct {
	Editing Editing
	Action  model.Action
}

func (Idle) Name() string           { return "idle" }
func (Editing) Name() string        { return "editing" }
func (ConfirmPending) Name() string { return "confirm_pending" }

func (Idle) isState()           {}
func (Editing) isState()        {}
func (ConfirmPending) isState() {}
