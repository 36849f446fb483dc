package model

import (
	"errors"
	"time"
)

// NoID marks a draft that is not bound to a stored event. Store ids start at 1.
const NoID = 0

var (
	ErrNotFound   = errors.New("event not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("event overlaps another event")
)

// Event is a committed calendar entry. Start and End are local wall-clock
// times; a stored event always satisfies End-Start >= MinDuration.
type Event struct {
	ID          int
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// Draft returns the editable fields of e.
func (e Event) Draft() Draft {
	return Draft{
		Title:       e.Title,
		Description: e.Description,
		Start:       e.Start,
		End:         e.End,
	}
}

// Draft is an uncommitted event: the candidate held while a dialog is open,
// or the input to a store mutation.
type Draft struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// MinDuration is the shortest event the calendar accepts.
const MinDuration = 15 * time.Minute

// SlotDuration is the length of one grid slot and of a freshly opened draft.
const SlotDuration = 30 * time.Minute

// Action is the mutation waiting for confirmation.
type Action int

const (
	ActionNone Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "none"
	}
}

// Prompt is the question shown in the confirmation dialog.
func (a Action) Prompt() string {
	if a == ActionNone {
		return ""
	}
	return "Are you sure you want to " + a.String() + " this event?"
}
