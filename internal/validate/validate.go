// Package validate decides whether an event draft may be committed.
//
// Rules run in a fixed order and stop at the first failure, so when a draft
// has several problems the user sees exactly one message: the highest
// ranked one.
package validate

import (
	"strings"
	"time"

	"slotcal/internal/interval"
	"slotcal/internal/metrics"
	"slotcal/internal/model"
)

// Rule identifies one validation rule. Values follow evaluation order.
type Rule int

const (
	RuleTitle Rule = iota + 1
	RuleStartInPast
	RuleEndBeforeStart
	RuleMinDuration
	RuleOverlap
)

var ruleInfo = map[Rule]struct {
	name    string
	message string
}{
	RuleTitle:          {"title", "Title cannot be empty."},
	RuleStartInPast:    {"start_in_past", "Start time cannot be in the past."},
	RuleEndBeforeStart: {"end_before_start", "End time must be after start time."},
	RuleMinDuration:    {"min_duration", "Event must be at least 15 minutes long."},
	RuleOverlap:        {"overlap", "This event overlaps with another event. Please choose a different time."},
}

func (r Rule) String() string { return ruleInfo[r].name }

// Message is the user-facing text for a failure of r.
func (r Rule) Message() string { return ruleInfo[r].message }

// Error is a rejected draft. Error() is the message shown to the user.
type Error struct {
	Rule Rule
}

func (e *Error) Error() string { return e.Rule.Message() }

func (e *Error) Unwrap() error { return model.ErrValidation }

type Engine struct {
	Now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

// Validate checks d against the rules. excludeID is the id of the event
// being edited (model.NoID when creating); that event is ignored by the
// overlap rule. It returns nil or a *Error.
func (e *Engine) Validate(d model.Draft, excludeID int, existing []model.Event) error {
	rule := e.check(d, excludeID, existing)
	if rule == 0 {
		return nil
	}
	metrics.RecordValidationFailure(rule.String())
	return &Error{Rule: rule}
}

func (e *Engine) check(d model.Draft, excludeID int, existing []model.Event) Rule {
	if strings.TrimSpace(d.Title) == "" {
		return RuleTitle
	}
	if d.Start.Before(e.Now()) {
		return RuleStartInPast
	}
	if !d.End.After(d.Start) {
		return RuleEndBeforeStart
	}
	if interval.Duration(d.Start, d.End) < model.MinDuration {
		return RuleMinDuration
	}
	for _, other := range existing {
		if excludeID != model.NoID && other.ID == excludeID {
			continue
		}
		if interval.Overlaps(d.Start, d.End, other.Start, other.End) {
			return RuleOverlap
		}
	}
	return 0
}
