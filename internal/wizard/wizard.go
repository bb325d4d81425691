package wizard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/insurecontent/internal/content"
)

var (
	// ErrStepIncomplete is returned when advancing past a step whose guard fails.
	ErrStepIncomplete = errors.New("wizard: step incomplete")
	// ErrFirstStep is returned when retreating from the first step.
	ErrFirstStep = errors.New("wizard: already at first step")
	// ErrLastStep is returned when advancing from the review step.
	ErrLastStep = errors.New("wizard: already at review step")
)

// Step enumerates the wizard screens.
type Step int

const (
	StepTypes Step = iota + 1
	StepToneWeek
	StepReview
)

// StepCount is the number of steps.
const StepCount = int(StepReview)

// Title returns the heading shown for the step.
func (s Step) Title() string {
	switch s {
	case StepTypes:
		return "Select Insurance Types"
	case StepToneWeek:
		return "Choose Tone & Week"
	case StepReview:
		return "Review & Generate"
	default:
		return "Unknown"
	}
}

func (s Step) String() string {
	return fmt.Sprintf("step %d/%d", int(s), StepCount)
}

// Draft is the in-progress generation request.
type Draft struct {
	InsuranceTypes   []string
	Tone             string
	AdditionalPrompt string
	WeekStart        content.Date
}

// WeekEnd is the Sunday closing the selected week.
func (d Draft) WeekEnd() content.Date {
	return content.WeekEnd(d.WeekStart)
}

// WeekLabel renders the selected week.
func (d Draft) WeekLabel() string {
	return content.WeekRangeLabel(d.WeekStart, d.WeekEnd())
}

func (d Draft) clone() Draft {
	out := d
	out.InsuranceTypes = append([]string(nil), d.InsuranceTypes...)
	return out
}

// Wizard is the state machine value.
type Wizard struct {
	step  Step
	draft Draft
}

// New starts at StepTypes with the week defaulted to the Monday of now's week.
func New(now time.Time) Wizard {
	return Wizard{
		step: StepTypes,
		draft: Draft{
			WeekStart: content.WeekStart(content.DateOf(now)),
		},
	}
}

// Step returns the current step.
func (w Wizard) Step() Step {
	return w.step
}

// Draft returns a copy of the draft.
func (w Wizard) Draft() Draft {
	return w.draft.clone()
}

// CanAdvance reports whether the current step's guard passes.
func (w Wizard) CanAdvance() bool {
	switch w.step {
	case StepTypes:
		return len(w.draft.InsuranceTypes) > 0
	case StepToneWeek:
		return strings.TrimSpace(w.draft.Tone) != "" && !w.draft.WeekStart.IsZero()
	default:
		return false
	}
}

// Advance moves to the next step when the guard passes.
func (w Wizard) Advance() (Wizard, error) {
	if w.step >= StepReview {
		return w, ErrLastStep
	}
	if !w.CanAdvance() {
		return w, fmt.Errorf("%w: %s", ErrStepIncomplete, w.step.Title())
	}
	next := w.copy()
	next.step++
	return next, nil
}

// CanRetreat reports whether there is a previous step.
func (w Wizard) CanRetreat() bool {
	return w.step > StepTypes
}

// Retreat moves back one step. Draft fields are kept as they are.
func (w Wizard) Retreat() (Wizard, error) {
	if !w.CanRetreat() {
		return w, ErrFirstStep
	}
	prev := w.copy()
	prev.step--
	return prev, nil
}

// Includes reports whether value is selected.
func (w Wizard) Includes(value string) bool {
	for _, v := range w.draft.InsuranceTypes {
		if v == value {
			return true
		}
	}
	return false
}

// ToggleInsuranceType sets or clears membership of value. Selection order
// is kept, and repeating a call is a no-op.
func (w Wizard) ToggleInsuranceType(value string, included bool) Wizard {
	value = strings.TrimSpace(value)
	next := w.copy()
	if value == "" {
		return next
	}
	switch {
	case included && !w.Includes(value):
		next.draft.InsuranceTypes = append(next.draft.InsuranceTypes, value)
	case !included:
		kept := next.draft.InsuranceTypes[:0]
		for _, v := range next.draft.InsuranceTypes {
			if v != value {
				kept = append(kept, v)
			}
		}
		next.draft.InsuranceTypes = kept
	}
	return next
}

// SetTone replaces the tone.
func (w Wizard) SetTone(value string) Wizard {
	next := w.copy()
	next.draft.Tone = value
	return next
}

// SetWeekStart replaces the week start date.
func (w Wizard) SetWeekStart(d content.Date) Wizard {
	next := w.copy()
	next.draft.WeekStart = d
	return next
}

// ShiftWeek moves the selected week by n weeks, snapping to a Monday.
func (w Wizard) ShiftWeek(n int) Wizard {
	start := w.draft.WeekStart
	if start.IsZero() {
		return w.copy()
	}
	return w.SetWeekStart(content.WeekStart(start).AddDays(7 * n))
}

// SetAdditionalPrompt replaces the free-form prompt.
func (w Wizard) SetAdditionalPrompt(text string) Wizard {
	next := w.copy()
	next.draft.AdditionalPrompt = text
	return next
}

// Request converts the draft into the submit payload.
func (w Wizard) Request() content.GenerationRequest {
	d := w.draft.clone()
	return content.GenerationRequest{
		InsuranceTypes:   d.InsuranceTypes,
		Tone:             strings.TrimSpace(d.Tone),
		AdditionalPrompt: strings.TrimSpace(d.AdditionalPrompt),
		WeekStartDate:    d.WeekStart,
	}
}

// CanSubmit reports whether the draft satisfies the submit preconditions.
func (w Wizard) CanSubmit() bool {
	return w.step == StepReview && w.Request().Validate() == nil
}

func (w Wizard) copy() Wizard {
	return Wizard{step: w.step, draft: w.draft.clone()}
}
