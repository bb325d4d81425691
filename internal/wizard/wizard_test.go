package wizard

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kingrea/insurecontent/internal/content"
)

var wednesday = time.Date(2024, time.June, 5, 15, 30, 0, 0, time.UTC)

func TestNewDefaultsToMondayOfCurrentWeek(t *testing.T) {
	w := New(wednesday)
	if w.Step() != StepTypes {
		t.Fatalf("initial step = %v, want StepTypes", w.Step())
	}
	d := w.Draft()
	if got := d.WeekStart.String(); got != "2024-06-03" {
		t.Fatalf("week start = %s, want 2024-06-03", got)
	}
	if len(d.InsuranceTypes) != 0 || d.Tone != "" {
		t.Fatalf("expected empty draft, got %+v", d)
	}
	if d.WeekLabel() != "Jun 3 - Jun 9, 2024" {
		t.Fatalf("week label = %q", d.WeekLabel())
	}
}

func TestAdvanceGuards(t *testing.T) {
	type tc struct {
		name    string
		types   []string
		tone    string
		week    content.Date
		from    Step
		allowed bool
	}
	monday := content.NewDate(2024, time.June, 3)
	cases := []tc{
		{name: "step1 empty", from: StepTypes, allowed: false},
		{name: "step1 one type", types: []string{"final_expense"}, from: StepTypes, allowed: true},
		{name: "step2 no tone", types: []string{"a"}, week: monday, from: StepToneWeek, allowed: false},
		{name: "step2 no week", types: []string{"a"}, tone: "friendly", from: StepToneWeek, allowed: false},
		{name: "step2 blank tone", types: []string{"a"}, tone: "   ", week: monday, from: StepToneWeek, allowed: false},
		{name: "step2 complete", types: []string{"a"}, tone: "friendly", week: monday, from: StepToneWeek, allowed: true},
		{name: "step2 ignores types", tone: "friendly", week: monday, from: StepToneWeek, allowed: true},
	}
	for _, c := range cases {
		w := Wizard{step: c.from, draft: Draft{InsuranceTypes: c.types, Tone: c.tone, WeekStart: c.week}}
		if got := w.CanAdvance(); got != c.allowed {
			t.Fatalf("%s: CanAdvance = %v, want %v", c.name, got, c.allowed)
		}
		next, err := w.Advance()
		if c.allowed {
			if err != nil {
				t.Fatalf("%s: advance error: %v", c.name, err)
			}
			if next.Step() != c.from+1 {
				t.Fatalf("%s: step = %v, want %v", c.name, next.Step(), c.from+1)
			}
			continue
		}
		if !errors.Is(err, ErrStepIncomplete) {
			t.Fatalf("%s: expected ErrStepIncomplete, got %v", c.name, err)
		}
		if next.Step() != c.from {
			t.Fatalf("%s: failed advance moved to %v", c.name, next.Step())
		}
	}
}

func TestAdvanceFromReviewFails(t *testing.T) {
	w := Wizard{step: StepReview, draft: Draft{InsuranceTypes: []string{"a"}, Tone: "x"}}
	if w.CanAdvance() {
		t.Fatalf("review step must not advance")
	}
	if _, err := w.Advance(); !errors.Is(err, ErrLastStep) {
		t.Fatalf("expected ErrLastStep, got %v", err)
	}
}

func TestRetreatPreservesDraft(t *testing.T) {
	w := New(wednesday).
		ToggleInsuranceType("final_expense", true).
		ToggleInsuranceType("annuities", true)
	w, err := w.Advance()
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	w = w.SetTone("friendly").SetAdditionalPrompt("mention open enrollment")
	w, err = w.Advance()
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	before := w.Draft()
	for w.CanRetreat() {
		w, err = w.Retreat()
		if err != nil {
			t.Fatalf("retreat: %v", err)
		}
		if !reflect.DeepEqual(w.Draft(), before) {
			t.Fatalf("retreat changed draft: %+v vs %+v", w.Draft(), before)
		}
	}
	if w.Step() != StepTypes {
		t.Fatalf("expected to end at StepTypes, got %v", w.Step())
	}
	if _, err := w.Retreat(); !errors.Is(err, ErrFirstStep) {
		t.Fatalf("expected ErrFirstStep, got %v", err)
	}
}

func TestToggleIsIdempotentAndKeepsOrder(t *testing.T) {
	w := New(wednesday)
	w = w.ToggleInsuranceType("b", true).ToggleInsuranceType("a", true).ToggleInsuranceType("b", true)
	if got := w.Draft().InsuranceTypes; !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Fatalf("types = %v, want [b a]", got)
	}
	w = w.ToggleInsuranceType("b", false).ToggleInsuranceType("b", false)
	if got := w.Draft().InsuranceTypes; !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("types = %v, want [a]", got)
	}
}

func TestTransitionsDoNotMutateReceiver(t *testing.T) {
	base := New(wednesday).ToggleInsuranceType("a", true)
	_ = base.ToggleInsuranceType("b", true)
	_ = base.ToggleInsuranceType("a", false)
	_ = base.SetTone("urgent")
	_ = base.SetWeekStart(content.Date{})
	if got := base.Draft(); !reflect.DeepEqual(got.InsuranceTypes, []string{"a"}) || got.Tone != "" || got.WeekStart.IsZero() {
		t.Fatalf("receiver mutated: %+v", got)
	}
	snapshot := base.Draft()
	snapshot.InsuranceTypes[0] = "z"
	if base.Includes("z") {
		t.Fatalf("Draft() leaked internal slice")
	}
}

func TestWritersDoNotValidate(t *testing.T) {
	w := New(wednesday).SetTone("").SetWeekStart(content.Date{}).SetAdditionalPrompt("")
	if !w.Draft().WeekStart.IsZero() {
		t.Fatalf("expected week start to be cleared")
	}
	w = Wizard{step: StepToneWeek, draft: w.Draft()}
	if w.CanAdvance() {
		t.Fatalf("cleared week must block step 2")
	}
}

func TestShiftWeekSnapsToMonday(t *testing.T) {
	w := New(wednesday).SetWeekStart(content.NewDate(2024, time.June, 6)).ShiftWeek(1)
	if got := w.Draft().WeekStart.String(); got != "2024-06-10" {
		t.Fatalf("shifted week = %s, want 2024-06-10", got)
	}
	w = w.ShiftWeek(-2)
	if got := w.Draft().WeekStart.String(); got != "2024-05-27" {
		t.Fatalf("shifted week = %s, want 2024-05-27", got)
	}
}

func TestRequestTrimsAndValidates(t *testing.T) {
	w := New(wednesday).ToggleInsuranceType("final_expense", true).SetTone(" friendly ").SetAdditionalPrompt("  hi  ")
	req := w.Request()
	if req.Tone != "friendly" || req.AdditionalPrompt != "hi" || req.WeekStartDate.String() != "2024-06-03" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if w.CanSubmit() {
		t.Fatalf("only the review step may submit")
	}
	w.step = StepReview
	if !w.CanSubmit() {
		t.Fatalf("expected review step with complete draft to submit")
	}
}
