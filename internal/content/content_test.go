package content

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestWeekStartIsMonday(t *testing.T) {
	cases := map[string]string{
		"2024-06-03": "2024-06-03",
		"2024-06-05": "2024-06-03",
		"2024-06-09": "2024-06-03",
		"2024-06-10": "2024-06-10",
		"2024-01-01": "2024-01-01",
		"2023-12-31": "2023-12-25",
	}
	for in, want := range cases {
		d, err := ParseDate(in)
		if err != nil {
			t.Fatalf("parse %s: %v", in, err)
		}
		if got := WeekStart(d).String(); got != want {
			t.Fatalf("WeekStart(%s) = %s, want %s", in, got, want)
		}
	}
	if got := WeekEnd(NewDate(2024, time.June, 3)).String(); got != "2024-06-09" {
		t.Fatalf("WeekEnd = %s, want 2024-06-09", got)
	}
}

func TestWeekRangeLabel(t *testing.T) {
	start := NewDate(2024, time.June, 3)
	if got := WeekRangeLabel(start, Date{}); got != "Jun 3 - Jun 9, 2024" {
		t.Fatalf("label = %q", got)
	}
}

func TestScheduleDecodesServerPayload(t *testing.T) {
	payload := `{
		"id": 12,
		"week_start_date": "2024-06-03",
		"week_end_date": "2024-06-09",
		"tone": "friendly",
		"insurance_types": ["final_expense"],
		"created_at": "2024-06-01T10:11:12.123456",
		"posts": [
			{"id": 2, "post_date": "2024-06-04", "post_text": "b", "hashtags": ["#b"], "image_url": null},
			{"id": 1, "post_date": "2024-06-03", "post_text": "a", "hashtags": ["#a", "#x"], "image_url": "http://img/1.png"}
		]
	}`
	var sched Schedule
	if err := json.Unmarshal([]byte(payload), &sched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sched.CreatedAt == nil || sched.CreatedAt.Year() != 2024 {
		t.Fatalf("created_at not parsed: %+v", sched.CreatedAt)
	}
	sorted := sched.SortedPosts()
	if sorted[0].ID != 1 || sorted[1].ID != 2 {
		t.Fatalf("posts not sorted by date: %+v", sorted)
	}
	missing := sched.PostsWithoutImages()
	if len(missing) != 1 || missing[0].ID != 2 {
		t.Fatalf("missing = %+v, want post 2", missing)
	}
	if got := sorted[0].ClipboardText(); got != "a\n\n#a #x" {
		t.Fatalf("clipboard text = %q", got)
	}
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	orig := Schedule{InsuranceTypes: []string{"a"}, Posts: []Post{{ID: 1, Hashtags: []string{"#x"}}}}
	cp := orig.Clone()
	cp.InsuranceTypes[0] = "b"
	cp.Posts[0].Hashtags[0] = "#y"
	cp.Posts[0].ImageURL = "set"
	if orig.InsuranceTypes[0] != "a" || orig.Posts[0].Hashtags[0] != "#x" || orig.Posts[0].HasImage() {
		t.Fatalf("clone leaked mutation into original: %+v", orig)
	}
}

func TestGenerationRequestValidate(t *testing.T) {
	req := GenerationRequest{Tone: "friendly"}
	err := req.Validate()
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "insurance_types" {
		t.Fatalf("expected insurance_types validation error, got %v", err)
	}
	req = GenerationRequest{InsuranceTypes: []string{"final_expense"}, Tone: "  "}
	if err := req.Validate(); !errors.As(err, &vErr) || vErr.Field != "tone" {
		t.Fatalf("expected tone validation error, got %v", err)
	}
	req.Tone = "urgent"
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestCheckoutRequestValidate(t *testing.T) {
	if err := (CheckoutRequest{PlanType: PlanAnnual}).Validate(); err != nil {
		t.Fatalf("annual should be valid: %v", err)
	}
	if err := (CheckoutRequest{PlanType: "weekly"}).Validate(); err == nil {
		t.Fatalf("expected weekly to be rejected")
	}
}

type messageErr string

func (m messageErr) Error() string         { return "transport: " + string(m) }
func (m messageErr) RemoteMessage() string { return string(m) }

func TestRemoteMessageFallsBack(t *testing.T) {
	if got := RemoteMessage(messageErr("Quota exceeded"), "fallback"); got != "Quota exceeded" {
		t.Fatalf("got %q", got)
	}
	if got := RemoteMessage(messageErr(""), "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
	if got := RemoteMessage(errors.New("dial tcp"), "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
	failure := NewFailure("delete", messageErr("nope"), "fallback")
	if UserMessage(failure) != "nope" {
		t.Fatalf("user message = %q", UserMessage(failure))
	}
}

func TestHumanizeAndLabels(t *testing.T) {
	opts := Options{{Value: "final_expense", Label: "Final Expense Insurance"}}
	if got := opts.Label("final_expense"); got != "Final Expense Insurance" {
		t.Fatalf("label = %q", got)
	}
	if got := opts.Label("index_universal_life"); got != "Index Universal Life" {
		t.Fatalf("fallback label = %q", got)
	}
	if got := FormatCents(2997); got != "$29.97" {
		t.Fatalf("cents = %q", got)
	}
}
