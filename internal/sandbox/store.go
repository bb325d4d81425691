package sandbox

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/insurecontent/internal/content"
)

// Account is the single agent the sandbox knows about.
type Account struct {
	ID        int64
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// DefaultAccount signs in with agent@example.com / sandbox-password.
var DefaultAccount = Account{
	ID:        1,
	Email:     "agent@example.com",
	Password:  "sandbox-password",
	FirstName: "Dana",
	LastName:  "Rivera",
}

// Subscription statuses stored by the sandbox. "cancelled" is accepted by
// the status endpoint but never granted generation rights.
const (
	statusTrial     = "trial"
	statusActive    = "active"
	statusExpired   = "expired"
	statusCancelled = "cancelled"
)

// TrialDays is the length of a fresh trial.
const TrialDays = 7

const (
	monthlyAmount = 2997
	annualAmount  = 29997
	imageCost     = 0.04
)

type billing struct {
	status            string
	trialEnd          time.Time
	subscriptionID    string
	customerID        string
	planInterval      string
	planAmount        int64
	startDate         time.Time
	periodEnd         time.Time
	cancelAtPeriodEnd bool
}

// store is the sandbox's in-memory database.
type store struct {
	mu sync.Mutex

	account   Account
	billing   billing
	schedules map[int64]*content.Schedule
	nextSched int64
	nextPost  int64
	versions  map[int64]int

	// fault injection
	failImage           map[int64]string
	failGeneration      string
	failGenerationArmed bool
	failBatch           string
	calls               map[string]int
}

func newStore(account Account, now time.Time) *store {
	return &store{
		account: account,
		billing: billing{
			status:   statusTrial,
			trialEnd: now.Add(TrialDays * 24 * time.Hour),
		},
		schedules: make(map[int64]*content.Schedule),
		nextSched: 1,
		nextPost:  1,
		versions:  make(map[int64]int),
		failImage: make(map[int64]string),
		calls:     make(map[string]int),
	}
}

func (s *store) count(op string) {
	s.calls[op]++
}

func (s *store) canGenerate(now time.Time) bool {
	switch s.billing.status {
	case statusActive:
		return true
	case statusTrial:
		return now.Before(s.billing.trialEnd)
	default:
		return false
	}
}

func (s *store) trialDaysRemaining(now time.Time) int {
	if s.billing.status != statusTrial {
		return 0
	}
	days := int(s.billing.trialEnd.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func (s *store) agent(now time.Time) content.Agent {
	status := s.billing.status
	if status == statusTrial && !now.Before(s.billing.trialEnd) {
		status = statusExpired
	}
	return content.Agent{
		ID:                 s.account.ID,
		Email:              s.account.Email,
		FirstName:          s.account.FirstName,
		LastName:           s.account.LastName,
		SubscriptionStatus: status,
		TrialEndDate:       content.NewTimestamp(s.billing.trialEnd),
	}
}

func (s *store) session(now time.Time) content.Session {
	return content.Session{
		Agent:              s.agent(now),
		TrialDaysRemaining: s.trialDaysRemaining(now),
		SubscriptionActive: s.canGenerate(now),
	}
}

func (s *store) status(now time.Time) content.SubscriptionStatus {
	out := content.SubscriptionStatus{
		Status:             s.agent(now).SubscriptionStatus,
		TrialEndDate:       content.NewTimestamp(s.billing.trialEnd),
		CanGenerateContent: s.canGenerate(now),
	}
	if s.billing.subscriptionID != "" {
		out.SubscriptionStartDate = content.NewTimestamp(s.billing.startDate)
		out.CurrentPeriodEnd = content.NewTimestamp(s.billing.periodEnd)
		out.PlanAmount = s.billing.planAmount
		out.PlanInterval = s.billing.planInterval
		out.CancelAtPeriodEnd = s.billing.cancelAtPeriodEnd
	}
	return out
}

func (s *store) scheduleForWeek(start content.Date) (*content.Schedule, bool) {
	for _, sched := range s.schedules {
		if sched.WeekStartDate.Equal(start) {
			return sched, true
		}
	}
	return nil, false
}

func (s *store) list() []content.Schedule {
	out := make([]content.Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, sched.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WeekStartDate.Equal(out[j].WeekStartDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].WeekStartDate.After(out[j].WeekStartDate)
	})
	return out
}

// postByID returns the post and its schedule.
func (s *store) postByID(id int64) (*content.Schedule, int, bool) {
	for _, sched := range s.schedules {
		for i := range sched.Posts {
			if sched.Posts[i].ID == id {
				return sched, i, true
			}
		}
	}
	return nil, 0, false
}

func (s *store) imageURL(base string, postID int64) string {
	s.versions[postID]++
	return fmt.Sprintf("%s/static/images/post-%d-v%d.png", base, postID, s.versions[postID])
}

// create writes a new schedule for req. The week start is snapped to Monday.
func (s *store) create(req content.GenerationRequest, now time.Time) content.Schedule {
	start := content.WeekStart(req.WeekStartDate)
	sched := &content.Schedule{
		ID:               s.nextSched,
		AgentID:          s.account.ID,
		WeekStartDate:    start,
		WeekEndDate:      content.WeekEnd(start),
		GenerationPrompt: strings.TrimSpace(req.AdditionalPrompt),
		Tone:             req.Tone,
		InsuranceTypes:   append([]string(nil), req.InsuranceTypes...),
		CreatedAt:        content.NewTimestamp(now),
	}
	s.nextSched++
	for day := 0; day < 7; day++ {
		sched.Posts = append(sched.Posts, s.writePost(sched, day, now))
	}
	s.schedules[sched.ID] = sched
	return sched.Clone()
}

var dailyThemes = []string{
	"Motivation Monday",
	"Tip Tuesday",
	"Wisdom Wednesday",
	"Testimonial Thursday",
	"FAQ Friday",
	"Story Saturday",
	"Sunday Reflection",
}

var toneOpeners = map[string]string{
	"serious":      "Here is something every family should take seriously this week.",
	"funny":        "Insurance talk, but make it fun.",
	"direct":       "Straight to the point.",
	"sarcastic":    "Because nothing bad ever happens, right?",
	"urgent":       "Don't wait on this one.",
	"friendly":     "Hey friends! Quick thought for you today.",
	"professional": "A brief planning note for your household.",
}

// insuranceTypes and tones are the enumerations the sandbox serves.
var insuranceTypes = []string{
	"mortgage_protection",
	"index_universal_life",
	"term_life_living_benefits",
	"final_expense",
	"annuities",
	"health_insurance",
}

var tones = []string{"serious", "funny", "direct", "sarcastic", "urgent", "friendly", "professional"}

func (s *store) writePost(sched *content.Schedule, day int, now time.Time) content.Post {
	focus := sched.InsuranceTypes[day%len(sched.InsuranceTypes)]
	theme := dailyThemes[day%len(dailyThemes)]
	opener, ok := toneOpeners[sched.Tone]
	if !ok {
		opener = "A quick note for you today."
	}
	label := content.Humanize(focus)
	text := fmt.Sprintf("%s %s: %s can keep your plans on track. Send me a message to see what fits your family.",
		opener, theme, label)
	if sched.GenerationPrompt != "" && day == 0 {
		text += " " + sched.GenerationPrompt
	}
	post := content.Post{
		ID:                 s.nextPost,
		ScheduleID:         sched.ID,
		PostDate:           sched.WeekStartDate.AddDays(day),
		PostText:           text,
		Hashtags:           []string{hashtag(label), "#InsuranceTips", hashtag(theme)},
		ContentTheme:       theme,
		InsuranceTypeFocus: focus,
		ImageDescription:   fmt.Sprintf("Warm photo illustrating %s for a %s post", strings.ToLower(label), strings.ToLower(theme)),
		CreatedAt:          content.NewTimestamp(now),
	}
	s.nextPost++
	return post
}

func hashtag(words string) string {
	var b strings.Builder
	b.WriteByte('#')
	for _, field := range strings.Fields(words) {
		b.WriteString(strings.ToUpper(field[:1]))
		b.WriteString(field[1:])
	}
	return b.String()
}
