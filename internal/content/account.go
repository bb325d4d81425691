package content

import (
	"fmt"
	"strings"
)

// SubscriptionState is the normalized subscription status.
type SubscriptionState string

const (
	StateTrial   SubscriptionState = "trial"
	StateActive  SubscriptionState = "active"
	StateExpired SubscriptionState = "expired"
)

// SubscriptionStatus is the read-only snapshot served by the API. Status is
// kept raw; callers normalize it through the subscription gate.
type SubscriptionStatus struct {
	Status                string     `json:"status"`
	TrialEndDate          *Timestamp `json:"trial_end_date"`
	SubscriptionStartDate *Timestamp `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *Timestamp `json:"subscription_end_date,omitempty"`
	CurrentPeriodEnd      *Timestamp `json:"current_period_end,omitempty"`
	PlanAmount            int64      `json:"plan_amount,omitempty"`
	PlanInterval          string     `json:"plan_interval,omitempty"`
	CancelAtPeriodEnd     bool       `json:"cancel_at_period_end,omitempty"`
	CanGenerateContent    bool       `json:"can_generate_content"`
}

// Plan is one pricing option.
type Plan struct {
	Name         string   `json:"name"`
	Price        int64    `json:"price"`
	PriceDisplay string   `json:"price_display"`
	Interval     string   `json:"interval"`
	Savings      string   `json:"savings,omitempty"`
	Features     []string `json:"features"`
}

// PlanType maps the billing interval to the checkout plan type.
func (p Plan) PlanType() string {
	switch strings.ToLower(strings.TrimSpace(p.Interval)) {
	case "year", "annual", "yearly":
		return PlanAnnual
	default:
		return PlanMonthly
	}
}

// TrialOffer describes the free trial.
type TrialOffer struct {
	Duration    int    `json:"duration"`
	Description string `json:"description"`
}

// Pricing lists the purchasable plans.
type Pricing struct {
	Plans []Plan     `json:"plans"`
	Trial TrialOffer `json:"trial"`
}

// Plan finds the plan for a checkout plan type.
func (p Pricing) Plan(planType string) (Plan, bool) {
	for _, plan := range p.Plans {
		if plan.PlanType() == planType {
			return plan, true
		}
	}
	return Plan{}, false
}

// CheckoutSession is returned when checkout starts.
type CheckoutSession struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// PortalSession is returned when the billing portal opens.
type PortalSession struct {
	PortalURL string `json:"portal_url"`
}

// SubscriptionChange is returned by cancel and reactivate.
type SubscriptionChange struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Agent is the signed-in user.
type Agent struct {
	ID                 int64      `json:"id"`
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	SubscriptionStatus string     `json:"subscription_status"`
	TrialEndDate       *Timestamp `json:"trial_end_date"`
	InsuranceTypes     []string   `json:"insurance_types"`
	DefaultTone        string     `json:"default_tone"`
	CreatedAt          *Timestamp `json:"created_at,omitempty"`
}

// DisplayName prefers the first name and falls back to the email.
func (a Agent) DisplayName() string {
	if name := strings.TrimSpace(a.FirstName); name != "" {
		return name
	}
	return a.Email
}

// Session is the login / me payload.
type Session struct {
	Agent              Agent `json:"agent"`
	TrialDaysRemaining int   `json:"trial_days_remaining"`
	SubscriptionActive bool  `json:"subscription_active"`
}

// Status projects the agent fields into a subscription snapshot.
func (s Session) Status() SubscriptionStatus {
	return SubscriptionStatus{
		Status:             s.Agent.SubscriptionStatus,
		TrialEndDate:       s.Agent.TrialEndDate,
		CanGenerateContent: s.SubscriptionActive,
	}
}

// FormatCents renders an amount in cents as dollars.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
