// Package subscription mirrors the server's subscription state for display.
// Nothing here enforces access; the API rejects gated calls on its own and
// the derived view only decides what the screens offer.
package subscription

import (
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/insurecontent/internal/content"
)

// NearExpiryDays is the trial length at or below which the badge turns
// destructive.
const NearExpiryDays = 3

// Variant is the badge style.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantSuccess     Variant = "success"
	VariantDestructive Variant = "destructive"
)

// Badge is the status pill shown in the header.
type Badge struct {
	Variant Variant
	Label   string
}

// Normalize maps a raw status onto the three known states. Anything else,
// "cancelled" included, is treated as expired.
func Normalize(raw string) content.SubscriptionState {
	switch content.SubscriptionState(strings.ToLower(strings.TrimSpace(raw))) {
	case content.StateTrial:
		return content.StateTrial
	case content.StateActive:
		return content.StateActive
	default:
		return content.StateExpired
	}
}

// TrialDaysRemaining counts whole days from now until trialEnd, never
// negative. A missing end date counts as zero.
func TrialDaysRemaining(trialEnd *content.Timestamp, now time.Time) int {
	if trialEnd == nil || trialEnd.IsZero() {
		return 0
	}
	remaining := trialEnd.Time.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / (24 * time.Hour))
}

// BadgeFor renders the badge for a state and trial length.
func BadgeFor(state content.SubscriptionState, trialDays int) Badge {
	switch state {
	case content.StateTrial:
		variant := VariantDefault
		if trialDays <= NearExpiryDays {
			variant = VariantDestructive
		}
		unit := "days"
		if trialDays == 1 {
			unit = "day"
		}
		return Badge{Variant: variant, Label: fmt.Sprintf("Trial - %d %s left", trialDays, unit)}
	case content.StateActive:
		return Badge{Variant: VariantSuccess, Label: "Active"}
	default:
		return Badge{Variant: VariantDestructive, Label: "Expired"}
	}
}

// View is everything the screens derive from one status snapshot.
type View struct {
	State              content.SubscriptionState
	TrialDaysRemaining int
	Badge              Badge
	// CanRequestGeneration only decides whether generate actions are
	// offered. The server still has the final say.
	CanRequestGeneration bool
	PlanLabel            string
	RenewalLabel         string
	CancelAtPeriodEnd    bool
}

// Derive builds the view for status as of now.
func Derive(status content.SubscriptionStatus, now time.Time) View {
	state := Normalize(status.Status)
	days := 0
	if state == content.StateTrial {
		days = TrialDaysRemaining(status.TrialEndDate, now)
	}
	v := View{
		State:                state,
		TrialDaysRemaining:   days,
		Badge:                BadgeFor(state, days),
		CanRequestGeneration: state != content.StateExpired,
		CancelAtPeriodEnd:    status.CancelAtPeriodEnd,
	}
	if status.PlanAmount > 0 {
		v.PlanLabel = content.FormatCents(status.PlanAmount)
		if interval := strings.TrimSpace(status.PlanInterval); interval != "" {
			v.PlanLabel += "/" + interval
		}
	}
	if status.CurrentPeriodEnd != nil && !status.CurrentPeriodEnd.IsZero() {
		verb := "Renews"
		if status.CancelAtPeriodEnd {
			verb = "Ends"
		}
		v.RenewalLabel = fmt.Sprintf("%s %s", verb, content.DateOf(status.CurrentPeriodEnd.Time).Long())
	}
	return v
}
