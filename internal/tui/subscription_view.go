package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/subscription"
)

const (
	busyLoadingSubscription = "Loading subscription..."
	busyBilling             = "Contacting billing..."
)

func (a *App) showSubscription() tea.Cmd {
	a.state = stateSubscription
	a.confirm = nil
	load := a.loadSubscription()
	if load == nil {
		return nil
	}
	return tea.Batch(a.startBusy(busyLoadingSubscription), load)
}

func (a *App) handleSubscriptionKey(msg tea.KeyMsg) tea.Cmd {
	if a.busy == busyBilling {
		return nil
	}
	switch msg.String() {
	case "esc", "q":
		a.showDashboard()
		return nil
	case "m":
		return a.startCheckout(content.PlanMonthly)
	case "y":
		return a.startCheckout(content.PlanAnnual)
	case "p":
		a.errMsg = ""
		return tea.Batch(a.startBusy(busyBilling), a.openPortal())
	case "c":
		if a.subView.State != content.StateActive || a.subView.CancelAtPeriodEnd {
			return nil
		}
		a.ask("Cancel your subscription at the end of the current period?", func() tea.Cmd {
			a.errMsg = ""
			return tea.Batch(a.startBusy(busyBilling), a.cancelSubscription())
		})
	case "r":
		if !a.subView.CancelAtPeriodEnd {
			return nil
		}
		a.errMsg = ""
		return tea.Batch(a.startBusy(busyBilling), a.reactivateSubscription())
	}
	return nil
}

func (a *App) startCheckout(planType string) tea.Cmd {
	if a.subView.State == content.StateActive && !a.subView.CancelAtPeriodEnd {
		a.statusMsg = "Your subscription is already active"
		return nil
	}
	a.errMsg = ""
	return tea.Batch(a.startBusy(busyBilling), a.checkout(planType))
}

func (a *App) handleCheckoutFinished(msg checkoutFinishedMsg) tea.Cmd {
	a.stopBusy()
	if msg.err != nil {
		return a.fail(msg.err)
	}
	a.statusMsg = "Checkout link copied to clipboard: " + msg.session.CheckoutURL
	return a.loadSubscription()
}

func (a *App) handlePortalFinished(msg portalFinishedMsg) tea.Cmd {
	a.stopBusy()
	if msg.err != nil {
		return a.fail(msg.err)
	}
	a.statusMsg = "Billing portal link copied to clipboard: " + msg.session.PortalURL
	return nil
}

func (a *App) handleSubscriptionChanged(msg subscriptionChangedMsg) tea.Cmd {
	a.stopBusy()
	if msg.err != nil {
		if errors.Is(msg.err, subscription.ErrNotCancelled) {
			return nil
		}
		return a.fail(msg.err)
	}
	a.statusMsg = msg.change.Message
	return a.loadSubscription()
}

func (a *App) renderSubscription(width int) string {
	v := a.subView
	lines := []string{
		titleStyle.Render("Subscription"),
		lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("Status  "), renderBadge(v.Badge)),
	}
	if v.PlanLabel != "" {
		lines = append(lines, labelStyle.Render("Plan    ")+bodyStyle.Render(v.PlanLabel))
	}
	if v.RenewalLabel != "" {
		lines = append(lines, labelStyle.Render("Billing ")+bodyStyle.Render(v.RenewalLabel))
	}
	if note := trialNotice(v); note != "" {
		lines = append(lines, note)
	}
	if a.snapshot != nil {
		lines = append(lines, "", a.renderPlans(a.snapshot.Pricing, width))
	}

	var keys []string
	switch {
	case v.State == content.StateActive && v.CancelAtPeriodEnd:
		keys = append(keys, "r reactivate", "p billing portal")
	case v.State == content.StateActive:
		keys = append(keys, "p billing portal", "c cancel")
	default:
		keys = append(keys, "m monthly checkout", "y annual checkout", "p billing portal")
	}
	keys = append(keys, "esc back")
	lines = append(lines, "", hintStyle.Render(strings.Join(keys, " · ")))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (a *App) renderPlans(pricing content.Pricing, width int) string {
	if len(pricing.Plans) == 0 {
		return ""
	}
	cardWidth := max(24, (width-4)/max(1, len(pricing.Plans))-2)
	cards := make([]string, 0, len(pricing.Plans))
	for _, plan := range pricing.Plans {
		price := plan.PriceDisplay
		if price == "" {
			price = content.FormatCents(plan.Price)
		}
		body := []string{
			titleStyle.Render(plan.Name),
			bodyStyle.Render(fmt.Sprintf("%s / %s", price, plan.Interval)),
		}
		if plan.Savings != "" {
			body = append(body, successStyle.Render("Save "+plan.Savings))
		}
		for _, feature := range plan.Features {
			body = append(body, mutedStyle.Render("• "+feature))
		}
		cards = append(cards, lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1).
			Width(cardWidth).
			Render(strings.Join(body, "\n")))
	}
	out := lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	if pricing.Trial.Description != "" {
		out = lipgloss.JoinVertical(lipgloss.Left, out, mutedStyle.Render(pricing.Trial.Description))
	}
	return out
}
