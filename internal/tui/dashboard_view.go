package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/subscription"
)

type menuAction int

const (
	actionNewSchedule menuAction = iota
	actionOpenSchedule
	actionSubscription
	actionRefresh
	actionSignOut
	actionExit
)

func (a *App) showDashboard() {
	a.state = stateDashboard
	a.confirm = nil
	a.rebuildMenu()
}

func (a *App) rebuildMenu() {
	var items []list.Item
	if a.subView.CanRequestGeneration {
		items = append(items, menuItem{
			title:  "Create Weekly Content",
			desc:   "Generate seven posts for a week",
			action: actionNewSchedule,
		})
	} else {
		items = append(items, menuItem{
			title:  "Upgrade to Generate",
			desc:   "Choose a plan to keep creating content",
			action: actionSubscription,
		})
	}
	if cur := a.overview.Current; cur != nil {
		items = append(items, menuItem{
			title:      "Open This Week",
			desc:       scheduleSummary(*cur, a.toneLabel(cur.Tone)),
			action:     actionOpenSchedule,
			scheduleID: cur.ID,
		})
	}
	for _, s := range a.overview.Recent {
		if a.overview.Current != nil && s.ID == a.overview.Current.ID {
			continue
		}
		items = append(items, menuItem{
			title:      "Week of " + s.WeekLabel(),
			desc:       fmt.Sprintf("%s · %d/%d images", a.toneLabel(s.Tone), s.ImageCount(), len(s.Posts)),
			action:     actionOpenSchedule,
			scheduleID: s.ID,
		})
	}
	items = append(items,
		menuItem{title: "Subscription & Billing", desc: a.subView.Badge.Label, action: actionSubscription},
		menuItem{title: "Refresh", desc: "Reload schedules and subscription", action: actionRefresh},
		menuItem{title: "Sign Out", desc: "End this session", action: actionSignOut},
		menuItem{title: "Exit", desc: "Quit", action: actionExit},
	)
	a.menu.SetItems(items)
	if idx := a.menu.Index(); idx >= len(items) {
		a.menu.Select(0)
	}
}

func scheduleSummary(s content.Schedule, tone string) string {
	return fmt.Sprintf("%s · %s · %d/%d images", s.WeekLabel(), tone, s.ImageCount(), len(s.Posts))
}

func (a *App) toneLabel(value string) string {
	if a.services.Catalog == nil {
		return content.Humanize(value)
	}
	return a.services.Catalog.ToneLabel(value)
}

func (a *App) insuranceTypeLabel(value string) string {
	if a.services.Catalog == nil {
		return content.Humanize(value)
	}
	return a.services.Catalog.InsuranceTypeLabel(value)
}

func (a *App) refreshDashboard() tea.Cmd {
	a.errMsg = ""
	a.statusMsg = "Refreshing..."
	return tea.Batch(a.loadOverview(), a.loadSubscription())
}

func (a *App) handleDashboardKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "r":
		return a.refreshDashboard()
	case "s":
		return a.showSubscription()
	case "n":
		if a.subView.CanRequestGeneration {
			return a.startWizard()
		}
	case "enter":
		return a.handleMenuSelection()
	}
	var cmd tea.Cmd
	a.menu, cmd = a.menu.Update(msg)
	return cmd
}

func (a *App) handleMenuSelection() tea.Cmd {
	item, ok := a.menu.SelectedItem().(menuItem)
	if !ok {
		return nil
	}
	switch item.action {
	case actionNewSchedule:
		a.logInfo("Menu · Create Weekly Content")
		return a.startWizard()
	case actionOpenSchedule:
		a.errMsg = ""
		return tea.Batch(a.startBusy(busyLoadingSchedule), a.openSchedule(item.scheduleID))
	case actionSubscription:
		return a.showSubscription()
	case actionRefresh:
		return a.refreshDashboard()
	case actionSignOut:
		return a.logout()
	case actionExit:
		return tea.Quit
	}
	return nil
}

func (a *App) handleOverviewLoaded(msg overviewLoadedMsg) tea.Cmd {
	if a.session == nil {
		return nil
	}
	a.overview = msg.overview
	if a.statusMsg == "Refreshing..." {
		a.statusMsg = ""
	}
	if a.state == stateDashboard {
		a.rebuildMenu()
	}
	return a.fail(msg.err)
}

func (a *App) handleSubscriptionLoaded(msg subscriptionLoadedMsg) tea.Cmd {
	if a.session == nil {
		return nil
	}
	if a.busy == busyLoadingSubscription {
		a.stopBusy()
	}
	if msg.err != nil {
		return a.fail(msg.err)
	}
	snap := msg.snapshot
	a.snapshot = &snap
	a.subView = snap.View
	if a.state == stateDashboard {
		a.rebuildMenu()
	}
	return nil
}

func (a *App) renderDashboard() string {
	var lines []string
	if a.session != nil {
		lines = append(lines, titleStyle.Render("Hi, "+a.session.Agent.DisplayName()))
	}
	lines = append(lines, labelStyle.Render(fmt.Sprintf("Trial days left: %s · Recent schedules: %d", trialDaysStat(a.subView), len(a.overview.Recent))))
	if cur := a.overview.Current; cur != nil {
		lines = append(lines, bodyStyle.Render(fmt.Sprintf("This week: %d posts, %d with images", len(cur.Posts), cur.ImageCount())))
	} else {
		lines = append(lines, mutedStyle.Render("No schedule for this week yet"))
	}
	if note := trialNotice(a.subView); note != "" {
		lines = append(lines, note)
	}
	lines = append(lines, "", a.menu.View(), hintStyle.Render("enter select · n new · s subscription · r refresh · q quit"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// trialDaysStat is unbounded once a plan is active.
func trialDaysStat(v subscription.View) string {
	if v.State == content.StateActive {
		return "∞"
	}
	return fmt.Sprint(v.TrialDaysRemaining)
}

func trialNotice(v subscription.View) string {
	switch v.State {
	case content.StateTrial:
		if v.TrialDaysRemaining <= subscription.NearExpiryDays {
			return warnStyle.Render(fmt.Sprintf("Your free trial ends soon (%s). Choose a plan to keep generating.", v.Badge.Label))
		}
	case content.StateExpired:
		if v.Badge.Label != "" {
			return errorStyle.Render("Your subscription has expired. Existing schedules stay readable.")
		}
	}
	return ""
}
