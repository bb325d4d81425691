package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/schedule"
	"github.com/kingrea/insurecontent/internal/subscription"
)

// Results of the API calls started from Update.
type (
	sessionCheckedMsg struct {
		session content.Session
		err     error
	}
	loginFinishedMsg struct {
		session content.Session
		err     error
	}
	logoutFinishedMsg struct{ err error }
	catalogLoadedMsg  struct{ err error }
	overviewLoadedMsg struct {
		overview schedule.Overview
		err      error
	}
	subscriptionLoadedMsg struct {
		snapshot subscription.Snapshot
		err      error
	}
	generationFinishedMsg struct {
		schedule content.Schedule
		err      error
	}
	scheduleOpenedMsg struct {
		schedule content.Schedule
		err      error
	}
	imageFinishedMsg struct {
		postID int64
		err    error
	}
	batchFinishedMsg struct {
		result content.BatchImageResult
		err    error
	}
	deleteFinishedMsg struct {
		deleted bool
		err     error
	}
	downloadFinishedMsg struct {
		path string
		err  error
	}
	checkoutFinishedMsg struct {
		session content.CheckoutSession
		err     error
	}
	portalFinishedMsg struct {
		session content.PortalSession
		err     error
	}
	subscriptionChangedMsg struct {
		change content.SubscriptionChange
		err    error
	}
)

func (a *App) callContext() context.Context {
	return a.ctx
}

func (a *App) checkSession() tea.Cmd {
	auth := a.services.Auth
	ctx := a.callContext()
	return func() tea.Msg {
		session, err := auth.Me(ctx)
		return sessionCheckedMsg{session: session, err: err}
	}
}

func (a *App) login(creds content.Credentials) tea.Cmd {
	auth := a.services.Auth
	ctx := a.callContext()
	return func() tea.Msg {
		session, err := auth.Login(ctx, creds)
		return loginFinishedMsg{session: session, err: err}
	}
}

func (a *App) logout() tea.Cmd {
	auth := a.services.Auth
	ctx := a.callContext()
	return func() tea.Msg {
		return logoutFinishedMsg{err: auth.Logout(ctx)}
	}
}

func (a *App) loadCatalog() tea.Cmd {
	provider := a.services.Catalog
	if provider == nil || provider.Loaded() {
		return nil
	}
	ctx := a.callContext()
	return func() tea.Msg {
		return catalogLoadedMsg{err: provider.Load(ctx)}
	}
}

func (a *App) loadOverview() tea.Cmd {
	dash := a.services.Dashboard
	ctx := a.callContext()
	return func() tea.Msg {
		overview, err := dash.Load(ctx)
		return overviewLoadedMsg{overview: overview, err: err}
	}
}

func (a *App) loadSubscription() tea.Cmd {
	svc := a.services.Subscription
	if svc == nil {
		return nil
	}
	ctx := a.callContext()
	return func() tea.Msg {
		snap, err := svc.Load(ctx)
		return subscriptionLoadedMsg{snapshot: snap, err: err}
	}
}

func (a *App) submitGeneration(req content.GenerationRequest) tea.Cmd {
	gen := a.services.Generator
	ctx := a.callContext()
	return func() tea.Msg {
		sched, err := gen.Submit(ctx, req)
		return generationFinishedMsg{schedule: sched, err: err}
	}
}

func (a *App) openSchedule(id int64) tea.Cmd {
	mgr := a.services.Schedules
	ctx := a.callContext()
	return func() tea.Msg {
		sched, err := mgr.Open(ctx, id)
		return scheduleOpenedMsg{schedule: sched, err: err}
	}
}

func (a *App) reloadSchedule() tea.Cmd {
	mgr := a.services.Schedules
	ctx := a.callContext()
	return func() tea.Msg {
		sched, err := mgr.Reload(ctx)
		return scheduleOpenedMsg{schedule: sched, err: err}
	}
}

func (a *App) generateImage(postID int64) tea.Cmd {
	mgr := a.services.Schedules
	ctx := a.callContext()
	return func() tea.Msg {
		_, err := mgr.GenerateImage(ctx, postID)
		return imageFinishedMsg{postID: postID, err: err}
	}
}

func (a *App) regenerateImage(postID int64, description string) tea.Cmd {
	mgr := a.services.Schedules
	ctx := a.callContext()
	return func() tea.Msg {
		_, err := mgr.RegenerateImage(ctx, postID, description)
		return imageFinishedMsg{postID: postID, err: err}
	}
}

func (a *App) generateAllImages() tea.Cmd {
	mgr := a.services.Schedules
	ctx := a.callContext()
	return func() tea.Msg {
		result, err := mgr.GenerateAllImages(ctx)
		return batchFinishedMsg{result: result, err: err}
	}
}

// deleteSchedule runs after the confirm dialog accepted, so the manager's
// own prompt is answered yes.
func (a *App) deleteSchedule() tea.Cmd {
	mgr := a.services.Schedules
	ctx := a.callContext()
	return func() tea.Msg {
		deleted, err := mgr.Delete(ctx, content.Confirmed(true))
		return deleteFinishedMsg{deleted: deleted, err: err}
	}
}

func (a *App) downloadImage(postID int64) tea.Cmd {
	mgr := a.services.Schedules
	ctx := a.callContext()
	return func() tea.Msg {
		path, err := mgr.DownloadImage(ctx, postID)
		return downloadFinishedMsg{path: path, err: err}
	}
}

func (a *App) checkout(planType string) tea.Cmd {
	svc := a.services.Subscription
	ctx := a.callContext()
	return func() tea.Msg {
		session, err := svc.Checkout(ctx, planType)
		return checkoutFinishedMsg{session: session, err: err}
	}
}

func (a *App) openPortal() tea.Cmd {
	svc := a.services.Subscription
	ctx := a.callContext()
	return func() tea.Msg {
		session, err := svc.Portal(ctx)
		return portalFinishedMsg{session: session, err: err}
	}
}

func (a *App) cancelSubscription() tea.Cmd {
	svc := a.services.Subscription
	ctx := a.callContext()
	return func() tea.Msg {
		change, err := svc.Cancel(ctx, content.Confirmed(true))
		return subscriptionChangedMsg{change: change, err: err}
	}
}

func (a *App) reactivateSubscription() tea.Cmd {
	svc := a.services.Subscription
	ctx := a.callContext()
	return func() tea.Msg {
		change, err := svc.Reactivate(ctx)
		return subscriptionChangedMsg{change: change, err: err}
	}
}

// handleResult routes finished calls to their screens.
func (a *App) handleResult(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case sessionCheckedMsg:
		return a.handleSessionChecked(msg), true
	case loginFinishedMsg:
		return a.handleLoginFinished(msg), true
	case logoutFinishedMsg:
		return a.handleLogoutFinished(msg), true
	case catalogLoadedMsg:
		// failures are already in the log; the wizard retries on open
		return nil, true
	case overviewLoadedMsg:
		return a.handleOverviewLoaded(msg), true
	case subscriptionLoadedMsg:
		return a.handleSubscriptionLoaded(msg), true
	case generationFinishedMsg:
		return a.handleGenerationFinished(msg), true
	case scheduleOpenedMsg:
		return a.handleScheduleOpened(msg), true
	case imageFinishedMsg:
		return a.handleImageFinished(msg), true
	case batchFinishedMsg:
		return a.handleBatchFinished(msg), true
	case deleteFinishedMsg:
		return a.handleDeleteFinished(msg), true
	case downloadFinishedMsg:
		return a.handleDownloadFinished(msg), true
	case checkoutFinishedMsg:
		return a.handleCheckoutFinished(msg), true
	case portalFinishedMsg:
		return a.handlePortalFinished(msg), true
	case subscriptionChangedMsg:
		return a.handleSubscriptionChanged(msg), true
	}
	return nil, false
}
