package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/insurecontent/internal/apiclient"
	"github.com/kingrea/insurecontent/internal/catalog"
	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/generation"
	"github.com/kingrea/insurecontent/internal/logbook"
	"github.com/kingrea/insurecontent/internal/sandbox"
	"github.com/kingrea/insurecontent/internal/schedule"
	"github.com/kingrea/insurecontent/internal/subscription"
	"github.com/kingrea/insurecontent/internal/wizard"
)

var testNow = time.Date(2024, time.June, 5, 9, 0, 0, 0, time.UTC)

func TestLoginOpensDashboard(t *testing.T) {
	app, _ := newTestApp(t)
	app = login(t, app, sandbox.DefaultAccount.Password)

	if app.state != stateDashboard {
		t.Fatalf("expected dashboard after login, got state %d", app.state)
	}
	if app.session == nil || app.session.Agent.Email != sandbox.DefaultAccount.Email {
		t.Fatalf("expected session for %s, got %+v", sandbox.DefaultAccount.Email, app.session)
	}
	if got := app.subView.Badge.Label; got != "Trial - 7 days left" {
		t.Fatalf("unexpected badge %q", got)
	}
	item, ok := app.menu.Items()[0].(menuItem)
	if !ok || item.action != actionNewSchedule {
		t.Fatalf("expected create action first, got %+v", app.menu.Items()[0])
	}
	if !app.services.Catalog.Loaded() {
		t.Fatalf("expected catalog to load after login")
	}
	view := app.View()
	for _, want := range []string{"Trial - 7 days left", "LOG · activity.log", "Signed in as"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q", want)
		}
	}
}

func TestInvalidLoginShowsServerMessage(t *testing.T) {
	app, _ := newTestApp(t)
	app = login(t, app, "wrong-password")
	if app.state != stateLogin {
		t.Fatalf("expected to stay on login, got state %d", app.state)
	}
	if app.errMsg != "Invalid email or password" {
		t.Fatalf("unexpected error %q", app.errMsg)
	}
	if app.loggingIn || app.busy != "" {
		t.Fatalf("login should not be pending after a failure")
	}
}

func TestLoginValidatesLocally(t *testing.T) {
	app, _ := newTestApp(t)
	app.emailInput.SetValue("not-an-email")
	app.passwordInput.SetValue("pw")
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("invalid credentials must not start a request")
	}
	app = model.(*App)
	if app.errMsg != "Enter a valid email address" {
		t.Fatalf("unexpected error %q", app.errMsg)
	}
}

func TestWizardGeneratesSchedule(t *testing.T) {
	app, srv := newTestApp(t)
	app = login(t, app, sandbox.DefaultAccount.Password)

	app = press(t, app, "n")
	if app.state != stateWizard || app.wiz.Step() != wizard.StepTypes {
		t.Fatalf("expected wizard on first step, got state %d step %d", app.state, app.wiz.Step())
	}
	app = press(t, app, " ", "enter", " ", "]", "enter")
	if app.wiz.Step() != wizard.StepReview {
		t.Fatalf("expected review step, got %d (err %q)", app.wiz.Step(), app.errMsg)
	}
	if got := app.wiz.Draft().WeekStart; !got.Equal(content.NewDate(2024, time.June, 10)) {
		t.Fatalf("expected next week, got %s", got)
	}

	app = press(t, app, "enter")
	if app.state != stateSchedule {
		t.Fatalf("expected schedule screen after generating, got state %d (err %q)", app.state, app.errMsg)
	}
	sched, ok := app.services.Schedules.Current()
	if !ok || len(sched.Posts) != 7 {
		t.Fatalf("expected seven posts, got %+v", sched)
	}
	if sched.WeekStartDate.String() != "2024-06-10" {
		t.Fatalf("unexpected week %s", sched.WeekStartDate)
	}
	if calls := srv.Calls("generate-schedule"); calls != 1 {
		t.Fatalf("expected one generate call, got %d", calls)
	}
	if app.busy != "" {
		t.Fatalf("spinner should stop after generation")
	}
}

func TestWizardGuardsEmptySelection(t *testing.T) {
	app, _ := newTestApp(t)
	app = login(t, app, sandbox.DefaultAccount.Password)
	app = press(t, app, "n", "enter")
	if app.wiz.Step() != wizard.StepTypes {
		t.Fatalf("expected to stay on first step")
	}
	if app.errMsg != "Select at least one insurance type" {
		t.Fatalf("unexpected error %q", app.errMsg)
	}
	if view := app.renderWizard(80); strings.Contains(view, "enter next") {
		t.Fatalf("enter should not be offered before a type is selected:\n%s", view)
	}
	app = press(t, app, " ")
	if view := app.renderWizard(80); !strings.Contains(view, "enter next") {
		t.Fatalf("enter should be offered once a type is selected:\n%s", view)
	}
	app = press(t, app, " ")
	app = press(t, app, "esc")
	if app.state != stateDashboard {
		t.Fatalf("esc on first step should return to dashboard")
	}
}

func TestGenerationFailureKeepsDraft(t *testing.T) {
	app, srv := newTestApp(t)
	app = login(t, app, sandbox.DefaultAccount.Password)
	srv.FailNextGeneration("Model overloaded")

	app = press(t, app, "n", " ", "enter", " ", "enter", "enter")
	if app.state != stateWizard || app.wiz.Step() != wizard.StepReview {
		t.Fatalf("expected to stay on review after failure, got state %d", app.state)
	}
	if app.errMsg != "Model overloaded" {
		t.Fatalf("unexpected error %q", app.errMsg)
	}
	if len(app.wiz.Draft().InsuranceTypes) != 1 {
		t.Fatalf("draft should survive the failure")
	}

	app = press(t, app, "enter")
	if app.state != stateSchedule {
		t.Fatalf("retry should succeed, got state %d (err %q)", app.state, app.errMsg)
	}
	if calls := srv.Calls("generate-schedule"); calls != 2 {
		t.Fatalf("expected two generate calls, got %d", calls)
	}
}

func TestScheduleImagesAndDelete(t *testing.T) {
	app, srv := newTestApp(t)
	seeded := srv.Seed(content.GenerationRequest{
		InsuranceTypes: []string{"annuities", "final_expense"},
		Tone:           "friendly",
		WeekStartDate:  content.NewDate(2024, time.June, 3),
	})
	app = login(t, app, sandbox.DefaultAccount.Password)
	if app.overview.Current == nil || app.overview.Current.ID != seeded.ID {
		t.Fatalf("expected current week on the dashboard")
	}
	app.menu.Select(1)
	app = press(t, app, "enter")
	if app.state != stateSchedule {
		t.Fatalf("expected schedule screen, got state %d (err %q)", app.state, app.errMsg)
	}

	app = press(t, app, "g")
	first := app.services.Schedules.SortedPosts()[0]
	if !first.HasImage() {
		t.Fatalf("expected first post to have an image (err %q)", app.errMsg)
	}
	if len(app.pendingImages) != 0 {
		t.Fatalf("pending image flag should clear")
	}

	app = press(t, app, "a")
	sched, _ := app.services.Schedules.Current()
	if sched.ImageCount() != 7 {
		t.Fatalf("expected every post to have an image, got %d (err %q)", sched.ImageCount(), app.errMsg)
	}
	if app.batchPending {
		t.Fatalf("batch flag should clear")
	}

	app = press(t, app, "x")
	if app.confirm == nil {
		t.Fatalf("delete should ask for confirmation")
	}
	app = press(t, app, "y")
	if app.state != stateDashboard {
		t.Fatalf("expected dashboard after delete, got state %d (err %q)", app.state, app.errMsg)
	}
	if _, ok := srv.Schedule(seeded.ID); ok {
		t.Fatalf("schedule should be gone from the server")
	}
	if app.overview.Current != nil {
		t.Fatalf("dashboard should no longer show the deleted week")
	}
}

func TestDeclinedDeleteKeepsSchedule(t *testing.T) {
	app, srv := newTestApp(t)
	seeded := srv.Seed(content.GenerationRequest{
		InsuranceTypes: []string{"annuities"},
		Tone:           "direct",
		WeekStartDate:  content.NewDate(2024, time.June, 3),
	})
	app = login(t, app, sandbox.DefaultAccount.Password)
	app.menu.Select(1)
	app = press(t, app, "enter", "x", "n")
	if app.state != stateSchedule || app.confirm != nil {
		t.Fatalf("declining should stay on the schedule")
	}
	if _, ok := srv.Schedule(seeded.ID); !ok {
		t.Fatalf("schedule should still exist")
	}
	if calls := srv.Calls("delete-schedule"); calls != 0 {
		t.Fatalf("expected no delete calls, got %d", calls)
	}
}

func TestExpiredSessionReturnsToLogin(t *testing.T) {
	app, srv := newTestApp(t)
	app = login(t, app, sandbox.DefaultAccount.Password)
	srv.ExpireSessions()

	app = press(t, app, "r")
	if app.state != stateLogin {
		t.Fatalf("expected login screen, got state %d", app.state)
	}
	if app.session != nil {
		t.Fatalf("session should be cleared")
	}
	if _, ok := app.services.Schedules.Current(); ok {
		t.Fatalf("open schedule should be cleared")
	}
	if !strings.Contains(app.errMsg, "expired") {
		t.Fatalf("unexpected error %q", app.errMsg)
	}
}

func TestSessionExpiredMsgFromClientHook(t *testing.T) {
	app, _ := newTestApp(t)
	app = login(t, app, sandbox.DefaultAccount.Password)
	model, cmd := app.Update(SessionExpiredMsg{})
	app = runCommands(t, model, cmd)
	if app.state != stateLogin || app.session != nil {
		t.Fatalf("expected login screen after hook message")
	}
}

func TestExpiredSubscriptionOffersCheckout(t *testing.T) {
	app, srv := newTestApp(t)
	srv.SetSubscription("expired", time.Time{})
	app = login(t, app, sandbox.DefaultAccount.Password)

	if app.subView.CanRequestGeneration {
		t.Fatalf("expired subscription must not offer generation")
	}
	item := app.menu.Items()[0].(menuItem)
	if item.action != actionSubscription {
		t.Fatalf("expected upgrade entry first, got %q", item.title)
	}
	app = press(t, app, "n")
	if app.state != stateDashboard {
		t.Fatalf("wizard must stay closed while expired")
	}

	app = press(t, app, "s")
	if app.state != stateSubscription || app.snapshot == nil {
		t.Fatalf("expected subscription screen with pricing")
	}
	app = press(t, app, "m")
	if app.subView.State != content.StateActive || !app.subView.CanRequestGeneration {
		t.Fatalf("expected active subscription after checkout, got %+v", app.subView)
	}
	if !strings.Contains(app.statusMsg, "Checkout link copied") {
		t.Fatalf("unexpected status %q", app.statusMsg)
	}
}

func TestLogoutClearsState(t *testing.T) {
	app, _ := newTestApp(t)
	app = login(t, app, sandbox.DefaultAccount.Password)
	app.menu.Select(len(app.menu.Items()) - 2)
	app = press(t, app, "enter")
	if app.state != stateLogin || app.session != nil {
		t.Fatalf("expected signed out state")
	}
	if app.statusMsg != "Signed out" {
		t.Fatalf("unexpected status %q", app.statusMsg)
	}
}

func newTestApp(t *testing.T) (*App, *sandbox.Server) {
	t.Helper()
	clock := func() time.Time { return testNow }
	srv := sandbox.NewServer(sandbox.DefaultSettings(), sandbox.WithClock(clock))
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start sandbox: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})

	client, err := apiclient.New(srv.APIURL(), apiclient.WithClock(clock))
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	book, err := logbook.New(filepath.Join(t.TempDir(), logbook.FileName), logbook.WithClock(clock))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	cb := &recordingClipboard{}
	mgr := schedule.NewManager(client,
		schedule.WithClipboard(cb),
		schedule.WithLogbook(book),
		schedule.WithDownloadDir(t.TempDir()),
	)
	services := Services{
		Auth:         client,
		Catalog:      catalog.New(client, book),
		Generator:    generation.New(client, mgr, generation.WithLogbook(book)),
		Schedules:    mgr,
		Dashboard:    schedule.NewDashboard(client, apiclient.IsNotFound, schedule.DefaultRecentLimit, book, nil),
		Subscription: subscription.NewService(client, subscription.WithClock(clock), subscription.WithClipboard(cb), subscription.WithLogbook(book)),
		Logbook:      book,
	}
	return NewApp(services, WithClock(clock)), srv
}

type recordingClipboard struct {
	texts []string
}

func (c *recordingClipboard) WriteAll(text string) error {
	c.texts = append(c.texts, text)
	return nil
}

func login(t *testing.T, app *App, password string) *App {
	t.Helper()
	app.emailInput.SetValue(sandbox.DefaultAccount.Email)
	app.passwordInput.SetValue(password)
	app.emailInput.Focus()
	return press(t, app, "enter")
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func press(t *testing.T, app *App, keys ...string) *App {
	t.Helper()
	for _, key := range keys {
		model, cmd := app.Update(keyMsg(key))
		app = runCommands(t, model, cmd)
	}
	return app
}

// runCommands drains cmd and everything it produces. Spinner ticks are
// dropped so a busy screen does not loop forever.
func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatalf("command loop did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil, spinner.TickMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			nextModel, nextCmd := app.Update(msg)
			app, ok = nextModel.(*App)
			if !ok {
				t.Fatalf("unexpected model type: %T", nextModel)
			}
			queue = append(queue, nextCmd)
		}
	}
	return app
}
