// internal/tui/app.go
//
// The terminal client for the content service. It follows the bubbletea
// loop: key presses and finished API calls arrive as messages, Update
// changes the App, and View renders it. Every API call runs inside a
// tea.Cmd so the screen never blocks on the network.

package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/insurecontent/internal/apiclient"
	"github.com/kingrea/insurecontent/internal/catalog"
	"github.com/kingrea/insurecontent/internal/config"
	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/generation"
	"github.com/kingrea/insurecontent/internal/logbook"
	"github.com/kingrea/insurecontent/internal/logging"
	"github.com/kingrea/insurecontent/internal/schedule"
	"github.com/kingrea/insurecontent/internal/subscription"
	"github.com/kingrea/insurecontent/internal/wizard"
)

// appState represents which screen is showing.
type appState int

const (
	stateLogin        appState = iota // Sign in form
	stateDashboard                    // Current week, recent schedules, menu
	stateWizard                       // Three-step generation wizard
	stateSchedule                     // One week of posts
	stateSubscription                 // Plan, trial and billing actions
)

const logPanelLines = 8

// Authenticator signs the agent in and out.
type Authenticator interface {
	Login(ctx context.Context, creds content.Credentials) (content.Session, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (content.Session, error)
}

// Services are the collaborators the screens call.
type Services struct {
	Auth         Authenticator
	Catalog      *catalog.Provider
	Generator    *generation.Orchestrator
	Schedules    *schedule.Manager
	Dashboard    *schedule.Dashboard
	Subscription *subscription.Service
	Logbook      *logbook.Logbook
	// Config is optional; when set the last login email is remembered.
	Config *config.Config
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithClock overrides "now" for the wizard default week and trial badges.
func WithClock(clock func() time.Time) AppOption {
	return func(a *App) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// WithContext sets the parent context for API calls.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// WithLogger routes diagnostics to logger.
func WithLogger(logger *slog.Logger) AppOption {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// SessionExpiredMsg tells the App the API rejected its session. The API
// client's unauthorized hook sends it from outside the update loop.
type SessionExpiredMsg struct{}

// App is the main application model.
type App struct {
	state    appState
	services Services
	logbook  *logbook.Logbook
	logger   *slog.Logger
	clock    func() time.Time
	ctx      context.Context

	session  *content.Session
	subView  subscription.View
	overview schedule.Overview
	snapshot *subscription.Snapshot

	// login
	emailInput    textinput.Model
	passwordInput textinput.Model
	loggingIn     bool

	// dashboard
	menu list.Model

	// wizard
	wiz         wizard.Wizard
	wizCursor   int
	promptInput textarea.Model
	promptFocus bool

	// schedule
	postCursor    int
	pendingImages map[int64]bool
	batchPending  bool
	deletePending bool
	regenerating  *regenerateForm

	// overlays
	confirm *confirmDialog
	spinner spinner.Model
	busy    string

	statusMsg string
	errMsg    string

	width  int
	height int
}

// menuItem implements list.Item for the dashboard menu.
type menuItem struct {
	title      string
	desc       string
	action     menuAction
	scheduleID int64
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// confirmDialog asks a yes/no question before a destructive action.
type confirmDialog struct {
	prompt string
	onYes  func() tea.Cmd
}

// regenerateForm collects the optional image description.
type regenerateForm struct {
	postID int64
	input  textinput.Model
}

// NewApp creates the App on the login screen.
func NewApp(services Services, opts ...AppOption) *App {
	menu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	menu.Title = "⬡ THIS WEEK"
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent))

	app := &App{
		state:         stateLogin,
		services:      services,
		logbook:       services.Logbook,
		logger:        logging.Discard(),
		clock:         time.Now,
		ctx:           context.Background(),
		menu:          menu,
		spinner:       sp,
		pendingImages: map[int64]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.emailInput, app.passwordInput = newLoginInputs(services.Config)
	app.promptInput = newPromptInput()
	app.wiz = wizard.New(app.clock())
	return app
}

func (a *App) logInfo(format string, args ...any) {
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	a.logbook.Warn(format, args...)
}

// Init restores a saved session when the API still accepts it.
func (a *App) Init() tea.Cmd {
	return a.checkSession()
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.menu.SetSize(max(0, msg.Width-6), max(0, msg.Height-14))
		a.promptInput.SetWidth(max(20, msg.Width-12))
		return a, nil

	case spinner.TickMsg:
		if a.busy == "" {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case SessionExpiredMsg:
		return a, a.expireSession()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.confirm != nil {
			return a, a.handleConfirmKey(msg)
		}
		return a, a.handleKey(msg)
	}

	if cmd, ok := a.handleResult(msg); ok {
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch a.state {
	case stateLogin:
		return a.handleLoginKey(msg)
	case stateDashboard:
		return a.handleDashboardKey(msg)
	case stateWizard:
		return a.handleWizardKey(msg)
	case stateSchedule:
		return a.handleScheduleKey(msg)
	case stateSubscription:
		return a.handleSubscriptionKey(msg)
	}
	return nil
}

func (a *App) handleConfirmKey(msg tea.KeyMsg) tea.Cmd {
	dialog := a.confirm
	switch msg.String() {
	case "y", "Y", "enter":
		a.confirm = nil
		return dialog.onYes()
	case "n", "N", "esc":
		a.confirm = nil
		a.statusMsg = "Cancelled"
	}
	return nil
}

func (a *App) ask(prompt string, onYes func() tea.Cmd) {
	a.confirm = &confirmDialog{prompt: prompt, onYes: onYes}
}

// startBusy shows the spinner with label until stopBusy.
func (a *App) startBusy(label string) tea.Cmd {
	wasIdle := a.busy == ""
	a.busy = label
	if wasIdle {
		return a.spinner.Tick
	}
	return nil
}

func (a *App) stopBusy() {
	a.busy = ""
}

// fail shows err. An unauthorized error ends the session and returns to the
// login screen instead.
func (a *App) fail(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return a.expireSession()
	}
	a.logger.Debug("call failed", slog.Int("screen", int(a.state)), logging.Err(err))
	a.errMsg = content.UserMessage(err)
	if errors.Is(err, apiclient.ErrSubscriptionRequired) {
		a.subView.CanRequestGeneration = false
		return a.loadSubscription()
	}
	return nil
}

// expireSession drops everything tied to the agent and shows the login form.
func (a *App) expireSession() tea.Cmd {
	if a.state == stateLogin && a.session == nil {
		return nil
	}
	a.logWarn("Session expired; sign in again")
	a.resetSession()
	a.errMsg = "Your session has expired. Please sign in again."
	return nil
}

func (a *App) resetSession() {
	a.session = nil
	a.subView = subscription.View{}
	a.snapshot = nil
	a.overview = schedule.Overview{}
	a.confirm = nil
	a.regenerating = nil
	a.busy = ""
	a.pendingImages = map[int64]bool{}
	a.batchPending = false
	a.deletePending = false
	if a.services.Schedules != nil {
		a.services.Schedules.Clear()
	}
	a.resetWizard()
	a.menu.SetItems(nil)
	a.passwordInput.SetValue("")
	a.loggingIn = false
	a.focusLogin()
	a.state = stateLogin
	a.statusMsg = ""
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	var body string
	switch a.state {
	case stateLogin:
		body = a.renderLogin()
	case stateDashboard:
		a.menu.SetSize(max(20, width-8), max(10, a.height-16))
		body = a.renderDashboard()
	case stateWizard:
		body = a.renderWizard(width - 6)
	case stateSchedule:
		body = a.renderSchedule(width - 6)
	case stateSubscription:
		body = a.renderSubscription(width - 6)
	}
	if a.confirm != nil {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", renderConfirm(a.confirm.prompt))
	}
	return a.renderFrame(body, width)
}

func (a *App) renderFrame(body string, width int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colorTitle)).
		Render("⬡ INSURECONTENT")
	if a.session != nil {
		who := mutedStyle.Render(a.session.Agent.DisplayName())
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, "  ", who, "  ", renderBadge(a.subView.Badge))
	}
	header = lipgloss.NewStyle().MarginBottom(1).Render(header)

	if a.busy != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", a.spinner.View()+" "+a.busy)
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(colorBorder)).
		Padding(0, 1).
		Width(max(20, width-2)).
		Render(body)

	sections := []string{header, box}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	var footer []string
	if a.errMsg != "" {
		footer = append(footer, errorStyle.Render(a.errMsg))
	}
	if a.statusMsg != "" {
		footer = append(footer, lipgloss.NewStyle().Foreground(lipgloss.Color(colorFooter)).Render(a.statusMsg))
	}
	if len(footer) > 0 {
		sections = append(sections, lipgloss.NewStyle().MarginTop(1).Render(strings.Join(footer, "\n")))
	}
	return strings.Join(sections, "\n")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colorAccent)).
		Render(fmt.Sprintf("LOG · %s · %d entries", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color(colorText)).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(colorBorder)).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func renderConfirm(prompt string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(colorTitle)).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", lipgloss.NewStyle().Bold(true).Render(prompt), hintStyle.Render("y confirm · n cancel")))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
