package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/insurecontent/internal/apiclient"
	"github.com/kingrea/insurecontent/internal/config"
	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/subscription"
)

const loginFallback = "Login failed. Please check your credentials."

func newLoginInputs(cfg *config.Config) (textinput.Model, textinput.Model) {
	email := textinput.New()
	email.Placeholder = "agent@example.com"
	email.Prompt = "Email    "
	email.CharLimit = 254
	email.Cursor.SetMode(cursor.CursorStatic)
	if cfg != nil {
		email.SetValue(cfg.Settings.Auth.Email)
	}

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.Cursor.SetMode(cursor.CursorStatic)

	if email.Value() == "" {
		email.Focus()
	} else {
		password.Focus()
	}
	return email, password
}

func (a *App) focusLogin() {
	if strings.TrimSpace(a.emailInput.Value()) == "" {
		a.emailInput.Focus()
		a.passwordInput.Blur()
		return
	}
	a.emailInput.Blur()
	a.passwordInput.Focus()
}

func (a *App) toggleLoginFocus() {
	if a.emailInput.Focused() {
		a.emailInput.Blur()
		a.passwordInput.Focus()
		return
	}
	a.passwordInput.Blur()
	a.emailInput.Focus()
}

func (a *App) handleLoginKey(msg tea.KeyMsg) tea.Cmd {
	if a.loggingIn {
		return nil
	}
	switch msg.String() {
	case "esc":
		return tea.Quit
	case "tab", "shift+tab", "up", "down":
		a.toggleLoginFocus()
		return nil
	case "enter":
		if a.emailInput.Focused() && a.passwordInput.Value() == "" {
			a.toggleLoginFocus()
			return nil
		}
		return a.submitLogin()
	}
	var cmd tea.Cmd
	if a.emailInput.Focused() {
		a.emailInput, cmd = a.emailInput.Update(msg)
	} else {
		a.passwordInput, cmd = a.passwordInput.Update(msg)
	}
	return cmd
}

func (a *App) submitLogin() tea.Cmd {
	creds := content.Credentials{
		Email:    strings.TrimSpace(a.emailInput.Value()),
		Password: a.passwordInput.Value(),
	}
	if err := creds.Validate(); err != nil {
		a.errMsg = content.UserMessage(err)
		return nil
	}
	a.errMsg = ""
	a.loggingIn = true
	return tea.Batch(a.startBusy("Signing in..."), a.login(creds))
}

func (a *App) handleLoginFinished(msg loginFinishedMsg) tea.Cmd {
	a.loggingIn = false
	a.stopBusy()
	if msg.err != nil {
		a.errMsg = content.RemoteMessage(msg.err, loginFallback)
		a.logWarn("Sign in failed for %s", strings.TrimSpace(a.emailInput.Value()))
		return nil
	}
	if cfg := a.services.Config; cfg != nil {
		if err := cfg.RememberEmail(msg.session.Agent.Email); err != nil {
			a.logWarn("Could not save email to config: %v", err)
		}
	}
	a.statusMsg = "Welcome, " + msg.session.Agent.DisplayName()
	return a.beginSession(msg.session)
}

func (a *App) handleSessionChecked(msg sessionCheckedMsg) tea.Cmd {
	if msg.err != nil {
		if !errors.Is(msg.err, apiclient.ErrUnauthorized) {
			a.logWarn("Could not restore session: %s", content.UserMessage(msg.err))
		}
		return nil
	}
	if a.session != nil {
		return nil
	}
	a.statusMsg = "Welcome back, " + msg.session.Agent.DisplayName()
	return a.beginSession(msg.session)
}

func (a *App) beginSession(session content.Session) tea.Cmd {
	a.session = &session
	a.subView = subscription.Derive(session.Status(), a.clock())
	a.passwordInput.SetValue("")
	a.errMsg = ""
	a.logInfo("Signed in as %s (%s)", session.Agent.Email, a.subView.Badge.Label)
	a.showDashboard()
	return tea.Batch(a.loadOverview(), a.loadCatalog(), a.loadSubscription())
}

func (a *App) handleLogoutFinished(msg logoutFinishedMsg) tea.Cmd {
	if msg.err != nil && !errors.Is(msg.err, apiclient.ErrUnauthorized) {
		a.logWarn("Logout call failed: %s", content.UserMessage(msg.err))
	}
	a.logInfo("Signed out")
	a.resetSession()
	a.errMsg = ""
	a.statusMsg = "Signed out"
	return nil
}

func (a *App) renderLogin() string {
	title := titleStyle.Render("Sign in")
	hint := hintStyle.Render("tab switch field · enter sign in · esc quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		mutedStyle.Render("Weekly social content for insurance agents"),
		"",
		a.emailInput.View(),
		a.passwordInput.View(),
		"",
		hint,
	)
}
