package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/generation"
	"github.com/kingrea/insurecontent/internal/wizard"
)

const busyGenerating = "Generating your content schedule..."

func newPromptInput() textarea.Model {
	ta := textarea.New()
	ta.Placeholder = "Anything the posts should mention (optional)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 1000
	ta.SetHeight(3)
	ta.Cursor.SetMode(cursor.CursorStatic)
	ta.Blur()
	return ta
}

func (a *App) resetWizard() {
	a.wiz = wizard.New(a.clock())
	a.wizCursor = 0
	a.promptFocus = false
	a.promptInput.Reset()
	a.promptInput.Blur()
}

func (a *App) startWizard() tea.Cmd {
	if !a.subView.CanRequestGeneration {
		a.errMsg = "An active subscription is required to generate content"
		return a.showSubscription()
	}
	a.resetWizard()
	a.state = stateWizard
	a.errMsg = ""
	a.statusMsg = ""
	return a.loadCatalog()
}

func (a *App) stepOptions() content.Options {
	if a.services.Catalog == nil {
		return nil
	}
	switch a.wiz.Step() {
	case wizard.StepTypes:
		return a.services.Catalog.InsuranceTypes()
	case wizard.StepToneWeek:
		return a.services.Catalog.Tones()
	}
	return nil
}

func (a *App) moveWizardCursor(delta int) {
	n := len(a.stepOptions())
	if n == 0 {
		a.wizCursor = 0
		return
	}
	a.wizCursor = (a.wizCursor + delta + n) % n
}

func (a *App) generating() bool {
	return a.busy == busyGenerating || (a.services.Generator != nil && a.services.Generator.Generating())
}

func (a *App) handleWizardKey(msg tea.KeyMsg) tea.Cmd {
	if a.generating() {
		return nil
	}
	if a.promptFocus {
		return a.handlePromptKey(msg)
	}
	key := msg.String()
	switch key {
	case "up", "k":
		a.moveWizardCursor(-1)
		return nil
	case "down", "j":
		a.moveWizardCursor(1)
		return nil
	case "esc", "backspace":
		return a.retreatWizard()
	case "enter":
		if !a.wizardEnterReady() {
			a.errMsg = incompleteMessage(a.wiz.Step())
			return nil
		}
		if a.wiz.Step() == wizard.StepReview {
			return a.submitWizard()
		}
		return a.advanceWizard()
	}
	switch a.wiz.Step() {
	case wizard.StepTypes:
		if key == " " || key == "x" {
			a.toggleSelectedType()
		}
	case wizard.StepToneWeek:
		switch key {
		case " ":
			a.selectTone()
		case "[", "left", "h":
			a.wiz = a.wiz.ShiftWeek(-1)
		case "]", "right", "l":
			a.wiz = a.wiz.ShiftWeek(1)
		case "tab":
			a.promptFocus = true
			return a.promptInput.Focus()
		}
	}
	return nil
}

func (a *App) handlePromptKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "esc" || msg.String() == "tab" {
		a.promptFocus = false
		a.promptInput.Blur()
		return nil
	}
	var cmd tea.Cmd
	a.promptInput, cmd = a.promptInput.Update(msg)
	a.wiz = a.wiz.SetAdditionalPrompt(a.promptInput.Value())
	return cmd
}

func (a *App) toggleSelectedType() {
	options := a.stepOptions()
	if a.wizCursor >= len(options) {
		return
	}
	value := options[a.wizCursor].Value
	a.wiz = a.wiz.ToggleInsuranceType(value, !a.wiz.Includes(value))
	a.errMsg = ""
}

func (a *App) selectTone() {
	options := a.stepOptions()
	if a.wizCursor >= len(options) {
		return
	}
	a.wiz = a.wiz.SetTone(options[a.wizCursor].Value)
	a.errMsg = ""
}

// wizardEnterReady reports whether enter may move on from the current step.
// On the tone step enter also picks the highlighted tone, so an empty tone
// does not block it while a tone is highlighted.
func (a *App) wizardEnterReady() bool {
	switch a.wiz.Step() {
	case wizard.StepToneWeek:
		if strings.TrimSpace(a.wiz.Draft().Tone) == "" {
			return a.wizCursor < len(a.stepOptions()) && !a.wiz.Draft().WeekStart.IsZero()
		}
		return a.wiz.CanAdvance()
	case wizard.StepReview:
		return a.wiz.CanSubmit()
	default:
		return a.wiz.CanAdvance()
	}
}

func (a *App) advanceWizard() tea.Cmd {
	// enter on the tone list also picks the highlighted tone
	if a.wiz.Step() == wizard.StepToneWeek && strings.TrimSpace(a.wiz.Draft().Tone) == "" {
		a.selectTone()
	}
	next, err := a.wiz.Advance()
	if err != nil {
		a.errMsg = incompleteMessage(a.wiz.Step())
		return nil
	}
	a.wiz = next
	a.errMsg = ""
	a.wizCursor = a.cursorForStep()
	return nil
}

func (a *App) retreatWizard() tea.Cmd {
	prev, err := a.wiz.Retreat()
	if errors.Is(err, wizard.ErrFirstStep) {
		a.showDashboard()
		return nil
	}
	a.wiz = prev
	a.errMsg = ""
	a.wizCursor = a.cursorForStep()
	return nil
}

// cursorForStep puts the cursor on the current selection when revisiting a
// step.
func (a *App) cursorForStep() int {
	if a.wiz.Step() != wizard.StepToneWeek {
		return 0
	}
	tone := a.wiz.Draft().Tone
	for i, opt := range a.stepOptions() {
		if opt.Value == tone {
			return i
		}
	}
	return 0
}

func incompleteMessage(step wizard.Step) string {
	switch step {
	case wizard.StepTypes:
		return "Select at least one insurance type"
	case wizard.StepToneWeek:
		return "Choose a tone and a week"
	default:
		return "Complete this step first"
	}
}

func (a *App) submitWizard() tea.Cmd {
	req := a.wiz.Request()
	if !a.wiz.CanSubmit() {
		if err := req.Validate(); err != nil {
			a.errMsg = content.UserMessage(err)
		}
		return nil
	}
	a.errMsg = ""
	a.statusMsg = ""
	return tea.Batch(a.startBusy(busyGenerating), a.submitGeneration(req))
}

func (a *App) handleGenerationFinished(msg generationFinishedMsg) tea.Cmd {
	if a.busy == busyGenerating {
		a.stopBusy()
	}
	if msg.err != nil {
		if errors.Is(msg.err, generation.ErrGenerationInProgress) {
			a.statusMsg = "A schedule is already being generated"
			return nil
		}
		// the draft stays as it was so the agent can retry
		return a.fail(msg.err)
	}
	if a.session == nil {
		return nil
	}
	a.resetWizard()
	a.openScheduleScreen()
	a.statusMsg = fmt.Sprintf("Schedule ready for %s", msg.schedule.WeekLabel())
	return a.loadOverview()
}

func (a *App) renderWizard(width int) string {
	step := a.wiz.Step()
	var progress []string
	for i := 1; i <= wizard.StepCount; i++ {
		switch {
		case i < int(step):
			progress = append(progress, successStyle.Render("●"))
		case i == int(step):
			progress = append(progress, selectedStyle.Render("●"))
		default:
			progress = append(progress, mutedStyle.Render("○"))
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render(step.Title()), "  ", strings.Join(progress, " "), "  ", mutedStyle.Render(step.String()))

	var body string
	var keys []string
	enter := "enter next"
	switch step {
	case wizard.StepTypes:
		body = a.renderTypeStep()
		keys = []string{"↑/↓ move", "space toggle"}
	case wizard.StepToneWeek:
		body = a.renderToneStep(width)
		keys = []string{"↑/↓ move", "space pick tone", "[ ] change week", "tab edit notes"}
	case wizard.StepReview:
		body = a.renderReviewStep()
		enter = "enter generate"
	}
	if step == wizard.StepToneWeek && a.promptFocus {
		return lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", hintStyle.Render("type notes · tab or esc done"))
	}
	hint := hintStyle.Render(strings.Join(keys, " · "))
	if len(keys) > 0 {
		hint += hintStyle.Render(" · ")
	}
	if a.wizardEnterReady() {
		hint += hintStyle.Render(enter + " · esc back")
	} else {
		hint += mutedStyle.Render(incompleteMessage(step)) + hintStyle.Render(" · esc back")
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", hint)
}

func (a *App) renderTypeStep() string {
	options := a.stepOptions()
	if len(options) == 0 {
		return mutedStyle.Render("Loading insurance types...")
	}
	lines := []string{labelStyle.Render("Which products should this week's posts focus on?")}
	for i, opt := range options {
		box := "[ ]"
		if a.wiz.Includes(opt.Value) {
			box = successStyle.Render("[x]")
		}
		lines = append(lines, fmt.Sprintf("%s%s %s", cursorMark(i == a.wizCursor), box, bodyStyle.Render(opt.Label)))
	}
	lines = append(lines, "", mutedStyle.Render(fmt.Sprintf("%d selected", len(a.wiz.Draft().InsuranceTypes))))
	return strings.Join(lines, "\n")
}

func (a *App) renderToneStep(width int) string {
	draft := a.wiz.Draft()
	options := a.stepOptions()
	lines := []string{labelStyle.Render("Tone")}
	if len(options) == 0 {
		lines = append(lines, mutedStyle.Render("Loading tones..."))
	}
	for i, opt := range options {
		mark := "( )"
		if opt.Value == draft.Tone {
			mark = successStyle.Render("(•)")
		}
		lines = append(lines, fmt.Sprintf("%s%s %s", cursorMark(i == a.wizCursor && !a.promptFocus), mark, bodyStyle.Render(opt.Label)))
	}
	lines = append(lines,
		"",
		labelStyle.Render("Week"),
		bodyStyle.Render("◂ "+draft.WeekLabel()+" ▸"),
		"",
		labelStyle.Render("Additional notes"),
	)
	a.promptInput.SetWidth(max(20, width-4))
	lines = append(lines, a.promptInput.View())
	return strings.Join(lines, "\n")
}

func (a *App) renderReviewStep() string {
	draft := a.wiz.Draft()
	types := make([]string, len(draft.InsuranceTypes))
	for i, v := range draft.InsuranceTypes {
		types[i] = a.insuranceTypeLabel(v)
	}
	notes := strings.TrimSpace(draft.AdditionalPrompt)
	if notes == "" {
		notes = mutedStyle.Render("None")
	}
	rows := [][2]string{
		{"Insurance types", strings.Join(types, ", ")},
		{"Tone", a.toneLabel(draft.Tone)},
		{"Week", draft.WeekLabel()},
		{"Notes", notes},
	}
	lines := make([]string, 0, len(rows)+2)
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Width(17).Render(row[0]+":"), bodyStyle.Render(row[1])))
	}
	lines = append(lines, "", mutedStyle.Render("Generating writes one post for each day of the week."))
	return strings.Join(lines, "\n")
}
