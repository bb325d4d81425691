package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/schedule"
)

const (
	busyLoadingSchedule = "Loading schedule..."
	busyBatch           = "Generating images for every post..."
	busyDeleting        = "Deleting schedule..."
)

func (a *App) openScheduleScreen() {
	a.state = stateSchedule
	a.postCursor = 0
	a.regenerating = nil
}

func (a *App) selectedPost() (content.Post, bool) {
	posts := a.services.Schedules.SortedPosts()
	if len(posts) == 0 {
		return content.Post{}, false
	}
	if a.postCursor >= len(posts) {
		a.postCursor = len(posts) - 1
	}
	return posts[a.postCursor], true
}

func (a *App) anyImagePending() bool {
	for _, pending := range a.pendingImages {
		if pending {
			return true
		}
	}
	return false
}

func (a *App) handleScheduleKey(msg tea.KeyMsg) tea.Cmd {
	if a.regenerating != nil {
		return a.handleRegenerateKey(msg)
	}
	posts := a.services.Schedules.SortedPosts()
	switch msg.String() {
	case "up", "k":
		if a.postCursor > 0 {
			a.postCursor--
		}
	case "down", "j":
		if a.postCursor < len(posts)-1 {
			a.postCursor++
		}
	case "esc", "q":
		if a.deletePending {
			return nil
		}
		a.errMsg = ""
		a.showDashboard()
		return a.loadOverview()
	case "R":
		return a.reloadSchedule()
	case "g":
		return a.requestImage(false)
	case "r":
		return a.requestImage(true)
	case "a":
		return a.requestBatch()
	case "c":
		return a.copySelectedPost()
	case "d":
		return a.requestDownload()
	case "x":
		return a.requestDelete()
	}
	return nil
}

func (a *App) requireGeneration() bool {
	if a.subView.CanRequestGeneration {
		return true
	}
	a.errMsg = "An active subscription is required to generate images"
	return false
}

// requestImage starts a single-post image call, or opens the description
// form first when regenerating.
func (a *App) requestImage(regenerate bool) tea.Cmd {
	post, ok := a.selectedPost()
	if !ok || !a.requireGeneration() {
		return nil
	}
	switch {
	case a.batchPending:
		a.statusMsg = "Wait for the batch image generation to finish"
		return nil
	case a.pendingImages[post.ID]:
		a.statusMsg = "An image is already being generated for this post"
		return nil
	case a.deletePending:
		return nil
	}
	if regenerate {
		a.regenerating = newRegenerateForm(post)
		return nil
	}
	if post.HasImage() {
		a.statusMsg = "This post already has an image; press r to regenerate it"
		return nil
	}
	a.pendingImages[post.ID] = true
	a.errMsg = ""
	a.statusMsg = fmt.Sprintf("Generating image for %s...", post.PostDate.Long())
	return a.generateImage(post.ID)
}

func newRegenerateForm(post content.Post) *regenerateForm {
	in := textinput.New()
	in.Prompt = "Description "
	in.Placeholder = "leave blank to reuse the current description"
	in.CharLimit = 500
	in.Cursor.SetMode(cursor.CursorStatic)
	in.SetValue(post.ImageDescription)
	in.Focus()
	return &regenerateForm{postID: post.ID, input: in}
}

func (a *App) handleRegenerateKey(msg tea.KeyMsg) tea.Cmd {
	form := a.regenerating
	switch msg.String() {
	case "esc":
		a.regenerating = nil
		return nil
	case "enter":
		a.regenerating = nil
		if a.batchPending || a.pendingImages[form.postID] {
			a.statusMsg = "An image is already being generated for this post"
			return nil
		}
		a.pendingImages[form.postID] = true
		a.errMsg = ""
		a.statusMsg = "Regenerating image..."
		return a.regenerateImage(form.postID, strings.TrimSpace(form.input.Value()))
	}
	var cmd tea.Cmd
	form.input, cmd = form.input.Update(msg)
	return cmd
}

func (a *App) requestBatch() tea.Cmd {
	if !a.requireGeneration() || a.batchPending || a.deletePending {
		return nil
	}
	if a.anyImagePending() {
		a.statusMsg = "Wait for the current image to finish"
		return nil
	}
	missing := len(a.services.Schedules.PostsWithoutImages())
	if missing == 0 {
		a.statusMsg = "Every post already has an image"
		return nil
	}
	a.batchPending = true
	a.errMsg = ""
	a.statusMsg = ""
	return tea.Batch(a.startBusy(busyBatch), a.generateAllImages())
}

func (a *App) copySelectedPost() tea.Cmd {
	post, ok := a.selectedPost()
	if !ok {
		return nil
	}
	// A failed copy only reaches the activity log.
	if a.services.Schedules.CopyPost(post.ID) {
		a.statusMsg = "Post copied to clipboard"
	}
	return nil
}

func (a *App) requestDownload() tea.Cmd {
	post, ok := a.selectedPost()
	if !ok {
		return nil
	}
	if !post.HasImage() {
		a.statusMsg = "Generate an image for this post first"
		return nil
	}
	a.statusMsg = "Downloading image..."
	return a.downloadImage(post.ID)
}

func (a *App) requestDelete() tea.Cmd {
	sched, ok := a.services.Schedules.Current()
	if !ok || a.deletePending || a.batchPending || a.anyImagePending() {
		return nil
	}
	a.ask(fmt.Sprintf("Delete the schedule for %s? This cannot be undone.", sched.WeekLabel()), func() tea.Cmd {
		a.deletePending = true
		a.errMsg = ""
		return tea.Batch(a.startBusy(busyDeleting), a.deleteSchedule())
	})
	return nil
}

func (a *App) handleScheduleOpened(msg scheduleOpenedMsg) tea.Cmd {
	if a.busy == busyLoadingSchedule {
		a.stopBusy()
	}
	if msg.err != nil {
		return a.fail(msg.err)
	}
	if a.session == nil {
		return nil
	}
	if a.state != stateSchedule {
		a.openScheduleScreen()
		a.statusMsg = ""
	}
	return nil
}

func (a *App) handleImageFinished(msg imageFinishedMsg) tea.Cmd {
	delete(a.pendingImages, msg.postID)
	if msg.err != nil {
		if errors.Is(msg.err, schedule.ErrImageInProgress) || errors.Is(msg.err, schedule.ErrBatchInProgress) {
			a.statusMsg = content.UserMessage(msg.err)
			return nil
		}
		a.statusMsg = ""
		return a.fail(msg.err)
	}
	a.statusMsg = "Image ready"
	return nil
}

func (a *App) handleBatchFinished(msg batchFinishedMsg) tea.Cmd {
	a.batchPending = false
	if a.busy == busyBatch {
		a.stopBusy()
	}
	if msg.err != nil {
		if errors.Is(msg.err, schedule.ErrNothingToGenerate) {
			a.statusMsg = "Every post already has an image"
			return nil
		}
		return a.fail(msg.err)
	}
	res := msg.result
	a.statusMsg = fmt.Sprintf("%s (%d generated, %d failed, cost $%.2f)", res.Message, len(res.Generated), len(res.Failed), res.TotalCost)
	if len(res.Failed) > 0 {
		a.errMsg = fmt.Sprintf("%d images failed; press g on a post to retry it", len(res.Failed))
	}
	return nil
}

func (a *App) handleDeleteFinished(msg deleteFinishedMsg) tea.Cmd {
	a.deletePending = false
	if a.busy == busyDeleting {
		a.stopBusy()
	}
	if msg.err != nil {
		return a.fail(msg.err)
	}
	if !msg.deleted {
		return nil
	}
	a.statusMsg = "Schedule deleted"
	a.showDashboard()
	return a.loadOverview()
}

func (a *App) handleDownloadFinished(msg downloadFinishedMsg) tea.Cmd {
	if msg.err != nil {
		a.statusMsg = ""
		return a.fail(msg.err)
	}
	a.statusMsg = "Saved " + msg.path
	return nil
}

func (a *App) renderSchedule(width int) string {
	sched, ok := a.services.Schedules.Current()
	if !ok {
		return mutedStyle.Render("No schedule open")
	}
	header := titleStyle.Render("Week of " + sched.WeekLabel())
	types := make([]string, len(sched.InsuranceTypes))
	for i, v := range sched.InsuranceTypes {
		types[i] = a.insuranceTypeLabel(v)
	}
	meta := mutedStyle.Render(fmt.Sprintf("%s tone · %s · %d/%d images",
		a.toneLabel(sched.Tone), strings.Join(types, ", "), sched.ImageCount(), len(sched.Posts)))

	posts := a.services.Schedules.SortedPosts()
	var rows []string
	for i, post := range posts {
		rows = append(rows, a.renderPostRow(post, i == a.postCursor))
	}
	if len(rows) == 0 {
		rows = append(rows, mutedStyle.Render("This schedule has no posts"))
	}

	sections := []string{header, meta, "", strings.Join(rows, "\n")}
	if post, ok := a.selectedPost(); ok {
		sections = append(sections, "", a.renderPostDetail(post, width))
	}
	if form := a.regenerating; form != nil {
		sections = append(sections, "", labelStyle.Render("New image description"), form.input.View(), hintStyle.Render("enter regenerate · esc cancel"))
	} else {
		sections = append(sections, "", hintStyle.Render("↑/↓ select · g image · a all images · r regenerate · c copy · d download · x delete · R reload · esc back"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderPostRow(post content.Post, selected bool) string {
	var status string
	switch {
	case a.pendingImages[post.ID] || (a.batchPending && !post.HasImage()):
		status = warnStyle.Render("generating")
	case post.HasImage():
		status = successStyle.Render("image ready")
	default:
		status = mutedStyle.Render("no image")
	}
	day := post.PostDate.Time().Format("Mon Jan 2")
	line := fmt.Sprintf("%s%-11s %s  %s", cursorMark(selected), day, bodyStyle.Render(content.Humanize(post.ContentTheme)), status)
	return line
}

func (a *App) renderPostDetail(post content.Post, width int) string {
	wrap := lipgloss.NewStyle().Width(max(20, width-4))
	lines := []string{
		labelStyle.Render(post.PostDate.Long() + " · " + a.insuranceTypeLabel(post.InsuranceTypeFocus)),
		wrap.Inherit(bodyStyle).Render(strings.TrimSpace(post.PostText)),
	}
	if tags := post.HashtagLine(); tags != "" {
		lines = append(lines, wrap.Inherit(selectedStyle).Render(tags))
	}
	if desc := strings.TrimSpace(post.ImageDescription); desc != "" {
		lines = append(lines, wrap.Inherit(mutedStyle).Render("Image: "+desc))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(colorAccent)).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}
