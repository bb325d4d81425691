// Package schedule owns the schedule on screen: which posts lack images,
// which image calls are in flight, and the delete, copy and download
// actions offered on a post.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/logbook"
	"github.com/kingrea/insurecontent/internal/logging"
)

// Messages shown when a failed call carried none.
const (
	ImageFallback      = "Failed to generate image"
	BatchFallback      = "Failed to generate images"
	RegenerateFallback = "Failed to regenerate image"
	DeleteFallback     = "Failed to delete schedule"
	DownloadFallback   = "Failed to download image"
	LoadFallback       = "Failed to load schedule"
)

var (
	// ErrNoSchedule means no schedule is open.
	ErrNoSchedule = errors.New("schedule: no schedule loaded")
	// ErrPostNotFound means the post is not part of the open schedule.
	ErrPostNotFound = errors.New("schedule: post not found")
	// ErrImageInProgress rejects a second call for a post that is already
	// generating, or a batch while any single post is generating.
	ErrImageInProgress = errors.New("schedule: image generation already in progress")
	// ErrBatchInProgress rejects any image call while the batch runs.
	ErrBatchInProgress = errors.New("schedule: batch image generation in progress")
	// ErrNothingToGenerate means every post already has an image.
	ErrNothingToGenerate = errors.New("schedule: every post already has an image")
	// ErrDeleteInProgress rejects a second delete.
	ErrDeleteInProgress = errors.New("schedule: delete already in progress")
	// ErrNoImage means the post has no image to download.
	ErrNoImage = errors.New("schedule: post has no image")
)

// Client is the part of the API the manager needs.
type Client interface {
	GetSchedule(ctx context.Context, id int64) (content.Schedule, error)
	DeleteSchedule(ctx context.Context, id int64) error
	GenerateImage(ctx context.Context, postID int64) (content.ImageResult, error)
	GenerateAllImages(ctx context.Context, scheduleID int64) (content.BatchImageResult, error)
	RegenerateImage(ctx context.Context, postID int64, description string) (content.ImageResult, error)
	DownloadImage(ctx context.Context, postID int64) (content.DownloadedImage, error)
}

// Manager holds the current schedule and the in-flight flags for it. All
// methods are safe for concurrent use; the TUI calls them from commands.
type Manager struct {
	client      Client
	clipboard   Clipboard
	book        *logbook.Logbook
	logger      *slog.Logger
	downloadDir string

	mu        sync.Mutex
	current   *content.Schedule
	imageBusy map[int64]bool
	batchBusy bool
	deleting  bool
}

// Option customizes the manager.
type Option func(*Manager)

// WithClipboard replaces the system clipboard.
func WithClipboard(cb Clipboard) Option {
	return func(m *Manager) {
		if cb != nil {
			m.clipboard = cb
		}
	}
}

// WithLogbook records actions in the activity log.
func WithLogbook(book *logbook.Logbook) Option {
	return func(m *Manager) {
		m.book = book
	}
}

// WithLogger routes diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDownloadDir sets where downloaded images are written.
func WithDownloadDir(dir string) Option {
	return func(m *Manager) {
		m.downloadDir = dir
	}
}

// NewManager creates a manager with no schedule open.
func NewManager(client Client, opts ...Option) *Manager {
	m := &Manager{
		client:    client,
		clipboard: SystemClipboard{},
		logger:    logging.Discard(),
		imageBusy: make(map[int64]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Replace makes sched the current schedule.
func (m *Manager) Replace(sched content.Schedule) {
	clone := sched.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &clone
}

// Clear forgets the current schedule and every in-flight flag.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.imageBusy = make(map[int64]bool)
	m.batchBusy = false
	m.deleting = false
}

// Current returns a copy of the open schedule.
func (m *Manager) Current() (content.Schedule, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return content.Schedule{}, false
	}
	return m.current.Clone(), true
}

// SortedPosts returns the open schedule's posts by ascending date.
func (m *Manager) SortedPosts() []content.Post {
	sched, ok := m.Current()
	if !ok {
		return nil
	}
	return sched.SortedPosts()
}

// PostsWithoutImages is derived from the current schedule on every call.
func (m *Manager) PostsWithoutImages() []content.Post {
	sched, ok := m.Current()
	if !ok {
		return nil
	}
	return sched.PostsWithoutImages()
}

// ImageInProgress reports whether postID has a single-post call in flight.
func (m *Manager) ImageInProgress(postID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imageBusy[postID]
}

// BatchInProgress reports whether the batch call is in flight.
func (m *Manager) BatchInProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchBusy
}

// Deleting reports whether a delete is in flight.
func (m *Manager) Deleting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleting
}

// Open loads a schedule by id and makes it current.
func (m *Manager) Open(ctx context.Context, id int64) (content.Schedule, error) {
	sched, err := m.client.GetSchedule(ctx, id)
	if err != nil {
		m.logger.Warn("load schedule failed", slog.Int64("schedule_id", id), logging.Err(err))
		return content.Schedule{}, content.NewFailure("load schedule", err, LoadFallback)
	}
	m.Replace(sched)
	return sched.Clone(), nil
}

// Reload refetches the current schedule. The result is dropped if another
// schedule was opened while the call was in flight.
func (m *Manager) Reload(ctx context.Context) (content.Schedule, error) {
	sched, ok := m.Current()
	if !ok {
		return content.Schedule{}, ErrNoSchedule
	}
	fresh, err := m.client.GetSchedule(ctx, sched.ID)
	if err != nil {
		m.logger.Warn("reload schedule failed", slog.Int64("schedule_id", sched.ID), logging.Err(err))
		return content.Schedule{}, content.NewFailure("reload schedule", err, LoadFallback)
	}
	clone := fresh.Clone()
	m.mu.Lock()
	if m.current != nil && m.current.ID == fresh.ID {
		m.current = &clone
	}
	m.mu.Unlock()
	return fresh.Clone(), nil
}

// GenerateImage creates the image for one post and reloads the schedule.
func (m *Manager) GenerateImage(ctx context.Context, postID int64) (content.Schedule, error) {
	return m.runImage(ctx, postID, "generate image", ImageFallback, func(ctx context.Context) (content.ImageResult, error) {
		return m.client.GenerateImage(ctx, postID)
	})
}

// RegenerateImage replaces a post's image. A blank description keeps the
// post's current one.
func (m *Manager) RegenerateImage(ctx context.Context, postID int64, description string) (content.Schedule, error) {
	return m.runImage(ctx, postID, "regenerate image", RegenerateFallback, func(ctx context.Context) (content.ImageResult, error) {
		return m.client.RegenerateImage(ctx, postID, description)
	})
}

func (m *Manager) runImage(ctx context.Context, postID int64, op, fallback string, call func(context.Context) (content.ImageResult, error)) (content.Schedule, error) {
	if err := m.beginImage(postID); err != nil {
		return content.Schedule{}, err
	}
	defer m.endImage(postID)

	log := m.logger.With(logging.Op("schedule."+op), slog.Int64("post_id", postID))
	if _, err := call(ctx); err != nil {
		failure := content.NewFailure(op, err, fallback)
		log.Error("image call failed", logging.Err(err))
		m.book.Error("Post %d: %s", postID, failure.Message)
		return content.Schedule{}, failure
	}
	m.book.Info("Post %d: image ready", postID)
	sched, err := m.Reload(ctx)
	if err != nil {
		return content.Schedule{}, err
	}
	return sched, nil
}

func (m *Manager) beginImage(postID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ErrNoSchedule
	}
	if _, ok := m.current.Post(postID); !ok {
		return fmt.Errorf("%w: %d", ErrPostNotFound, postID)
	}
	if m.batchBusy {
		return ErrBatchInProgress
	}
	if m.imageBusy[postID] {
		return ErrImageInProgress
	}
	m.imageBusy[postID] = true
	return nil
}

func (m *Manager) endImage(postID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.imageBusy, postID)
}

// GenerateAllImages asks the server to create every missing image of the
// open schedule in one call. The set of posts is whatever lacks an image
// at call time. Per-post outcomes are logged only; the reloaded schedule
// is the source of truth.
func (m *Manager) GenerateAllImages(ctx context.Context) (content.BatchImageResult, error) {
	id, missing, err := m.beginBatch()
	if err != nil {
		return content.BatchImageResult{}, err
	}
	defer m.endBatch()

	log := m.logger.With(logging.Op("schedule.generate_all"), slog.Int64("schedule_id", id))
	m.book.Info("Generating %d images for schedule %d", missing, id)
	result, err := m.client.GenerateAllImages(ctx, id)
	if err != nil {
		failure := content.NewFailure("generate all images", err, BatchFallback)
		log.Error("batch image call failed", logging.Err(err))
		m.book.Error("Batch images: %s", failure.Message)
		// some posts may have been written before the failure
		if _, reloadErr := m.Reload(ctx); reloadErr != nil {
			log.Warn("reload after batch failure failed", logging.Err(reloadErr))
		}
		return content.BatchImageResult{}, failure
	}
	log.Info("batch images finished",
		slog.Int("generated", len(result.Generated)),
		slog.Int("failed", len(result.Failed)),
		slog.Float64("total_cost", result.TotalCost),
	)
	m.book.Info("Batch images: %d generated, %d failed", len(result.Generated), len(result.Failed))
	for _, failed := range result.Failed {
		m.book.Warn("Post %d image failed: %s", failed.PostID, failed.Error)
	}
	if _, err := m.Reload(ctx); err != nil {
		return result, err
	}
	return result, nil
}

func (m *Manager) beginBatch() (int64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return 0, 0, ErrNoSchedule
	}
	if m.batchBusy {
		return 0, 0, ErrBatchInProgress
	}
	if len(m.imageBusy) > 0 {
		return 0, 0, ErrImageInProgress
	}
	missing := len(m.current.PostsWithoutImages())
	if missing == 0 {
		return 0, 0, ErrNothingToGenerate
	}
	m.batchBusy = true
	return m.current.ID, missing, nil
}

func (m *Manager) endBatch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchBusy = false
}

// Delete removes the open schedule after confirm agrees. Declining makes
// no call and returns false.
func (m *Manager) Delete(ctx context.Context, confirm content.Confirmer) (bool, error) {
	sched, ok := m.Current()
	if !ok {
		return false, ErrNoSchedule
	}
	if confirm == nil || !confirm.Confirm(fmt.Sprintf("Delete the schedule for %s?", sched.WeekLabel())) {
		return false, nil
	}
	m.mu.Lock()
	if m.deleting {
		m.mu.Unlock()
		return false, ErrDeleteInProgress
	}
	m.deleting = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.deleting = false
		m.mu.Unlock()
	}()

	if err := m.client.DeleteSchedule(ctx, sched.ID); err != nil {
		failure := content.NewFailure("delete schedule", err, DeleteFallback)
		m.logger.Error("delete schedule failed", slog.Int64("schedule_id", sched.ID), logging.Err(err))
		m.book.Error("Delete failed: %s", failure.Message)
		return false, failure
	}
	m.mu.Lock()
	if m.current != nil && m.current.ID == sched.ID {
		m.current = nil
		m.imageBusy = make(map[int64]bool)
	}
	m.mu.Unlock()
	m.book.Info("Deleted schedule for %s", sched.WeekLabel())
	return true, nil
}

// CopyPost places the post text and hashtags on the clipboard. Clipboard
// failures are logged and reported as false; nothing is shown to the user.
func (m *Manager) CopyPost(postID int64) bool {
	sched, ok := m.Current()
	if !ok {
		return false
	}
	post, ok := sched.Post(postID)
	if !ok {
		return false
	}
	if err := m.clipboard.WriteAll(post.ClipboardText()); err != nil {
		m.logger.Warn("copy to clipboard failed", slog.Int64("post_id", postID), logging.Err(err))
		m.book.Warn("Copy failed for post %d: %v", postID, err)
		return false
	}
	m.book.Info("Copied post for %s", post.PostDate.Long())
	return true
}

// DownloadImage saves a post's image under the download directory and
// returns the written path.
func (m *Manager) DownloadImage(ctx context.Context, postID int64) (string, error) {
	sched, ok := m.Current()
	if !ok {
		return "", ErrNoSchedule
	}
	post, ok := sched.Post(postID)
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrPostNotFound, postID)
	}
	if !post.HasImage() {
		return "", ErrNoImage
	}
	img, err := m.client.DownloadImage(ctx, postID)
	if err != nil {
		failure := content.NewFailure("download image", err, DownloadFallback)
		m.book.Error("Download failed: %s", failure.Message)
		return "", failure
	}
	dir := m.downloadDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("schedule: create download dir: %w", err)
	}
	name := filepath.Base(img.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = fmt.Sprintf("post_%d.png", postID)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("schedule: write %s: %w", path, err)
	}
	m.book.Info("Saved image for post %d to %s", postID, path)
	return path, nil
}
