package schedule

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/logbook"
	"github.com/kingrea/insurecontent/internal/logging"
)

// DefaultRecentLimit is how many past schedules the dashboard lists.
const DefaultRecentLimit = 5

// Lister is the part of the API the dashboard reads.
type Lister interface {
	GetCurrentWeekSchedule(ctx context.Context) (content.Schedule, error)
	ListSchedules(ctx context.Context) ([]content.Schedule, error)
}

// NotFoundFunc reports whether err means "no schedule for this week".
type NotFoundFunc func(err error) bool

// Overview is what the dashboard shows: this week's schedule, if any, and
// the most recent schedules.
type Overview struct {
	Current *content.Schedule
	Recent  []content.Schedule
}

// Dashboard loads the overview.
type Dashboard struct {
	lister   Lister
	notFound NotFoundFunc
	limit    int
	book     *logbook.Logbook
	logger   *slog.Logger
}

// NewDashboard builds a dashboard loader. notFound classifies the
// current-week lookup's "no schedule yet" error, which is not a failure.
func NewDashboard(lister Lister, notFound NotFoundFunc, limit int, book *logbook.Logbook, logger *slog.Logger) *Dashboard {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if notFound == nil {
		notFound = func(error) bool { return false }
	}
	return &Dashboard{lister: lister, notFound: notFound, limit: limit, book: book, logger: logger}
}

// Load fetches the current week and the schedule list in parallel. The two
// halves fail independently: a failure leaves that half empty without
// cancelling the other, and the joined error is returned with whatever
// loaded.
func (d *Dashboard) Load(ctx context.Context) (Overview, error) {
	var (
		current  *content.Schedule
		recent   []content.Schedule
		curErr   error
		listErr  error
		overview Overview
	)
	var g errgroup.Group
	g.Go(func() error {
		sched, err := d.lister.GetCurrentWeekSchedule(ctx)
		switch {
		case err == nil:
			current = &sched
		case d.notFound(err):
		default:
			curErr = content.NewFailure("load current week", err, "Failed to load this week's schedule")
		}
		return nil
	})
	g.Go(func() error {
		list, err := d.lister.ListSchedules(ctx)
		if err != nil {
			listErr = content.NewFailure("list schedules", err, "Failed to load schedules")
			return nil
		}
		recent = list
		return nil
	})
	_ = g.Wait()

	overview.Current = current
	if len(recent) > d.limit {
		recent = recent[:d.limit]
	}
	overview.Recent = recent
	err := errors.Join(curErr, listErr)
	if err != nil {
		d.logger.Warn("dashboard load incomplete", logging.Err(err))
		d.book.Warn("Dashboard: %s", content.UserMessage(err))
	}
	return overview, err
}
