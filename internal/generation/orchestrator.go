// Package generation submits wizard drafts and owns the single in-flight
// "generating" flag.
package generation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/logbook"
	"github.com/kingrea/insurecontent/internal/logging"
)

// FallbackMessage is shown when a failed generation carried no message.
const FallbackMessage = "Failed to generate content. Please try again."

// ErrGenerationInProgress rejects a submit while another one is pending.
var ErrGenerationInProgress = errors.New("generation: a schedule is already being generated")

// Generator is the remote collaborator that writes a week of posts.
type Generator interface {
	GenerateSchedule(ctx context.Context, req content.GenerationRequest) (content.Generated, error)
}

// Sink receives the schedule produced by a successful submit.
type Sink interface {
	Replace(s content.Schedule)
}

// Orchestrator turns drafts into schedules.
type Orchestrator struct {
	gen    Generator
	sink   Sink
	book   *logbook.Logbook
	logger *slog.Logger

	mu         sync.Mutex
	generating bool
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithLogbook records submissions in the activity log.
func WithLogbook(book *logbook.Logbook) Option {
	return func(o *Orchestrator) {
		o.book = book
	}
}

// WithLogger routes diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an orchestrator. sink may be nil when the caller handles the
// returned schedule itself.
func New(gen Generator, sink Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{gen: gen, sink: sink, logger: logging.Discard()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Generating reports whether a submit is in flight.
func (o *Orchestrator) Generating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generating
}

// Submit validates req locally, then asks the generator for a schedule. On
// success the schedule replaces the sink's current one. On failure the
// returned *content.Failure carries the message to show; req is never
// modified, so the caller can retry with the same draft.
func (o *Orchestrator) Submit(ctx context.Context, req content.GenerationRequest) (content.Schedule, error) {
	const op = "generation.submit"
	log := o.logger.With(logging.Op(op))

	if err := req.Validate(); err != nil {
		return content.Schedule{}, err
	}
	if !o.begin() {
		return content.Schedule{}, ErrGenerationInProgress
	}
	defer o.end()

	o.book.Info("Generating %s schedule for week of %s (%d insurance types)",
		req.Tone, req.WeekStartDate, len(req.InsuranceTypes))
	generated, err := o.gen.GenerateSchedule(ctx, req)
	if err != nil {
		failure := content.NewFailure("generate schedule", err, FallbackMessage)
		log.Error("generate schedule failed", logging.Err(err))
		o.book.Error("Generation failed: %s", failure.Message)
		return content.Schedule{}, failure
	}

	sched := generated.Schedule
	if generated.Existing {
		o.book.Warn("A schedule already exists for the week of %s; opening it", sched.WeekStartDate)
	} else {
		o.book.Info("Generated schedule %d with %d posts", sched.ID, len(sched.Posts))
	}
	log.Info("schedule ready",
		slog.Int64("schedule_id", sched.ID),
		slog.Int("posts", len(sched.Posts)),
		slog.Bool("existing", generated.Existing),
	)
	if o.sink != nil {
		o.sink.Replace(sched)
	}
	return sched.Clone(), nil
}

func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.generating {
		return false
	}
	o.generating = true
	return true
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.generating = false
	o.mu.Unlock()
}
