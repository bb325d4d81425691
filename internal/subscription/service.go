package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/logbook"
	"github.com/kingrea/insurecontent/internal/logging"
)

// Messages shown when a failed call carried none.
const (
	LoadFallback     = "Failed to load subscription"
	CheckoutFallback = "Failed to start checkout"
	PortalFallback   = "Failed to open billing portal"
	UpdateFallback   = "Failed to update subscription"
)

// ErrNotCancelled is returned when the user declines the cancel prompt.
var ErrNotCancelled = errors.New("subscription: cancellation not confirmed")

// Client is the part of the API the service calls.
type Client interface {
	SubscriptionStatus(ctx context.Context) (content.SubscriptionStatus, error)
	Pricing(ctx context.Context) (content.Pricing, error)
	CreateCheckoutSession(ctx context.Context, req content.CheckoutRequest) (content.CheckoutSession, error)
	BillingPortal(ctx context.Context) (content.PortalSession, error)
	CancelSubscription(ctx context.Context) (content.SubscriptionChange, error)
	ReactivateSubscription(ctx context.Context) (content.SubscriptionChange, error)
}

// Clipboard receives checkout and portal links so the user can open them
// in a browser.
type Clipboard interface {
	WriteAll(text string) error
}

// Snapshot is a status and the pricing fetched alongside it.
type Snapshot struct {
	Status  content.SubscriptionStatus
	Pricing content.Pricing
	View    View
}

// Service runs the subscription calls.
type Service struct {
	client    Client
	clipboard Clipboard
	book      *logbook.Logbook
	logger    *slog.Logger
	clock     func() time.Time
}

// Option customizes the service.
type Option func(*Service)

// WithClipboard copies checkout and portal links.
func WithClipboard(cb Clipboard) Option {
	return func(s *Service) {
		s.clipboard = cb
	}
}

// WithLogbook records actions in the activity log.
func WithLogbook(book *logbook.Logbook) Option {
	return func(s *Service) {
		s.book = book
	}
}

// WithLogger routes diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock controls "today" for trial countdowns.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService builds the service.
func NewService(client Client, opts ...Option) *Service {
	s := &Service{client: client, logger: logging.Discard(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Now is the service clock.
func (s *Service) Now() time.Time {
	return s.clock()
}

// Load fetches status and pricing together.
func (s *Service) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		status, err := s.client.SubscriptionStatus(gctx)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		snap.Status = status
		return nil
	})
	g.Go(func() error {
		pricing, err := s.client.Pricing(gctx)
		if err != nil {
			return fmt.Errorf("pricing: %w", err)
		}
		snap.Pricing = pricing
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("load subscription failed", logging.Err(err))
		return Snapshot{}, content.NewFailure("load subscription", err, LoadFallback)
	}
	snap.View = Derive(snap.Status, s.clock())
	return snap, nil
}

// Checkout starts checkout for planType and returns the payment link. The
// link is also copied to the clipboard when one is configured; a clipboard
// failure is only logged.
func (s *Service) Checkout(ctx context.Context, planType string) (content.CheckoutSession, error) {
	req := content.CheckoutRequest{PlanType: planType}
	if err := req.Validate(); err != nil {
		return content.CheckoutSession{}, err
	}
	session, err := s.client.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Error("create checkout session failed", slog.String("plan", planType), logging.Err(err))
		failure := content.NewFailure("checkout", err, CheckoutFallback)
		s.book.Error("Checkout failed: %s", failure.Message)
		return content.CheckoutSession{}, failure
	}
	s.book.Info("Checkout started for the %s plan", planType)
	s.copyLink(session.CheckoutURL)
	return session, nil
}

// Portal opens a billing portal session and returns its link.
func (s *Service) Portal(ctx context.Context) (content.PortalSession, error) {
	session, err := s.client.BillingPortal(ctx)
	if err != nil {
		s.logger.Error("billing portal failed", logging.Err(err))
		failure := content.NewFailure("billing portal", err, PortalFallback)
		s.book.Error("Billing portal: %s", failure.Message)
		return content.PortalSession{}, failure
	}
	s.copyLink(session.PortalURL)
	return session, nil
}

// Cancel schedules cancellation at the end of the period once confirm
// agrees. Declining returns ErrNotCancelled without a call.
func (s *Service) Cancel(ctx context.Context, confirm content.Confirmer) (content.SubscriptionChange, error) {
	if confirm == nil || !confirm.Confirm("Cancel your subscription at the end of the current period?") {
		return content.SubscriptionChange{}, ErrNotCancelled
	}
	change, err := s.client.CancelSubscription(ctx)
	if err != nil {
		s.logger.Error("cancel subscription failed", logging.Err(err))
		return content.SubscriptionChange{}, content.NewFailure("cancel subscription", err, UpdateFallback)
	}
	s.book.Info("%s", change.Message)
	return change, nil
}

// Reactivate undoes a pending cancellation.
func (s *Service) Reactivate(ctx context.Context) (content.SubscriptionChange, error) {
	change, err := s.client.ReactivateSubscription(ctx)
	if err != nil {
		s.logger.Error("reactivate subscription failed", logging.Err(err))
		return content.SubscriptionChange{}, content.NewFailure("reactivate subscription", err, UpdateFallback)
	}
	s.book.Info("%s", change.Message)
	return change, nil
}

func (s *Service) copyLink(link string) {
	if s.clipboard == nil || link == "" {
		return
	}
	if err := s.clipboard.WriteAll(link); err != nil {
		s.logger.Warn("copy link failed", logging.Err(err))
	}
}
