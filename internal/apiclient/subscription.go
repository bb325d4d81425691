package apiclient

import (
	"context"
	"net/http"

	"github.com/kingrea/insurecontent/internal/content"
)

// SubscriptionStatus returns the agent's current subscription snapshot.
func (c *Client) SubscriptionStatus(ctx context.Context) (content.SubscriptionStatus, error) {
	var status content.SubscriptionStatus
	if err := c.do(ctx, http.MethodGet, "/subscription/status", nil, &status); err != nil {
		return content.SubscriptionStatus{}, err
	}
	return status, nil
}

// Pricing lists the purchasable plans.
func (c *Client) Pricing(ctx context.Context) (content.Pricing, error) {
	var pricing content.Pricing
	if err := c.do(ctx, http.MethodGet, "/subscription/pricing", nil, &pricing); err != nil {
		return content.Pricing{}, err
	}
	return pricing, nil
}

// CreateCheckoutSession starts checkout for a plan type.
func (c *Client) CreateCheckoutSession(ctx context.Context, req content.CheckoutRequest) (content.CheckoutSession, error) {
	var session content.CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/subscription/create-checkout-session", req, &session); err != nil {
		return content.CheckoutSession{}, err
	}
	return session, nil
}

// BillingPortal opens a billing portal session.
func (c *Client) BillingPortal(ctx context.Context) (content.PortalSession, error) {
	var session content.PortalSession
	if err := c.do(ctx, http.MethodPost, "/subscription/portal", nil, &session); err != nil {
		return content.PortalSession{}, err
	}
	return session, nil
}

// CancelSubscription cancels at the end of the current period.
func (c *Client) CancelSubscription(ctx context.Context) (content.SubscriptionChange, error) {
	var change content.SubscriptionChange
	if err := c.do(ctx, http.MethodPost, "/subscription/cancel-subscription", nil, &change); err != nil {
		return content.SubscriptionChange{}, err
	}
	return change, nil
}

// ReactivateSubscription undoes a pending cancellation.
func (c *Client) ReactivateSubscription(ctx context.Context) (content.SubscriptionChange, error) {
	var change content.SubscriptionChange
	if err := c.do(ctx, http.MethodPost, "/subscription/reactivate-subscription", nil, &change); err != nil {
		return content.SubscriptionChange{}, err
	}
	return change, nil
}
