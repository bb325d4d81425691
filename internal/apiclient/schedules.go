package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kingrea/insurecontent/internal/content"
)

type insuranceTypesResponse struct {
	InsuranceTypes content.Options `json:"insurance_types"`
}

type tonesResponse struct {
	Tones content.Options `json:"tones"`
}

type scheduleResponse struct {
	Message  string           `json:"message"`
	Schedule content.Schedule `json:"schedule"`
}

type schedulesResponse struct {
	Schedules []content.Schedule `json:"schedules"`
}

// ListInsuranceTypes returns the insurance type enumeration.
func (c *Client) ListInsuranceTypes(ctx context.Context) (content.Options, error) {
	var resp insuranceTypesResponse
	if err := c.do(ctx, http.MethodGet, "/content/insurance-types", nil, &resp); err != nil {
		return nil, err
	}
	return resp.InsuranceTypes, nil
}

// ListTones returns the tone enumeration.
func (c *Client) ListTones(ctx context.Context) (content.Options, error) {
	var resp tonesResponse
	if err := c.do(ctx, http.MethodGet, "/content/tones", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tones, nil
}

// GenerateSchedule asks the API to write a week of posts. A 200 response
// means the week already had a schedule and that one is returned.
func (c *Client) GenerateSchedule(ctx context.Context, req content.GenerationRequest) (content.Generated, error) {
	var resp scheduleResponse
	status, err := c.send(ctx, http.MethodPost, "/content/generate-schedule", req, &resp)
	if err != nil {
		return content.Generated{}, err
	}
	return content.Generated{
		Schedule: resp.Schedule,
		Existing: status == http.StatusOK,
		Message:  resp.Message,
	}, nil
}

// GetCurrentWeekSchedule returns this week's schedule or an error matching
// ErrNotFound when none exists yet.
func (c *Client) GetCurrentWeekSchedule(ctx context.Context) (content.Schedule, error) {
	var resp scheduleResponse
	if err := c.do(ctx, http.MethodGet, "/content/current-week", nil, &resp); err != nil {
		return content.Schedule{}, err
	}
	return resp.Schedule, nil
}

// ListSchedules returns the agent's schedules, most recent first.
func (c *Client) ListSchedules(ctx context.Context) ([]content.Schedule, error) {
	var resp schedulesResponse
	if err := c.do(ctx, http.MethodGet, "/content/schedules", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Schedules, nil
}

// GetSchedule loads one schedule with its posts.
func (c *Client) GetSchedule(ctx context.Context, id int64) (content.Schedule, error) {
	var resp scheduleResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/content/schedules/%d", id), nil, &resp); err != nil {
		return content.Schedule{}, err
	}
	return resp.Schedule, nil
}

// DeleteSchedule removes a schedule and its posts.
func (c *Client) DeleteSchedule(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/content/schedules/%d", id), nil, nil)
}
