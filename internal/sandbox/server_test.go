package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/insurecontent/internal/content"
)

var fixedNow = time.Date(2024, time.June, 5, 9, 0, 0, 0, time.UTC)

type harness struct {
	srv    *Server
	http   *httptest.Server
	client *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := NewServer(DefaultSettings(), WithClock(func() time.Time { return fixedNow }))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{srv: srv, http: ts, client: &http.Client{Jar: jar}}
}

func (h *harness) call(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.http.URL+APIPrefix+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	status := h.call(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    DefaultAccount.Email,
		"password": DefaultAccount.Password,
	}, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	h := newHarness(t)

	var errBody errorBody
	status := h.call(t, http.MethodGet, "/auth/me", nil, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = h.call(t, http.MethodPost, "/auth/login", map[string]string{"email": DefaultAccount.Email, "password": "nope"}, &errBody)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid email or password", errBody.Error)

	h.login(t)
	var session content.Session
	require.Equal(t, http.StatusOK, h.call(t, http.MethodGet, "/auth/me", nil, &session))
	assert.Equal(t, DefaultAccount.Email, session.Agent.Email)
	assert.Equal(t, TrialDays, session.TrialDaysRemaining)
	assert.True(t, session.SubscriptionActive)
}

func TestExpireSessionsRevokesCookies(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.srv.ExpireSessions()
	assert.Equal(t, http.StatusUnauthorized, h.call(t, http.MethodGet, "/auth/me", nil, nil))
}

func TestGenerateScheduleCreatesWeekThenReturnsExisting(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	req := map[string]any{
		"insurance_types": []string{"final_expense", "annuities"},
		"tone":            "friendly",
		"week_start_date": "2024-06-05",
	}
	var created struct {
		Message  string           `json:"message"`
		Schedule content.Schedule `json:"schedule"`
	}
	require.Equal(t, http.StatusCreated, h.call(t, http.MethodPost, "/content/generate-schedule", req, &created))
	assert.Equal(t, "2024-06-03", created.Schedule.WeekStartDate.String())
	assert.Equal(t, "2024-06-09", created.Schedule.WeekEndDate.String())
	require.Len(t, created.Schedule.Posts, 7)
	for i, post := range created.Schedule.SortedPosts() {
		assert.Equal(t, created.Schedule.WeekStartDate.AddDays(i), post.PostDate)
		assert.False(t, post.HasImage())
	}

	var again struct {
		Message  string           `json:"message"`
		Schedule content.Schedule `json:"schedule"`
	}
	require.Equal(t, http.StatusOK, h.call(t, http.MethodPost, "/content/generate-schedule", req, &again))
	assert.Equal(t, "Schedule already exists for this week", again.Message)
	assert.Equal(t, created.Schedule.ID, again.Schedule.ID)
	assert.Equal(t, 2, h.srv.Calls("generate-schedule"))
}

func TestGenerateScheduleValidation(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	cases := []struct {
		body map[string]any
		want string
	}{
		{body: map[string]any{"tone": "friendly"}, want: "Insurance types are required"},
		{body: map[string]any{"insurance_types": []string{"annuities"}}, want: "Tone is required"},
		{body: map[string]any{"insurance_types": []string{"annuities"}, "tone": "cheerful"}, want: "Invalid tone type"},
		{body: map[string]any{"insurance_types": []string{"auto"}, "tone": "friendly"}, want: "Invalid insurance type: auto"},
	}
	for _, c := range cases {
		var body errorBody
		assert.Equal(t, http.StatusBadRequest, h.call(t, http.MethodPost, "/content/generate-schedule", c.body, &body))
		assert.Equal(t, c.want, body.Error)
	}
}

func TestExpiredSubscriptionIsRejected(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.srv.SetSubscription(statusTrial, fixedNow.Add(-time.Hour))
	var body errorBody
	status := h.call(t, http.MethodPost, "/content/generate-schedule", map[string]any{
		"insurance_types": []string{"annuities"},
		"tone":            "friendly",
	}, &body)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Active subscription required", body.Error)

	var st content.SubscriptionStatus
	require.Equal(t, http.StatusOK, h.call(t, http.MethodGet, "/subscription/status", nil, &st))
	assert.Equal(t, statusExpired, st.Status)
	assert.False(t, st.CanGenerateContent)
}

func TestBatchReportsPerPostFailures(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	sched := h.srv.Seed(content.GenerationRequest{
		InsuranceTypes: []string{"annuities"},
		Tone:           "direct",
		WeekStartDate:  content.NewDate(2024, time.June, 3),
	})
	posts := sched.SortedPosts()
	for _, p := range posts[:3] {
		require.True(t, h.srv.AttachImage(p.ID))
	}
	h.srv.FailImage(posts[6].ID, "content policy violation")

	var result content.BatchImageResult
	require.Equal(t, http.StatusOK, h.call(t, http.MethodPost, "/images/generate-all-images/1", nil, &result))
	assert.Len(t, result.Generated, 3)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, posts[6].ID, result.Failed[0].PostID)
	assert.InDelta(t, 0.12, result.TotalCost, 0.0001)

	stored, ok := h.srv.Schedule(sched.ID)
	require.True(t, ok)
	assert.Equal(t, 6, stored.ImageCount())
}

func TestDownloadReturnsHexImage(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	sched := h.srv.Seed(content.GenerationRequest{
		InsuranceTypes: []string{"annuities"},
		Tone:           "direct",
		WeekStartDate:  content.NewDate(2024, time.June, 3),
	})
	post := sched.SortedPosts()[0]
	var errBody errorBody
	assert.Equal(t, http.StatusNotFound, h.call(t, http.MethodGet, "/images/download-image/1", nil, &errBody))
	assert.Equal(t, "No image URL found for this post", errBody.Error)

	require.True(t, h.srv.AttachImage(post.ID))
	var body map[string]string
	require.Equal(t, http.StatusOK, h.call(t, http.MethodGet, "/images/download-image/1", nil, &body))
	assert.Equal(t, "post_1_20240603.png", body["filename"])
	assert.Equal(t, "image/png", body["content_type"])
	assert.NotEmpty(t, body["image_data"])
}

func TestCheckoutActivatesPlan(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	var errBody errorBody
	assert.Equal(t, http.StatusNotFound, h.call(t, http.MethodPost, "/subscription/cancel-subscription", nil, &errBody))
	assert.Equal(t, "No active subscription found", errBody.Error)

	var session content.CheckoutSession
	require.Equal(t, http.StatusOK, h.call(t, http.MethodPost, "/subscription/create-checkout-session",
		map[string]string{"plan_type": "annual"}, &session))
	assert.NotEmpty(t, session.CheckoutURL)

	var st content.SubscriptionStatus
	require.Equal(t, http.StatusOK, h.call(t, http.MethodGet, "/subscription/status", nil, &st))
	assert.Equal(t, statusActive, st.Status)
	assert.Equal(t, int64(annualAmount), st.PlanAmount)
	assert.Equal(t, "year", st.PlanInterval)

	var change content.SubscriptionChange
	require.Equal(t, http.StatusOK, h.call(t, http.MethodPost, "/subscription/cancel-subscription", nil, &change))
	assert.Equal(t, "cancelled_at_period_end", change.Status)
}

func TestStartAndShutdown(t *testing.T) {
	srv := NewServer(Settings{Host: "127.0.0.1"})
	require.NoError(t, srv.Start(context.Background()))
	assert.NotEmpty(t, srv.Addr())

	resp, err := http.Get(srv.APIURL() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Empty(t, srv.Addr())
}
