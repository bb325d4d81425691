package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/insurecontent/internal/content"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func TestErrorBodyBecomesAPIError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to generate schedule",
			"details": "upstream timeout",
		})
	})
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.GenerateSchedule(context.Background(), content.GenerationRequest{InsuranceTypes: []string{"annuities"}, Tone: "direct"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "Failed to generate schedule", apiErr.Message)
	assert.Equal(t, "upstream timeout", apiErr.Details)
	assert.Equal(t, "Failed to generate schedule", content.RemoteMessage(err, "fallback"))
	_, parseErr := uuid.Parse(apiErr.RequestID)
	assert.NoError(t, parseErr)
}

func TestStatusSentinels(t *testing.T) {
	cases := []struct {
		status int
		target error
	}{
		{status: http.StatusUnauthorized, target: ErrUnauthorized},
		{status: http.StatusNotFound, target: ErrNotFound},
		{status: http.StatusForbidden, target: ErrSubscriptionRequired},
	}
	for _, c := range cases {
		err := &APIError{Status: c.status}
		assert.ErrorIs(t, err, c.target)
		assert.False(t, errors.Is(&APIError{Status: 500}, c.target))
	}
	assert.True(t, IsAuthError(&APIError{Status: 401}))
}

func TestUnauthorizedFiresHookAndClearsSession(t *testing.T) {
	var sawCookie atomic.Bool
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			writeJSON(w, http.StatusOK, map[string]any{"agent": map[string]any{"email": "a@b.co"}})
		default:
			if _, err := r.Cookie("session"); err == nil {
				sawCookie.Store(true)
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		}
	})
	var hooked int
	c, err := New(srv.URL, WithUnauthorizedHandler(func() { hooked++ }))
	require.NoError(t, err)

	session, err := c.Login(context.Background(), content.Credentials{Email: "a@b.co", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", session.Agent.Email)

	_, err = c.Me(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, sawCookie.Load())
	assert.Equal(t, 1, hooked)

	sawCookie.Store(false)
	_, err = c.ListSchedules(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, sawCookie.Load(), "cookie should be cleared after a 401")
	assert.Equal(t, 2, hooked)
}

func TestExpiredTokenFailsWithoutNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"schedules": []any{}})
	})
	now := time.Date(2024, time.June, 5, 12, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	var hooked bool
	c, err := New(srv.URL,
		WithToken(token),
		WithClock(func() time.Time { return now }),
		WithUnauthorizedHandler(func() { hooked = true }),
	)
	require.NoError(t, err)

	_, err = c.ListSchedules(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, hooked)
	assert.Zero(t, hits.Load())

	// the token was dropped, so the next call goes out unauthenticated
	_, err = c.ListSchedules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRequestCarriesIDAndBearer(t *testing.T) {
	var gotID, gotAuth string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(RequestIDHeader)
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{"tones": []map[string]string{{"value": "funny", "label": "Funny"}}})
	})
	var hooked bool
	c, err := New(srv.URL, WithToken("opaque-token"), WithUnauthorizedHandler(func() { hooked = true }))
	require.NoError(t, err)

	tones, err := c.ListTones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Funny", tones.Label("funny"))
	assert.NotEmpty(t, gotID)
	assert.Equal(t, "Bearer opaque-token", gotAuth)
	assert.False(t, hooked, "an opaque token is left for the server to judge")

	_, err = c.ListTones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer opaque-token", gotAuth, "the token should survive the first call")
}

func TestGenerateScheduleReportsExistingWeek(t *testing.T) {
	var body content.GenerationRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{
			"message":  "Schedule already exists for this week",
			"schedule": map[string]any{"id": 3, "week_start_date": "2024-06-03", "week_end_date": "2024-06-09", "posts": []any{}},
		})
	})
	c, err := New(srv.URL)
	require.NoError(t, err)

	generated, err := c.GenerateSchedule(context.Background(), content.GenerationRequest{
		InsuranceTypes: []string{"annuities"},
		Tone:           "direct",
		WeekStartDate:  content.NewDate(2024, time.June, 3),
	})
	require.NoError(t, err)
	assert.True(t, generated.Existing)
	assert.Equal(t, int64(3), generated.Schedule.ID)
	assert.Equal(t, "2024-06-03", body.WeekStartDate.String())
}

func TestDownloadImageDecodesHex(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/download-image/9", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{
			"filename":     "post_9_20240603.png",
			"image_data":   "89504e47",
			"content_type": "image/png",
		})
	})
	c, err := New(srv.URL)
	require.NoError(t, err)

	img, err := c.DownloadImage(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, img.Data)
	assert.Equal(t, "post_9_20240603.png", img.Filename)
}

func TestRateLimitHonoursContext(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"tones": []any{}})
	})
	c, err := New(srv.URL, WithRateLimit(0.001, 1))
	require.NoError(t, err)
	_, err = c.ListTones(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListTones(ctx)
	assert.Error(t, err)
}
