package sandbox

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/kingrea/insurecontent/internal/content"
)

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, message, details string) {
	render.Status(r, status)
	render.JSON(w, r, errorBody{Error: message, Details: details})
}

func respond(w http.ResponseWriter, r *http.Request, status int, payload any) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := render.DecodeJSON(r.Body, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func requestBase(r *http.Request) string {
	return "http://" + r.Host
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "Email and password are required", "")
		return
	}
	s.data.mu.Lock()
	account := s.data.account
	s.data.mu.Unlock()
	if !strings.EqualFold(strings.TrimSpace(req.Email), account.Email) || req.Password != account.Password {
		s.fail(w, r, http.StatusUnauthorized, "Invalid email or password", "")
		return
	}
	token, err := s.issueToken(account.Email)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, "Login failed", err.Error())
		return
	}
	setSessionCookie(w, token)
	s.data.mu.Lock()
	session := s.data.session(s.now())
	s.data.mu.Unlock()
	respond(w, r, http.StatusOK, map[string]any{
		"message":              "Login successful",
		"agent":                session.Agent,
		"trial_days_remaining": session.TrialDaysRemaining,
		"subscription_active":  session.SubscriptionActive,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	respond(w, r, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.data.mu.Lock()
	session := s.data.session(s.now())
	s.data.mu.Unlock()
	respond(w, r, http.StatusOK, session)
}

func optionList(values []string) []content.Option {
	out := make([]content.Option, 0, len(values))
	for _, v := range values {
		out = append(out, content.Option{Value: v, Label: content.Humanize(v)})
	}
	return out
}

func (s *Server) handleInsuranceTypes(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]any{"insurance_types": optionList(insuranceTypes)})
}

func (s *Server) handleTones(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]any{"tones": optionList(tones)})
}

type generateRequest struct {
	InsuranceTypes   []string `json:"insurance_types" validate:"required,min=1"`
	Tone             string   `json:"tone" validate:"required"`
	AdditionalPrompt string   `json:"additional_prompt"`
	WeekStartDate    string   `json:"week_start_date"`
}

var generateMessages = map[string]string{
	"InsuranceTypes": "Insurance types are required",
	"Tone":           "Tone is required",
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (s *Server) handleGenerateSchedule(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		msg := "Invalid request"
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			if m, ok := generateMessages[fieldErrs[0].Field()]; ok {
				msg = m
			}
		}
		s.fail(w, r, http.StatusBadRequest, msg, "")
		return
	}
	if !contains(tones, req.Tone) {
		s.fail(w, r, http.StatusBadRequest, "Invalid tone type", "")
		return
	}
	for _, t := range req.InsuranceTypes {
		if !contains(insuranceTypes, t) {
			s.fail(w, r, http.StatusBadRequest, "Invalid insurance type: "+t, "")
			return
		}
	}
	week := content.DateOf(s.now())
	if req.WeekStartDate != "" {
		parsed, err := content.ParseDate(req.WeekStartDate)
		if err != nil {
			s.fail(w, r, http.StatusBadRequest, "Invalid week start date", err.Error())
			return
		}
		week = parsed
	}
	week = content.WeekStart(week)

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	s.data.count("generate-schedule")
	if existing, ok := s.data.scheduleForWeek(week); ok {
		respond(w, r, http.StatusOK, map[string]any{
			"message":  "Schedule already exists for this week",
			"schedule": existing.Clone(),
		})
		return
	}
	if s.data.failGenerationArmed {
		msg := s.data.failGeneration
		s.data.failGenerationArmed = false
		s.data.failGeneration = ""
		s.fail(w, r, http.StatusInternalServerError, msg, "content writer unavailable")
		return
	}
	sched := s.data.create(content.GenerationRequest{
		InsuranceTypes:   req.InsuranceTypes,
		Tone:             req.Tone,
		AdditionalPrompt: req.AdditionalPrompt,
		WeekStartDate:    week,
	}, s.now())
	s.logger.Info("sandbox generated schedule", slog.Int64("schedule_id", sched.ID))
	respond(w, r, http.StatusCreated, map[string]any{
		"message":  "Content schedule generated successfully",
		"schedule": sched,
	})
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	s.data.mu.Lock()
	schedules := s.data.list()
	s.data.mu.Unlock()
	respond(w, r, http.StatusOK, map[string]any{"schedules": schedules})
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		s.fail(w, r, http.StatusNotFound, "Schedule not found", "")
		return
	}
	s.data.mu.Lock()
	sched, found := s.data.schedules[id]
	var out content.Schedule
	if found {
		out = sched.Clone()
	}
	s.data.mu.Unlock()
	if !found {
		s.fail(w, r, http.StatusNotFound, "Schedule not found", "")
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"schedule": out})
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	s.data.count("delete-schedule")
	if _, found := s.data.schedules[id]; !ok || !found {
		s.fail(w, r, http.StatusNotFound, "Schedule not found", "")
		return
	}
	delete(s.data.schedules, id)
	respond(w, r, http.StatusOK, map[string]string{"message": "Schedule deleted successfully"})
}

func (s *Server) handleCurrentWeek(w http.ResponseWriter, r *http.Request) {
	start := content.WeekStart(content.DateOf(s.now()))
	s.data.mu.Lock()
	sched, found := s.data.scheduleForWeek(start)
	var out content.Schedule
	if found {
		out = sched.Clone()
	}
	s.data.mu.Unlock()
	if !found {
		respond(w, r, http.StatusNotFound, map[string]string{
			"message":    "No schedule found for current week",
			"week_start": start.String(),
			"week_end":   content.WeekEnd(start).String(),
		})
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"schedule": out})
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	postID, ok := idParam(r, "postID")
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	s.data.count("generate-image")
	sched, idx, found := s.data.postByID(postID)
	if !ok || !found {
		s.fail(w, r, http.StatusNotFound, "Post not found", "")
		return
	}
	post := &sched.Posts[idx]
	if post.HasImage() {
		respond(w, r, http.StatusOK, content.ImageResult{
			Message:  "Image already exists for this post",
			ImageURL: post.ImageURL,
			PostID:   postID,
		})
		return
	}
	if msg, failing := s.data.failImage[postID]; failing {
		s.fail(w, r, http.StatusInternalServerError, msg, "image model unavailable")
		return
	}
	post.ImageURL = s.data.imageURL(requestBase(r), postID)
	respond(w, r, http.StatusOK, content.ImageResult{
		Message:  "Image generated successfully",
		ImageURL: post.ImageURL,
		PostID:   postID,
	})
}

func (s *Server) handleGenerateAllImages(w http.ResponseWriter, r *http.Request) {
	schedID, ok := idParam(r, "scheduleID")
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	s.data.count("generate-all-images")
	sched, found := s.data.schedules[schedID]
	if !ok || !found {
		s.fail(w, r, http.StatusNotFound, "Schedule not found", "")
		return
	}
	if s.data.failBatch != "" {
		s.fail(w, r, http.StatusInternalServerError, s.data.failBatch, "")
		return
	}
	result := content.BatchImageResult{
		Generated: []content.GeneratedImage{},
		Failed:    []content.FailedImage{},
	}
	missing := 0
	for i := range sched.Posts {
		post := &sched.Posts[i]
		if post.HasImage() {
			continue
		}
		missing++
		if msg, failing := s.data.failImage[post.ID]; failing {
			result.Failed = append(result.Failed, content.FailedImage{PostID: post.ID, Error: msg})
			continue
		}
		post.ImageURL = s.data.imageURL(requestBase(r), post.ID)
		result.Generated = append(result.Generated, content.GeneratedImage{PostID: post.ID, ImageURL: post.ImageURL})
	}
	if missing == 0 {
		respond(w, r, http.StatusOK, map[string]string{"message": "No posts found or all posts already have images"})
		return
	}
	result.Message = fmt.Sprintf("Generated %d images successfully", len(result.Generated))
	result.TotalCost = float64(len(result.Generated)) * imageCost
	respond(w, r, http.StatusOK, result)
}

type regenerateRequest struct {
	ImageDescription string `json:"image_description"`
}

func (s *Server) handleRegenerateImage(w http.ResponseWriter, r *http.Request) {
	postID, ok := idParam(r, "postID")
	var req regenerateRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	s.data.count("regenerate-image")
	sched, idx, found := s.data.postByID(postID)
	if !ok || !found {
		s.fail(w, r, http.StatusNotFound, "Post not found", "")
		return
	}
	post := &sched.Posts[idx]
	if desc := strings.TrimSpace(req.ImageDescription); desc != "" {
		post.ImageDescription = desc
	}
	if msg, failing := s.data.failImage[postID]; failing {
		s.fail(w, r, http.StatusInternalServerError, msg, "image model unavailable")
		return
	}
	post.ImageURL = s.data.imageURL(requestBase(r), postID)
	respond(w, r, http.StatusOK, content.ImageResult{
		Message:  "Image regenerated successfully",
		ImageURL: post.ImageURL,
		PostID:   postID,
	})
}

func (s *Server) handleDownloadImage(w http.ResponseWriter, r *http.Request) {
	postID, ok := idParam(r, "postID")
	s.data.mu.Lock()
	sched, idx, found := s.data.postByID(postID)
	var post content.Post
	if found {
		post = sched.Posts[idx]
	}
	s.data.mu.Unlock()
	if !ok || !found {
		s.fail(w, r, http.StatusNotFound, "Post not found", "")
		return
	}
	if !post.HasImage() {
		s.fail(w, r, http.StatusNotFound, "No image URL found for this post", "")
		return
	}
	respond(w, r, http.StatusOK, map[string]string{
		"message":      "Image ready for download",
		"filename":     fmt.Sprintf("post_%d_%s.png", postID, post.PostDate.Time().Format("20060102")),
		"image_data":   hex.EncodeToString(placeholderPNG),
		"content_type": "image/png",
	})
}

func (s *Server) handleStaticImage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(placeholderPNG)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.data.mu.Lock()
	status := s.data.status(s.now())
	s.data.mu.Unlock()
	respond(w, r, http.StatusOK, status)
}

func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, pricing)
}

type checkoutRequest struct {
	PlanType string `json:"plan_type" validate:"omitempty,oneof=monthly annual"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "Invalid plan type", err.Error())
		return
	}
	amount, interval, period := int64(monthlyAmount), "month", 30*24*time.Hour
	if req.PlanType == content.PlanAnnual {
		amount, interval, period = annualAmount, "year", 365*24*time.Hour
	}
	now := s.now()
	sessionID := "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	// checkout completes immediately in the sandbox
	s.data.mu.Lock()
	b := &s.data.billing
	if b.customerID == "" {
		b.customerID = "cus_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	}
	b.status = statusActive
	b.subscriptionID = "sub_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	b.planAmount = amount
	b.planInterval = interval
	b.startDate = now
	b.periodEnd = now.Add(period)
	b.cancelAtPeriodEnd = false
	s.data.mu.Unlock()

	respond(w, r, http.StatusOK, content.CheckoutSession{
		CheckoutURL: "https://checkout.sandbox.invalid/pay/" + sessionID,
		SessionID:   sessionID,
	})
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	s.data.mu.Lock()
	customer := s.data.billing.customerID
	s.data.mu.Unlock()
	if customer == "" {
		s.fail(w, r, http.StatusNotFound, "No Stripe customer found", "")
		return
	}
	respond(w, r, http.StatusOK, content.PortalSession{
		PortalURL: "https://billing.sandbox.invalid/portal/" + customer,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if s.data.billing.subscriptionID == "" {
		s.fail(w, r, http.StatusNotFound, "No active subscription found", "")
		return
	}
	s.data.billing.cancelAtPeriodEnd = true
	respond(w, r, http.StatusOK, content.SubscriptionChange{
		Message: "Subscription will be cancelled at the end of the current period",
		Status:  "cancelled_at_period_end",
	})
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if s.data.billing.subscriptionID == "" {
		s.fail(w, r, http.StatusNotFound, "No subscription found", "")
		return
	}
	s.data.billing.cancelAtPeriodEnd = false
	respond(w, r, http.StatusOK, content.SubscriptionChange{
		Message: "Subscription reactivated successfully",
		Status:  statusActive,
	})
}

var pricing = content.Pricing{
	Plans: []content.Plan{
		{
			Name:         "Monthly Plan",
			Price:        monthlyAmount,
			PriceDisplay: "$29.97",
			Interval:     "month",
			Features: []string{
				"Unlimited weekly content generation",
				"AI-powered image creation",
				"Multiple insurance types",
				"Various tone options",
				"Copy & share functionality",
				"Email support",
			},
		},
		{
			Name:         "Annual Plan",
			Price:        annualAmount,
			PriceDisplay: "$299.97",
			Interval:     "year",
			Savings:      "$60",
			Features: []string{
				"Everything in Monthly Plan",
				"Save $60 per year",
				"Priority support",
				"Early access to new features",
			},
		},
	},
	Trial: content.TrialOffer{
		Duration:    TrialDays,
		Description: "7-day free trial with full access to all features",
	},
}

// placeholderPNG is a 1x1 transparent PNG.
var placeholderPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
