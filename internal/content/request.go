package content

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator"
)

// Plan types accepted by the checkout endpoint.
const (
	PlanMonthly = "monthly"
	PlanAnnual  = "annual"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// GenerationRequest asks the API for one week of posts.
type GenerationRequest struct {
	InsuranceTypes   []string `json:"insurance_types" validate:"required,min=1,dive,notblank"`
	Tone             string   `json:"tone" validate:"notblank"`
	AdditionalPrompt string   `json:"additional_prompt"`
	WeekStartDate    Date     `json:"week_start_date"`
}

// Validate runs the submit preconditions locally.
func (r GenerationRequest) Validate() error {
	return structError(validate.Struct(r), requestMessages)
}

// CheckoutRequest starts a checkout session for one plan.
type CheckoutRequest struct {
	PlanType string `json:"plan_type" validate:"required,oneof=monthly annual"`
}

// Validate checks the plan type.
func (r CheckoutRequest) Validate() error {
	return structError(validate.Struct(r), checkoutMessages)
}

// Credentials are sent to the login endpoint.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate checks both fields are present.
func (c Credentials) Validate() error {
	return structError(validate.Struct(c), credentialMessages)
}

var requestMessages = map[string]string{
	"insurance_types": "Select at least one insurance type",
	"tone":            "Select a tone",
}

var checkoutMessages = map[string]string{
	"plan_type": "Choose the monthly or annual plan",
}

var credentialMessages = map[string]string{
	"email":    "Enter a valid email address",
	"password": "Enter your password",
}

func structError(err error, messages map[string]string) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("content: validate: %w", err)
	}
	field := fieldErrs[0].Field()
	if idx := strings.IndexByte(field, '['); idx >= 0 {
		field = field[:idx]
	}
	msg, ok := messages[field]
	if !ok {
		msg = fmt.Sprintf("%s is invalid", Humanize(field))
	}
	return &ValidationError{Field: field, Message: msg}
}
