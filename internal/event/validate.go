package event

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hpungsan/daylog/internal/errors"
)

// MaxDurationSeconds bounds declared durations and idle lengths to one week.
const MaxDurationSeconds = 7 * 24 * 60 * 60

// Per-kind views of the payload. Only the fields a kind requires are listed.

type activityFields struct {
	App             string  `json:"app" validate:"required"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gte=0,lte=604800"`
}

type browserFields struct {
	Domain          string  `json:"domain" validate:"required_without=URL"`
	URL             string  `json:"url" validate:"omitempty,url"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gte=0,lte=604800"`
}

type meetingFields struct {
	Meeting         string  `json:"meeting" validate:"required"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gte=0,lte=604800"`
}

type manualFields struct {
	Title           string  `json:"title" validate:"required"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gt=0,lte=604800"`
}

type idleFields struct {
	IdleSeconds float64 `json:"idle_seconds" validate:"gte=0,lte=604800"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that e carries the fields its type requires.
// It returns a MALFORMED_EVENT error describing the first problem found.
func Validate(e RawEvent) error {
	if !e.Type.Valid() {
		return errors.NewMalformedEvent(string(e.Type), "unknown event type")
	}
	if e.Timestamp.IsZero() {
		return errors.NewMalformedEvent(string(e.Type), "timestamp is required")
	}

	p := e.Payload
	var fields any
	switch e.Kind() {
	case KindActivity:
		fields = activityFields{App: strings.TrimSpace(p.App), DurationSeconds: p.DurationSeconds}
	case KindBrowser:
		fields = browserFields{Domain: strings.TrimSpace(p.Domain), URL: strings.TrimSpace(p.URL), DurationSeconds: p.DurationSeconds}
	case KindMeeting:
		fields = meetingFields{Meeting: strings.TrimSpace(p.Meeting), DurationSeconds: p.DurationSeconds}
	case KindManual:
		fields = manualFields{Title: strings.TrimSpace(p.Title), DurationSeconds: p.DurationSeconds}
	case KindIdle:
		fields = idleFields{IdleSeconds: p.IdleSeconds}
	}

	if err := validate.Struct(fields); err != nil {
		return errors.NewMalformedEvent(string(e.Type), describe(err))
	}

	// A URL that parses but has no host cannot stand in for the domain.
	if e.Kind() == KindBrowser && e.Domain() == "" {
		return errors.NewMalformedEvent(string(e.Type), "domain is required")
	}
	return nil
}

// describe turns the first validation failure into a short reason.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_without":
		return fmt.Sprintf("%s or url is required", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be an absolute URL", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must not be negative", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be positive", fe.Field())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
