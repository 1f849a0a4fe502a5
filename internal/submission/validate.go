// internal/submission/validate.go
//
// Intake – submission pipeline: draft validation.
//
// Context
//   Validate is the first gate of Submit.  It is pure: no I/O, no logging,
//   and no mutation, so it can be called freely by handlers that want to
//   pre-check a draft.  Every rule is evaluated and every failure surfaces
//   together, one message per field.
//
// Workflow
//   •  The draft is copied into a tagged struct and checked by
//      go-playground/validator with three custom rules: notblank,
//      contactemail, and phonedigits.
//   •  Each validator.FieldError is translated into a user-facing message
//      keyed by the JSON field name.
//   •  An empty ValidationErrors means the draft is submittable.
//
//------------------------------------------------------------------------------

package submission

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationErrors maps a field name to a human-readable message.  It
// satisfies error so the orchestrator and HTTP layer can pass it through
// errors.As.
type ValidationErrors map[string]string

func (ve ValidationErrors) Error() string { return "submission validation failed" }

// IsValidationError reports whether err carries ValidationErrors.
func IsValidationError(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}

// draftInput is the validator-facing view of a Draft plus attachment count.
type draftInput struct {
	Name        string `json:"name"        validate:"notblank"`
	Email       string `json:"email"       validate:"required,contactemail"`
	Phone       string `json:"phone"       validate:"phonedigits"`
	Subject     string `json:"subject"     validate:"notblank"`
	Description string `json:"description" validate:"notblank"`
	Photos      int    `json:"photos"      validate:"min=0,max=6"`
}

// Minimal structural check: something@something.something.  Not RFC 5322.
var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

var messages = map[string]string{
	"name.notblank":        "Name is required",
	"email.required":       "Email is required",
	"email.contactemail":   "Please enter a valid email address",
	"phone.phonedigits":    "Phone number must be 10 digits",
	"subject.notblank":     "Subject is required",
	"description.notblank": "Description is required",
	"photos.min":           "Photo count cannot be negative",
	"photos.max":           "You can upload a maximum of 6 photos",
}

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return strings.TrimSpace(name)
	})
	mustRegister(val, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	mustRegister(val, "contactemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	mustRegister(val, "phonedigits", func(fl validator.FieldLevel) bool {
		return len(digitsOnly(fl.Field().String())) == localDigits
	})
	return val
}

func mustRegister(val *validator.Validate, tag string, fn validator.Func) {
	if err := val.RegisterValidation(tag, fn); err != nil {
		panic("submission: register " + tag + ": " + err.Error())
	}
}

// Validate checks d and the current attachment count.  The result is empty
// when the draft may be submitted.
func Validate(d Draft, photoCount int) ValidationErrors {
	in := draftInput{
		Name:        d.Name,
		Email:       d.Email,
		Phone:       d.Phone,
		Subject:     d.Subject,
		Description: d.Description,
		Photos:      photoCount,
	}

	errs := ValidationErrors{}
	err := v.Struct(in)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// Only InvalidValidationError remains, which a struct value never triggers.
		errs[""] = "Invalid input."
		return errs
	}
	for _, fe := range fieldErrs {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "Invalid input."
		}
		errs[fe.Field()] = msg
	}
	return errs
}
