package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"wellness/internal/types"
)

// ValidationError describes one failed field rule.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects every failed rule for a struct.
type ValidationResult struct {
	Errors []ValidationError
}

func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator with the domain tags:
//
//	hhmm      24-hour "HH:MM"
//	priority  urgent | high | normal | low
//	channel   push | in_app | email
//
// Field names in messages use the json tag so they match the wire format.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "hhmm", func(fl validator.FieldLevel) bool {
		return types.ValidTimeOfDay(fl.Field().String())
	})
	mustRegister(v, "priority", func(fl validator.FieldLevel) bool {
		return types.Priority(fl.Field().String()).IsValid()
	})
	mustRegister(v, "channel", func(fl validator.FieldLevel) bool {
		return types.Channel(fl.Field().String()).IsValid()
	})

	return &Validator{validate: v, logger: logger}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering %q validation: %v", tag, err))
	}
}

// ValidateStruct checks s and returns nil or a 400 *types.AppError whose
// code and message describe the first violation. Every violation is listed
// under details.validation_errors.
func (v *Validator) ValidateStruct(s any) error {
	result := v.Collect(s)
	if result.IsValid() {
		return nil
	}
	first := result.Errors[0]
	return types.NewAppErrorWithDetails(types.ErrorCode(first.Code), first.Message, nil,
		map[string]any{"validation_errors": result.Errors})
}

// Collect runs every rule on s and reports all failures in field order.
func (v *Validator) Collect(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError: s was not a struct. That is a programming
		// error, so report it loudly rather than as a client error.
		v.logger.Error("validator called with non-struct", "type", fmt.Sprintf("%T", s), "error", err)
		return ValidationResult{Errors: []ValidationError{{
			Code:    string(types.ErrCodeInternalUnexpected),
			Message: "request could not be validated",
		}}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fieldPath(fe)
		out = append(out, ValidationError{
			Field:   field,
			Code:    tagToErrorCode(fe.Tag()),
			Message: messageFor(field, fe),
		})
	}
	return ValidationResult{Errors: out}
}

// fieldPath drops the root struct name: "preferences[2].quiet_start".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func tagToErrorCode(tag string) string {
	switch tag {
	case "required", "required_without", "required_with":
		return string(types.ErrCodeValidationMissingField)
	case "hhmm":
		return string(types.ErrCodeValidationInvalidQuietTime)
	case "priority":
		return string(types.ErrCodeValidationInvalidPriority)
	case "channel":
		return string(types.ErrCodeValidationInvalidChannel)
	default:
		return string(types.ErrCodeValidationInvalidField)
	}
}

func messageFor(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without", "required_with":
		return field + " is required"
	case "hhmm":
		return fmt.Sprintf("%s must be in HH:MM 24-hour format, got %q", field, fe.Value())
	case "priority":
		return fmt.Sprintf("%s must be one of urgent, high, normal, low, got %q", field, fe.Value())
	case "channel":
		return fmt.Sprintf("%s must be one of push, in_app, email, got %q", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
