package service

import (
	"errors"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"toolcatalog/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("weburl", isWebURL)
	return v
}

var webSchemes = []string{"http", "https", "ftp"}

// isWebURL accepts absolute http, https and ftp URLs that name a host
func isWebURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Hostname() == "" {
		return false
	}
	return slices.Contains(webSchemes, strings.ToLower(u.Scheme))
}

// validateStruct runs the struct's validate tags and reports failures as a domain.ValidationError
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	return &domain.ValidationError{Fields: formatValidationErrors(validationErrors)}
}

func formatValidationErrors(errs validator.ValidationErrors) []domain.FieldError {
	fields := make([]domain.FieldError, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, domain.FieldError{
			Field:   fieldPath(e),
			Message: getErrorMessage(e),
		})
	}
	return fields
}

// fieldPath drops the root struct name, e.g. "ProductInput.reviewers[0].url" -> "reviewers[0].url"
func fieldPath(e validator.FieldError) string {
	if _, path, ok := strings.Cut(e.Namespace(), "."); ok {
		return path
	}
	return e.Field()
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "weburl":
		return "Must be an absolute http, https or ftp URL"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	case "lt":
		return "Value must be less than " + e.Param()
	default:
		return "Invalid value"
	}
}

// mergeValidationErrors combines field errors from several checks; nil when there are none
func mergeValidationErrors(errs ...error) error {
	var fields []domain.FieldError
	for _, err := range errs {
		if err == nil {
			continue
		}
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		fields = append(fields, ve.Fields...)
	}
	if len(fields) == 0 {
		return nil
	}
	return &domain.ValidationError{Fields: fields}
}
