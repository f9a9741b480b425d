package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rpupo63/portfolio-cms/errs"
	"github.com/rpupo63/portfolio-cms/models"
)

// newValidator returns a validator that reports json field names and knows the
// notblank and category tags.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})

	return v
}

// validationError turns the first validator failure into a 400 naming the field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errs.NewBadRequestError(err.Error())
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return errs.NewMissingRequiredFieldError(fe.Field())
	case "category":
		return errs.NewInvalidFieldError(fe.Field(), "must be one of project, study, record")
	case "ip":
		return errs.NewInvalidFieldError(fe.Field(), "must be an IP address")
	default:
		return errs.NewInvalidFieldError(fe.Field(), "failed "+fe.Tag()+" validation")
	}
}
