package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/quejas/complaint-service/pkg/util/errorutil"
)

var validate = newValidator()

// normalizer is implemented by requests that clean their fields before validation.
type normalizer interface {
	Normalize()
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseBody decodes the JSON body into out and validates its struct tags.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if n, ok := out.(normalizer); ok {
		n.Normalize()
	}
	if err := validate.Struct(out); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		fields := make(map[string]any, len(validationErrs))
		for _, fe := range validationErrs {
			fields[fe.Field()] = fe.Tag()
		}
		return apperrors.NewValidationError("missing or invalid fields", map[string]any{"fields": fields})
	}
	return nil
}
