// internal/app/system/inputval/inputval.go
package inputval

import (
	"reflect"
	"strings"

	"github.com/dalemusser/courierhub/internal/app/system/apperr"
	"github.com/dalemusser/courierhub/internal/domain/models"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return primitive.IsValidObjectID(fl.Field().String())
	})
	_ = v.RegisterValidation("entitytype", func(fl validator.FieldLevel) bool {
		return models.EntityType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("paymenttype", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == models.PaymentTypeFreightPrepaid || s == models.PaymentTypeToPay
	})
	_ = v.RegisterValidation("officerole", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == models.RoleAdmin || s == models.RoleStaff
	})
	return v
}

// Validate runs struct-tag validation on a request DTO. Failures come back
// marked apperr.ErrValidation with one detail per offending field.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return apperr.WithError(err).
			WithHint("Request validation failed").
			Mark(apperr.ErrValidation)
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = describe(fe)
	}
	return apperr.WithError(err).
		WithHint("Request validation failed").
		WithDetails(details).
		Mark(apperr.ErrValidation)
}

func asValidationErrors(err error, out *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*out = v
	}
	return ok
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "objectid":
		return "must be a valid id"
	case "entitytype":
		return "must be corporate or office_user"
	case "paymenttype":
		return "must be FP or TP"
	case "officerole":
		return "must be admin or staff"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gtefield":
		return "must not be less than " + fe.Param()
	default:
		return "is invalid"
	}
}

// IsValidEmail reports whether s is a bare email address.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return validate.Var(s, "email") == nil
}
