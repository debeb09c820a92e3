package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

var promoCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Promo codes: letters, digits, dash and underscore
	validate.RegisterValidation("promo_code", func(fl validator.FieldLevel) bool {
		return promoCodePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})

	// Signed integers that must not be zero (ledger deltas)
	validate.RegisterValidation("nonzero", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() != 0
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string)
	for _, err := range validationErrors {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "promo_code":
			errors[field] = "Code must be 3-32 letters, digits, dashes or underscores"
		case "nonzero":
			errors[field] = "Value must not be zero"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}
