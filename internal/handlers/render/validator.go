package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("gpufraction", validateGPUFraction)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// validateGPUFraction accepts a decimal share of a single GPU: more than
// zero and at most one
func validateGPUFraction(fl validator.FieldLevel) bool {
	var fraction decimal.Decimal

	switch v := fl.Field().Interface().(type) {
	case decimal.Decimal:
		fraction = v
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return false
		}
		fraction = parsed
	default:
		return false
	}

	return fraction.IsPositive() && fraction.LessThanOrEqual(decimal.NewFromInt(1))
}
