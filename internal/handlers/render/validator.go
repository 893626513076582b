package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("msisdn", validateMSISDN)
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

// validateMSISDN accepts a subscriber number as digits, optionally with a
// leading plus: 08031234567 or +2348031234567
func validateMSISDN(fl validator.FieldLevel) bool {
	number := fl.Field().String()
	number = strings.TrimPrefix(number, "+")

	if len(number) < 7 || len(number) > 15 {
		return false
	}

	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return false
		}
	}
	return true
}
