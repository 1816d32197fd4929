package problem

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// FromValidationError converts a go-playground/validator error into a
// Validation problem describing the first failing field.
func FromValidationError(err error) *Problem {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return Validationf("field %s is required", fe.Field())
		}
		return Validationf("field %s failed validation on the %s rule", fe.Field(), fe.Tag())
	}
	return Validation("malformed request body")
}
