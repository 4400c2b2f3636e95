package validator

import (
	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps go-playground/validator. It doubles as the echo
// request validator and the schema check for extraction payloads.
type CustomValidator struct {
	v *validator.Validate
}

// New creates a new CustomValidator instance
func New() *CustomValidator {
	v := validator.New()
	return &CustomValidator{v: v}
}

// Validate performs struct validation (echo.Validator interface)
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// Struct validates any tagged struct directly
func (cv *CustomValidator) Struct(i interface{}) error {
	return cv.v.Struct(i)
}
