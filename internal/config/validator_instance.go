package config

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	validatorNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	refIDPattern         = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)
)

// validatorInstance configures and returns the shared validator instance used across the config package.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return strings.ToLower(field.Name)
			}
			return name
		})

		_ = v.RegisterValidation("validator_name", func(fl validator.FieldLevel) bool {
			return validatorNamePattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("ref_id", func(fl validator.FieldLevel) bool {
			return refIDPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}
