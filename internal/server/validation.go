package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/AbassKoyang/swirl-backend/internal/blog"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	validatorsOnce sync.Once
	validatorsErr  error
)

// registerValidators installs the custom binding rules on gin's validator.
func registerValidators() error {
	validatorsOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validatorsErr = fmt.Errorf("server: unexpected binding validator %T", binding.Validator.Engine())
			return
		}
		validatorsErr = engine.RegisterValidation("reaction_type", func(field validator.FieldLevel) bool {
			_, err := blog.ParseReactionType(field.Field().String())
			return err == nil
		})
	})
	return validatorsErr
}

// bindJSON decodes and validates the request body, reporting failures as
// invalid requests.
func bindJSON(c *gin.Context, target any) error {
	if err := c.ShouldBindJSON(target); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return fmt.Errorf("%w: %s", errInvalidRequest, describeValidation(validationErrs))
		}
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

func describeValidation(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "validation failed"
	}
	first := errs[0]
	if first.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", first.Field(), first.Tag(), first.Param())
	}
	return fmt.Sprintf("%s failed %s", first.Field(), first.Tag())
}
