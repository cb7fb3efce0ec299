package middleware

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"genai-chat/internal/api/errors"
)

// Validator interface for domain validation
type Validator interface {
	Validate() error
}

// ValidateRequest binds the JSON body into req, checks its binding tags and
// then, when req implements Validator, its domain rules.
func ValidateRequest(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		validationErrors := make(map[string]string)

		var validationErrs validator.ValidationErrors
		if stderrors.As(err, &validationErrs) {
			for _, fieldError := range validationErrs {
				// ChatRequest.Messages[0].Role -> messages[0].role
				_, field, _ := strings.Cut(fieldError.Namespace(), ".")
				field = strings.ToLower(field)
				validationErrors[field] = describe(fieldError)
			}
		} else {
			validationErrors["request"] = "invalid JSON format"
		}

		return errors.NewValidationError("Validation failed", validationErrors)
	}

	if v, ok := req.(Validator); ok {
		if err := v.Validate(); err != nil {
			return errors.NewValidationError("Validation failed", map[string]string{"request": err.Error()})
		}
	}

	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s entries", fe.Param())
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid"
	}
}
