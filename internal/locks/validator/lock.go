package validator

import (
	"fmt"
	"strings"

	lockserrors "skedit/internal/locks/errors"
	"skedit/pkg/logger"
	"skedit/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type LockValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewLockValidator(log *logger.Logger) *LockValidator {
	return &LockValidator{
		validate: validator.New(),
		logger:   log,
	}
}

// ValidateResourceID accepts UUIDs in either case and returns the lowercase
// form, so one appointment always maps to one lock row and one room.
func (v *LockValidator) ValidateResourceID(id string) (string, error) {
	canonical := strings.ToLower(id)
	if err := v.validate.Var(canonical, "required,uuid"); err != nil {
		return "", lockserrors.ErrInvalidResourceID
	}
	return canonical, nil
}

func (v *LockValidator) ValidatePosition(pos model.Position) error {
	err := v.validate.Struct(pos)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	out := make(ValidationErrors, 0, len(validationErrs))
	for _, fe := range validationErrs {
		out = append(out, ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param()),
		})
	}
	return out
}
