package validator

import (
	"fmt"
	"strings"

	appointmentserrors "skedit/internal/appointments/errors"
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

type AppointmentValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAppointmentValidator(log *logger.Logger) *AppointmentValidator {
	return &AppointmentValidator{
		validate: validator.New(),
		logger:   log,
	}
}

// ValidateID accepts UUIDs in either case and returns the lowercase form.
func (v *AppointmentValidator) ValidateID(id string) (string, error) {
	canonical := strings.ToLower(id)
	if err := v.validate.Var(canonical, "required,uuid"); err != nil {
		return "", err
	}
	return canonical, nil
}

func (v *AppointmentValidator) ValidateUpdate(update *model.AppointmentUpdate) error {
	err := v.validate.Struct(update)
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
			Field:   jsonName(fe.Field()),
			Message: message(fe),
		})
	}
	return out
}

// ValidateTimeRange checks the merged appointment, since either bound may
// come from the stored record.
func (v *AppointmentValidator) ValidateTimeRange(a *model.Appointment) error {
	if !a.StartTime.IsZero() && !a.EndTime.IsZero() && !a.EndTime.After(a.StartTime) {
		return appointmentserrors.ErrInvalidTimeRange
	}
	return nil
}

func jsonName(field string) string {
	switch field {
	case "StartTime":
		return "start_time"
	case "EndTime":
		return "end_time"
	default:
		return strings.ToLower(field)
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
