package validator

import (
	"errors"
	"testing"

	lockserrors "skedit/internal/locks/errors"
	"skedit/pkg/logger"
	"skedit/pkg/model"
)

func TestValidateResourceID(t *testing.T) {
	v := NewLockValidator(logger.Discard())

	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"uuid v4", "3f1c2a9e-7b4d-4c1e-9a55-0c2d7f8e6b10", true},
		{"uppercase uuid", "3F1C2A9E-7B4D-4C1E-9A55-0C2D7F8E6B10", true},
		{"empty", "", false},
		{"object id", "507f1f77bcf86cd799439011", false},
		{"braced uuid", "{3f1c2a9e-7b4d-4c1e-9a55-0c2d7f8e6b10}", false},
		{"sql injection", "1; DROP TABLE locks", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canonical, err := v.ValidateResourceID(tt.id)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if tt.valid && canonical != "3f1c2a9e-7b4d-4c1e-9a55-0c2d7f8e6b10" {
				t.Errorf("expected lowercase id, got %q", canonical)
			}
			if !tt.valid && !errors.Is(err, lockserrors.ErrInvalidResourceID) {
				t.Errorf("expected ErrInvalidResourceID, got %v", err)
			}
		})
	}
}

func TestValidatePosition(t *testing.T) {
	v := NewLockValidator(logger.Discard())

	if err := v.ValidatePosition(model.Position{X: 120.5, Y: -40}); err != nil {
		t.Errorf("expected valid position, got %v", err)
	}

	err := v.ValidatePosition(model.Position{X: 1e9, Y: 0})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 1 || verrs[0].Field != "x" {
		t.Errorf("unexpected errors: %v", verrs)
	}
}
