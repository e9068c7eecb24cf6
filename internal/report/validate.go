package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/hsefield/internal/model"
)

// ErrInvalid is returned for drafts and payloads that fail validation.
var ErrInvalid = errors.New("invalid report")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("reporttype", func(fl validator.FieldLevel) bool {
		return model.ReportType(fl.Field().String()).Valid()
	})
	v.RegisterValidation("jsonobject", func(fl validator.FieldLevel) bool {
		return isJSONObject(fl.Field().Bytes())
	})
	return v
}

// ValidateDraft checks the report type and payload of a draft. Safety
// inspection checklists must carry known ratings.
func ValidateDraft(d model.Draft) error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if d.Type == model.TypeSafetyInspection {
		return validateChecklist(d.Data)
	}
	return nil
}

// validateChecklist only looks at data.checklist; other fields stay free-form.
func validateChecklist(data json.RawMessage) error {
	var payload struct {
		Checklist []model.ChecklistItem `json:"checklist"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: safety inspection checklist: %v", ErrInvalid, err)
	}
	inspection := model.SafetyInspectionData{Checklist: payload.Checklist}
	if err := inspection.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func isJSONObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{' && json.Valid(raw)
}
