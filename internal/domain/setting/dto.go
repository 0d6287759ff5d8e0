package setting

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

type UpdateSettingsRequest struct {
	Settings map[string]*string `json:"settings"`
}

func (r *UpdateSettingsRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(r.Settings) == 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "settings",
			Message: "at least one setting is required",
		})
	}

	for key, value := range r.Settings {
		def, ok := LookupDefinition(key)
		if !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "settings." + key,
				Message: "unknown setting",
			})
			continue
		}
		if value == nil || strings.TrimSpace(*value) == "" {
			continue
		}
		raw := strings.TrimSpace(*value)
		if err := def.DataType.Check(raw); err != nil {
			errs = append(errs, validator.ValidationError{
				Field:   "settings." + key,
				Message: err.Error(),
			})
			continue
		}
		if err := (&Configuration{}).set(key, raw); err != nil {
			errs = append(errs, validator.ValidationError{
				Field:   "settings." + key,
				Message: err.Error(),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SettingResponse struct {
	Key         string  `json:"key"`
	Value       *string `json:"value"`
	DataType    string  `json:"data_type"`
	Group       string  `json:"group"`
	Description *string `json:"description,omitempty"`
	IsDefault   bool    `json:"is_default"`
	UpdatedAt   *string `json:"updated_at,omitempty"`
}

// NewSettingResponses lists every known key, stored values first falling back
// to the built-in default.
func NewSettingResponses(stored []Setting) []SettingResponse {
	byKey := make(map[string]Setting, len(stored))
	for _, s := range stored {
		byKey[s.Key] = s
	}

	out := make([]SettingResponse, 0, len(Definitions))
	for _, def := range Definitions {
		desc := def.Description
		resp := SettingResponse{
			Key:         def.Key,
			DataType:    string(def.DataType),
			Group:       def.Group,
			Description: &desc,
			IsDefault:   true,
		}
		if def.Default != "" {
			v := def.Default
			resp.Value = &v
		}
		// A stored null means the key was reset and the default applies.
		if s, ok := byKey[def.Key]; ok {
			if s.Value != nil {
				resp.Value = s.Value
				resp.IsDefault = false
			}
			if s.Description != nil {
				resp.Description = s.Description
			}
			updated := s.UpdatedAt.Format(time.RFC3339)
			resp.UpdatedAt = &updated
		}
		out = append(out, resp)
	}
	return out
}
