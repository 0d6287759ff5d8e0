package http

import (
	"encoding/json"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/setting"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
)

type SettingHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
}

type settingHandlerImpl struct {
	settingService setting.Service
}

func NewSettingHandler(settingService setting.Service) SettingHandler {
	return &settingHandlerImpl{settingService: settingService}
}

// List implements SettingHandler.
func (h *settingHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	results, err := h.settingService.ListSettings(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, results)
}

// Update implements SettingHandler.
func (h *settingHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	var req setting.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	results, err := h.settingService.UpdateSettings(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Settings updated successfully", results)
}
