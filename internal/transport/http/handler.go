package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"vaultauth/internal/domain"
	"vaultauth/internal/dto"
	"vaultauth/internal/service"
)

type handlers struct {
	devices   service.DeviceService
	tokens    service.TokenService
	twofactor service.TwoFactorService
}

// authenticate resolves the caller from the bearer access token. Stale
// tokens (security stamp moved) are rejected like any other invalid token.
func (h *handlers) authenticate(w http.ResponseWriter, r *http.Request) (dto.VerifyResponse, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return dto.VerifyResponse{}, false
	}
	v, err := h.tokens.VerifyAccess(r.Context(), dto.VerifyRequest{Token: strings.TrimPrefix(auth, "Bearer ")})
	if err != nil || !v.Valid {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return dto.VerifyResponse{}, false
	}
	return v, true
}

// ownDevice loads the device and hides other users' devices behind 404.
func (h *handlers) ownDevice(w http.ResponseWriter, r *http.Request, caller dto.VerifyResponse) (*domain.Device, bool) {
	device, err := h.devices.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDeviceError(w, err)
		return nil, false
	}
	if device.UserID != caller.UserID {
		http.Error(w, domain.ErrDeviceNotFound.Error(), http.StatusNotFound)
		return nil, false
	}
	return device, true
}

func (h *handlers) connectToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, "invalid_request")
		return
	}
	if r.PostFormValue("grant_type") != "refresh_token" {
		oauthError(w, "unsupported_grant_type")
		return
	}
	refreshToken := r.PostFormValue("refresh_token")
	if refreshToken == "" {
		oauthError(w, "invalid_request")
		return
	}

	res, err := h.tokens.Refresh(r.Context(), refreshToken, clientIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			oauthError(w, "invalid_grant")
			return
		}
		http.Error(w, "token refresh failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) registerDevice(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var req dto.DeviceRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	device, err := h.devices.Register(r.Context(), caller.UserID, req.Name, req.Type)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deviceResponse(device))
}

func (h *handlers) listDevices(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	devices, err := h.devices.List(r.Context(), caller.UserID)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	out := make([]dto.DeviceResponse, 0, len(devices))
	for _, device := range devices {
		out = append(out, deviceResponse(device))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getDevice(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	device, ok := h.ownDevice(w, r, caller)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, deviceResponse(device))
}

func (h *handlers) renameDevice(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	device, ok := h.ownDevice(w, r, caller)
	if !ok {
		return
	}
	var req dto.DeviceRenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.devices.Rename(r.Context(), device.ID, req.Name); err != nil {
		writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) updatePushToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	device, ok := h.ownDevice(w, r, caller)
	if !ok {
		return
	}
	var req dto.PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := h.devices.UpdatePushToken(r.Context(), device.ID, req.PushToken); err != nil {
		writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) clearPushToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	device, ok := h.ownDevice(w, r, caller)
	if !ok {
		return
	}
	if err := h.devices.ClearPushToken(r.Context(), device.ID); err != nil {
		writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) removeDevice(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	device, ok := h.ownDevice(w, r, caller)
	if !ok {
		return
	}
	if err := h.devices.Remove(r.Context(), device.ID); err != nil {
		writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) rememberDevice(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	device, ok := h.ownDevice(w, r, caller)
	if !ok {
		return
	}
	token, err := h.twofactor.RememberDevice(r.Context(), device.ID)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.RememberRequest{Token: token})
}

func (h *handlers) forgetDevice(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	device, ok := h.ownDevice(w, r, caller)
	if !ok {
		return
	}
	if err := h.twofactor.Forget(r.Context(), device.ID); err != nil {
		writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func deviceResponse(device *domain.Device) dto.DeviceResponse {
	return dto.DeviceResponse{
		ID:           device.ID,
		Name:         device.Name,
		Type:         device.DeviceType,
		CreationDate: device.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000Z"),
	}
}

func oauthError(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": code})
}
