package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"vaultauth/internal/domain"
	"vaultauth/internal/netutil"
	"vaultauth/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func clientIP(r *http.Request) string {
	// If you put the service behind a proxy later, these will matter.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// XFF can be a list: client, proxy1, proxy2...
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if normalized, ok := netutil.NormalizeIP(ip); ok {
			return normalized
		}
	}
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		if normalized, ok := netutil.NormalizeIP(xr); ok {
			return normalized
		}
	}
	if normalized, ok := netutil.NormalizeIP(r.RemoteAddr); ok {
		return normalized
	}
	return r.RemoteAddr
}

func NewRouter(devices service.DeviceService, tokens service.TokenService, twofactor service.TwoFactorService) *http.ServeMux {
	mux := http.NewServeMux()
	h := &handlers{devices: devices, tokens: tokens, twofactor: twofactor}

	mux.HandleFunc("GET /alive", func(w http.ResponseWriter, r *http.Request) {
		// Clients use this as a time-sync endpoint as well as a liveness probe.
		writeJSON(w, http.StatusOK, time.Now().UTC().Format(time.RFC3339))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /identity/connect/token", h.connectToken)

	mux.HandleFunc("POST /api/devices", h.registerDevice)
	mux.HandleFunc("GET /api/devices", h.listDevices)
	mux.HandleFunc("GET /api/devices/identifier/{id}", h.getDevice)
	mux.HandleFunc("PUT /api/devices/identifier/{id}", h.renameDevice)
	mux.HandleFunc("PUT /api/devices/identifier/{id}/token", h.updatePushToken)
	mux.HandleFunc("PUT /api/devices/identifier/{id}/clear-token", h.clearPushToken)
	mux.HandleFunc("DELETE /api/devices/identifier/{id}", h.removeDevice)
	mux.HandleFunc("POST /api/devices/identifier/{id}/remember", h.rememberDevice)
	mux.HandleFunc("DELETE /api/devices/identifier/{id}/remember", h.forgetDevice)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeDeviceError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrDeviceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotPersisted):
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}
