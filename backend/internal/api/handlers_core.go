package api

import (
	"net/http"

	apitypes "room-bridge/backend/internal/api/types"
	apicommon "room-bridge/backend/internal/shared/api"
	sharedtypes "room-bridge/backend/internal/shared/types"
	"room-bridge/backend/pkg/router"
)

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) error {
	apicommon.RespondJSON(w, r, http.StatusOK, sharedtypes.PingResponse{
		Message: "Pong", Status: sharedtypes.PingStatusOK,
	})

	return nil
}

func (h *Handler) RegisterPing(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "ping",
		Summary:     "Ping the server",
		Description: "Check if the server is alive",
		Group:       CoreGroup,
		Handler:     apicommon.ErrorHandler(h.Ping),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) error {
	status := h.svc.Core.Health(r.Context())
	resp := apitypes.HealthResponse{
		Database:    status.Database,
		MQTT:        status.MQTT,
		Subscribers: status.Subscribers,
	}

	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}

	apicommon.RespondJSON(w, r, code, resp)

	return nil
}

func (h *Handler) RegisterHealth(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "health",
		Summary:     "Check server health",
		Description: "Reports database and broker reachability; responds 503 when either is down",
		Group:       CoreGroup,
		Handler:     apicommon.ErrorHandler(h.Health),
	})
}
