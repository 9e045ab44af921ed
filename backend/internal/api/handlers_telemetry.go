package api

import (
	"net/http"

	apicommon "room-bridge/backend/internal/shared/api"
	"room-bridge/backend/pkg/router"
)

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) error {
	reading, err := h.svc.Telemetry.Sensor(r.Context())
	if err != nil {
		return err
	}

	apicommon.RespondJSON(w, r, http.StatusOK, reading)

	return nil
}

func (h *Handler) RegisterGetStatus(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getSensorStatus",
		Summary:     "Latest sensor reading",
		Description: "Returns the most recent temperature and humidity reading, or zero values before the first one",
		Group:       TelemetryGroup,
		Handler:     apicommon.ErrorHandler(h.GetStatus),
	})
}

func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) error {
	state, err := h.svc.Telemetry.Connection(r.Context())
	if err != nil {
		return err
	}

	apicommon.RespondJSON(w, r, http.StatusOK, state)

	return nil
}

func (h *Handler) RegisterGetConnection(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getConnectionStatus",
		Summary:     "Latest connection status",
		Description: "Returns the device fleet's last reported connection status, \"offline\" before the first report",
		Group:       TelemetryGroup,
		Handler:     apicommon.ErrorHandler(h.GetConnection),
	})
}

func (h *Handler) GetSystem(w http.ResponseWriter, r *http.Request) error {
	health, err := h.svc.Telemetry.System(r.Context())
	if err != nil {
		return err
	}

	apicommon.RespondJSON(w, r, http.StatusOK, health)

	return nil
}

func (h *Handler) RegisterGetSystem(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getSystemHealth",
		Summary:     "Latest system health",
		Description: "Returns the controller's last reported uptime, free heap and signal strength",
		Group:       TelemetryGroup,
		Handler:     apicommon.ErrorHandler(h.GetSystem),
	})
}
