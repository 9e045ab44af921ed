package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apicommon "room-bridge/backend/internal/shared/api"
	"room-bridge/backend/pkg/router"
)

func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) error {
	devices, err := h.svc.Telemetry.Devices(r.Context())
	if err != nil {
		return err
	}

	apicommon.RespondJSON(w, r, http.StatusOK, devices)

	return nil
}

func (h *Handler) RegisterListDevices(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "listDevices",
		Summary:     "Latest state of every device",
		Description: "Returns the most recent state of each device that has reported, ordered by device id",
		Group:       DeviceGroup,
		Handler:     apicommon.ErrorHandler(h.ListDevices),
	})
}

func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) error {
	deviceID := strings.TrimSpace(chi.URLParam(r, "deviceID"))
	if deviceID == "" {
		return apicommon.NewValidationError(nil).AddError("deviceID", "is required")
	}

	state, err := h.svc.Telemetry.Device(r.Context(), deviceID)
	if err != nil {
		return err
	}

	apicommon.RespondJSON(w, r, http.StatusOK, state)

	return nil
}

func (h *Handler) RegisterGetDevice(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getDevice",
		Summary:     "Latest state of one device",
		Description: "Returns the most recent state of a device, \"unknown\" when it never reported",
		Group:       DeviceGroup,
		Handler:     apicommon.ErrorHandler(h.GetDevice),
		Parameters: map[string]router.ParameterSpec{
			"deviceID": {
				In:          router.ParameterInPath,
				Description: "Device identifier, e.g. fan",
				Required:    true,
			},
		},
	})
}
