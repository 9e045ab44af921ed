package api

import (
	"errors"
	"net/http"

	apitypes "room-bridge/backend/internal/api/types"
	"room-bridge/backend/internal/command"
	apicommon "room-bridge/backend/internal/shared/api"
	"room-bridge/backend/pkg/mqtt"
	"room-bridge/backend/pkg/router"
)

func (h *Handler) SendCommand(w http.ResponseWriter, r *http.Request) error {
	req, err := apicommon.DecodeJSON[command.Request](r)
	if err != nil {
		return err
	}

	cmd, err := h.svc.Commands.Send(r.Context(), req)
	if err != nil {
		var verr *command.ValidationError

		switch {
		case errors.As(err, &verr):
			return apicommon.NewValidationError(nil).AddError(verr.Field, verr.Reason)
		case errors.Is(err, mqtt.ErrNotConnected):
			return apicommon.NewError(http.StatusServiceUnavailable, "Broker not connected")
		case errors.Is(err, command.ErrPublish):
			return apicommon.NewError(http.StatusBadGateway, "Failed to publish command")
		default:
			return err
		}
	}

	apicommon.RespondJSON(w, r, http.StatusOK, apitypes.CommandResponse{
		Status:  apitypes.CommandStatusSent,
		Payload: cmd,
	})

	return nil
}

func (h *Handler) RegisterSendCommand(path string, rb *router.RouteBuilder) {
	rb.MustPost(path, router.RouteSpec{
		OperationID: "sendCommand",
		Summary:     "Send a device command",
		Description: "Validates {type, value} against the device vocabulary and publishes the normalized command",
		Group:       CommandGroup,
		Handler:     apicommon.ErrorHandler(h.SendCommand),
	})
}
