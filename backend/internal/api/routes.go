package api

import (
	apicommon "room-bridge/backend/internal/shared/api"
	"room-bridge/backend/pkg/router"
)

// RegisterRoutes mounts every bridge operation on rb.
func (h *Handler) RegisterRoutes(rb *router.RouteBuilder, mw *apicommon.MiddlewareHandler) {
	rb.Use(mw.RequestIDMiddleware)
	rb.Use(mw.LoggerMiddleware)
	rb.Use(mw.RecoveryMiddleware)

	rb.Route("/api", func(rb *router.RouteBuilder) {
		h.RegisterPing("/ping", rb)
		h.RegisterHealth("/health", rb)

		rb.Route("/status", func(rb *router.RouteBuilder) {
			h.RegisterGetStatus("/", rb)
			h.RegisterGetConnection("/connection", rb)
			h.RegisterGetSystem("/system", rb)
		})

		rb.Route("/devices", func(rb *router.RouteBuilder) {
			h.RegisterListDevices("/", rb)
			h.RegisterGetDevice("/{deviceID}", rb)
		})

		h.RegisterSendCommand("/command", rb)
	})

	h.RegisterLive("/ws", rb)
}
