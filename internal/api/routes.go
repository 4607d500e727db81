package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the gateway API. public carries the session
// middleware only; gated additionally requires an authenticated session.
// login wraps POST /api/session, typically with a rate limiter.
func (h *Handlers) RegisterRoutes(public, gated *gin.RouterGroup, login ...gin.HandlerFunc) {
	public.GET("/api/release", h.Release)
	public.GET("/api/session", h.GetSession)
	public.POST("/api/session", append(login, h.Login)...)

	gated.DELETE("/api/session", h.Logout)

	prot := gated.Group("/api/tunnel/prot")
	{
		prot.GET("", h.GetPort)
		prot.PUT("", h.AssignPort)
		prot.DELETE("", h.ReleasePort)
	}

	clients := gated.Group("/api/tunnel/client")
	{
		clients.GET("", h.ListClients)
		clients.POST("", h.CreateClient)
		clients.DELETE("/:clientId", h.DeleteClient)
		clients.POST("/:clientId/enable", h.EnableClient)
		clients.POST("/:clientId/disable", h.DisableClient)
		clients.PUT("/:clientId/name", h.UpdateClientName)
		clients.PUT("/:clientId/address", h.UpdateClientAddress)
		clients.GET("/:clientId/qrcode.svg", h.ClientQRCode)
		clients.GET("/:clientId/configuration", h.ClientConfiguration)
		clients.GET("/:clientId/config", h.ClientConfig)
	}
}
