package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

type clientNameRequest struct {
	Name string `json:"name"`
}

type clientAddressRequest struct {
	Address string `json:"address"`
}

// ListClients handles GET /api/tunnel/client
func (h *Handlers) ListClients(c *gin.Context) {
	clients, err := h.tunnel.GetClients(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

// CreateClient handles POST /api/tunnel/client
func (h *Handlers) CreateClient(c *gin.Context) {
	var req clientNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.tunnel.CreateClient(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// DeleteClient handles DELETE /api/tunnel/client/:clientId
func (h *Handlers) DeleteClient(c *gin.Context) {
	if err := h.tunnel.DeleteClient(c.Request.Context(), c.Param("clientId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EnableClient handles POST /api/tunnel/client/:clientId/enable
func (h *Handlers) EnableClient(c *gin.Context) {
	if err := h.tunnel.EnableClient(c.Request.Context(), c.Param("clientId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DisableClient handles POST /api/tunnel/client/:clientId/disable
func (h *Handlers) DisableClient(c *gin.Context) {
	if err := h.tunnel.DisableClient(c.Request.Context(), c.Param("clientId")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateClientName handles PUT /api/tunnel/client/:clientId/name
func (h *Handlers) UpdateClientName(c *gin.Context) {
	var req clientNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tunnel.UpdateClientName(c.Request.Context(), c.Param("clientId"), req.Name); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateClientAddress handles PUT /api/tunnel/client/:clientId/address
func (h *Handlers) UpdateClientAddress(c *gin.Context) {
	var req clientAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tunnel.UpdateClientAddress(c.Request.Context(), c.Param("clientId"), req.Address); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClientQRCode handles GET /api/tunnel/client/:clientId/qrcode.svg
func (h *Handlers) ClientQRCode(c *gin.Context) {
	svg, err := h.tunnel.GetClientQRCodeSVG(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", []byte(svg))
}

// ClientConfiguration handles GET /api/tunnel/client/:clientId/configuration
// and serves the client's config as a file download.
func (h *Handlers) ClientConfiguration(c *gin.Context) {
	ctx := c.Request.Context()
	clientID := c.Param("clientId")

	client, err := h.tunnel.GetClient(ctx, clientID)
	if err != nil {
		h.fail(c, err)
		return
	}
	conf, err := h.tunnel.GetClientConfiguration(ctx, clientID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", configFileName(client.Name, clientID)+".conf"))
	c.Data(http.StatusOK, "text/plain", []byte(conf))
}

// ClientConfig handles GET /api/tunnel/client/:clientId/config
func (h *Handlers) ClientConfig(c *gin.Context) {
	conf, err := h.tunnel.GetClientConfiguration(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": conf})
}

var (
	unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_=+.-]`)
	dashRuns        = regexp.MustCompile(`-{2,}`)
)

const maxConfigNameLen = 32

// configFileName derives a download name from a client name, falling back to
// the client id when nothing usable is left.
func configFileName(name, clientID string) string {
	s := unsafeFileChars.ReplaceAllString(name, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.TrimSuffix(s, "-")
	if len(s) > maxConfigNameLen {
		s = s[:maxConfigNameLen]
	}
	if s == "" {
		return clientID
	}
	return s
}
