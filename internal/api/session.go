package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sirosfoundation/wg-gateway/pkg/middleware"
)

// LoginRequest is the body of POST /api/session. Password stays untyped so a
// non-string value can be told apart from a wrong one.
type LoginRequest struct {
	Password any `json:"password"`
}

// GetSession handles GET /api/session
func (h *Handlers) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.gate.Status(c.Request.Context(), middleware.GetSessionID(c)))
}

// Login handles POST /api/session
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	// A missing or malformed body is reported as a missing password
	_ = c.ShouldBindJSON(&req)

	var password *string
	if s, ok := req.Password.(string); ok {
		password = &s
	}

	if err := h.gate.Login(c.Request.Context(), middleware.GetSessionID(c), password); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Logout handles DELETE /api/session
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.gate.Logout(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
		h.fail(c, err)
		return
	}

	if h.cookies != nil {
		h.cookies.Clear(c)
	}
	c.Status(http.StatusNoContent)
}
