package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// PortRequest is the body of PUT /api/tunnel/prot. Prot may be a number, a
// numeric string or absent; absent and zero ask for automatic selection.
type PortRequest struct {
	Prot any `json:"prot"`
}

// PortResponse is returned by the port mutation endpoints.
type PortResponse struct {
	Prot int `json:"prot"`
}

var errInvalidPort = errors.New("Invalid: prot")

// GetPort handles GET /api/tunnel/prot
func (h *Handlers) GetPort(c *gin.Context) {
	c.JSON(http.StatusOK, h.leases.Status(c.Request.Context()))
}

// AssignPort handles PUT /api/tunnel/prot
func (h *Handlers) AssignPort(c *gin.Context) {
	var req PortRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requested, err := requestedPort(req.Prot)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	port, err := h.leases.Assign(c.Request.Context(), requested)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, PortResponse{Prot: port})
}

// ReleasePort handles DELETE /api/tunnel/prot
func (h *Handlers) ReleasePort(c *gin.Context) {
	if err := h.leases.Release(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, PortResponse{Prot: 0})
}

// requestedPort converts the decoded prot value to a port number.
func requestedPort(v any) (int, error) {
	switch p := v.(type) {
	case nil:
		return 0, nil
	case bool:
		if !p {
			return 0, nil
		}
	case float64:
		if p == math.Trunc(p) && p >= 0 && p <= math.MaxUint16 {
			return int(p), nil
		}
	case json.Number:
		if n, err := strconv.Atoi(p.String()); err == nil && n >= 0 {
			return n, nil
		}
	case string:
		s := strings.TrimSpace(p)
		if s == "" {
			return 0, nil
		}
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %v", errInvalidPort, v)
}
