// Package api provides HTTP API handlers for the WireGuard gateway.
package api

// APIVersion represents the current API version supported by this server.
// Frontends use it to detect capabilities; URLs carry no version prefix.
const (
	// APIVersion1 is the initial API version.
	APIVersion1 = 1

	// CurrentAPIVersion is the highest API version supported by this server.
	CurrentAPIVersion = APIVersion1
)

// APICapabilities describes the features available at each API version.
var APICapabilities = map[int][]string{
	APIVersion1: {
		"session",
		"port-lease",
		"clients",
	},
}

// StatusResponse is the response from the /health and /status endpoints.
type StatusResponse struct {
	Status       string   `json:"status"`
	Service      string   `json:"service"`
	Release      string   `json:"release"`
	APIVersion   int      `json:"api_version"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// NewStatusResponse builds the status document for release.
func NewStatusResponse(release string) StatusResponse {
	return StatusResponse{
		Status:       "ok",
		Service:      "wg-gateway",
		Release:      release,
		APIVersion:   CurrentAPIVersion,
		Capabilities: APICapabilities[CurrentAPIVersion],
	}
}
