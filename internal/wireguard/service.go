// Package wireguard talks to the WireGuard management collaborator.
//
// Client lifecycle (keys, peer configs, QR codes) lives entirely in the
// external management service; the gateway forwards those calls untouched.
// The only call the port lease core makes is SaveConfig, which makes the live
// interface pick up a newly leased port.
package wireguard

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrClientNotFound is returned when the service does not know a client ID.
	ErrClientNotFound = errors.New("client not found")
	// ErrUnavailable is returned when the service cannot be reached.
	ErrUnavailable = errors.New("wireguard service unavailable")
)

// UpstreamError carries a non-success status returned by the service.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("wireguard service error (%d): %s", e.Status, e.Message)
}

// Client is a tunnel peer as reported by the management service.
type Client struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Enabled             bool       `json:"enabled"`
	Address             string     `json:"address"`
	PublicKey           string     `json:"publicKey"`
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`
	PersistentKeepalive *string    `json:"persistentKeepalive,omitempty"`
	LatestHandshakeAt   *time.Time `json:"latestHandshakeAt,omitempty"`
	TransferRx          *int64     `json:"transferRx,omitempty"`
	TransferTx          *int64     `json:"transferTx,omitempty"`
}

// Reloader makes the live interface adopt the persisted configuration.
type Reloader interface {
	SaveConfig(ctx context.Context) error
}

// Service is the full collaborator contract.
type Service interface {
	Reloader

	GetClients(ctx context.Context) ([]Client, error)
	GetClient(ctx context.Context, clientID string) (*Client, error)
	CreateClient(ctx context.Context, name string) (*Client, error)
	DeleteClient(ctx context.Context, clientID string) error
	EnableClient(ctx context.Context, clientID string) error
	DisableClient(ctx context.Context, clientID string) error
	UpdateClientName(ctx context.Context, clientID, name string) error
	UpdateClientAddress(ctx context.Context, clientID, address string) error
	GetClientConfiguration(ctx context.Context, clientID string) (string, error)
	GetClientQRCodeSVG(ctx context.Context, clientID string) (string, error)
}

// NopReloader persists nothing to the live interface.
type NopReloader struct{}

// SaveConfig does nothing.
func (NopReloader) SaveConfig(context.Context) error { return nil }
