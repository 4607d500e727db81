package wireguard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPService calls the management service's JSON API.
type HTTPService struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPService creates a client for the service at baseURL.
func NewHTTPService(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPService{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("wireguard"),
	}
}

// SaveConfig asks the service to rewrite and re-sync the live interface.
func (s *HTTPService) SaveConfig(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodPost, "/api/wireguard/save", nil)
	return err
}

// GetClients lists all clients.
func (s *HTTPService) GetClients(ctx context.Context) ([]Client, error) {
	body, err := s.do(ctx, http.MethodGet, "/api/wireguard/client", nil)
	if err != nil {
		return nil, err
	}
	clients := []Client{}
	if err := json.Unmarshal(body, &clients); err != nil {
		return nil, fmt.Errorf("failed to decode clients: %w", err)
	}
	return clients, nil
}

// GetClient returns a single client.
func (s *HTTPService) GetClient(ctx context.Context, clientID string) (*Client, error) {
	body, err := s.do(ctx, http.MethodGet, clientPath(clientID, ""), nil)
	if err != nil {
		return nil, err
	}
	var client Client
	if err := json.Unmarshal(body, &client); err != nil {
		return nil, fmt.Errorf("failed to decode client: %w", err)
	}
	return &client, nil
}

// CreateClient creates a client named name.
func (s *HTTPService) CreateClient(ctx context.Context, name string) (*Client, error) {
	body, err := s.do(ctx, http.MethodPost, "/api/wireguard/client", map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	var client Client
	if err := json.Unmarshal(body, &client); err != nil {
		return nil, fmt.Errorf("failed to decode client: %w", err)
	}
	return &client, nil
}

// DeleteClient removes a client.
func (s *HTTPService) DeleteClient(ctx context.Context, clientID string) error {
	_, err := s.do(ctx, http.MethodDelete, clientPath(clientID, ""), nil)
	return err
}

// EnableClient enables a client.
func (s *HTTPService) EnableClient(ctx context.Context, clientID string) error {
	_, err := s.do(ctx, http.MethodPost, clientPath(clientID, "/enable"), nil)
	return err
}

// DisableClient disables a client.
func (s *HTTPService) DisableClient(ctx context.Context, clientID string) error {
	_, err := s.do(ctx, http.MethodPost, clientPath(clientID, "/disable"), nil)
	return err
}

// UpdateClientName renames a client.
func (s *HTTPService) UpdateClientName(ctx context.Context, clientID, name string) error {
	_, err := s.do(ctx, http.MethodPut, clientPath(clientID, "/name"), map[string]string{"name": name})
	return err
}

// UpdateClientAddress re-addresses a client.
func (s *HTTPService) UpdateClientAddress(ctx context.Context, clientID, address string) error {
	_, err := s.do(ctx, http.MethodPut, clientPath(clientID, "/address"), map[string]string{"address": address})
	return err
}

// GetClientConfiguration returns the rendered peer configuration.
func (s *HTTPService) GetClientConfiguration(ctx context.Context, clientID string) (string, error) {
	body, err := s.do(ctx, http.MethodGet, clientPath(clientID, "/configuration"), nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetClientQRCodeSVG returns the peer configuration as an SVG QR code.
func (s *HTTPService) GetClientQRCodeSVG(ctx context.Context, clientID string) (string, error) {
	body, err := s.do(ctx, http.MethodGet, clientPath(clientID, "/qrcode.svg"), nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func clientPath(clientID, suffix string) string {
	return "/api/wireguard/client/" + url.PathEscape(clientID) + suffix
}

func (s *HTTPService) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Debug("WireGuard service request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/api/wireguard/client/") {
		return nil, ErrClientNotFound
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Message: msg}
	}

	return body, nil
}
