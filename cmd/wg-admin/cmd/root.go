// Package cmd contains all CLI commands for wg-admin.
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	gatewayURL string
	password   string
	output     string
)

// Client wraps an HTTP client holding the gateway session cookie
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new gateway API client
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Login opens an authenticated session. An empty password is only checked
// against the gateway's session status.
func (c *Client) Login(pw string) error {
	if pw == "" {
		data, err := c.Request(http.MethodGet, "/api/session", nil)
		if err != nil {
			return err
		}
		var status struct {
			RequiresPassword bool `json:"requiresPassword"`
		}
		if err := json.Unmarshal(data, &status); err != nil {
			return fmt.Errorf("failed to parse session status: %w", err)
		}
		if status.RequiresPassword {
			return fmt.Errorf("gateway requires a password (use --password or WG_ADMIN_PASSWORD)")
		}
		return nil
	}

	_, err := c.Request(http.MethodPost, "/api/session", map[string]string{"password": pw})
	return err
}

// Request makes an HTTP request to the gateway API
func (c *Client) Request(method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	url := c.baseURL + path
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// session returns a client logged in with the global flags
func session() (*Client, error) {
	client, err := NewClient(gatewayURL)
	if err != nil {
		return nil, err
	}
	if err := client.Login(password); err != nil {
		return nil, err
	}
	return client, nil
}

// printJSON formats and prints JSON output
func printJSON(data []byte) error {
	var formatted bytes.Buffer
	if err := json.Indent(&formatted, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(formatted.String())
	return nil
}

// printTable prints data in a simple table format
func printTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, h := range headers {
		fmt.Printf("%-*s  ", widths[i], h)
	}
	fmt.Println()

	for i := range headers {
		fmt.Printf("%s  ", strings.Repeat("-", widths[i]))
	}
	fmt.Println()

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Printf("%-*s  ", widths[i], cell)
			}
		}
		fmt.Println()
	}
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wg-admin",
	Short: "CLI tool for managing the WireGuard gateway",
	Long: `wg-admin is a command-line tool for the WireGuard gateway API.

It provides commands for managing:
  - Port: Show, lease and release the tunnel listening port
  - Clients: List, create, enable, disable and delete tunnel clients

Examples:
  # Show the leased port and its history
  wg-admin port status

  # Lease the next unused port
  wg-admin port assign

  # Lease a specific port
  wg-admin port assign 51830

  # Download a client configuration
  wg-admin client config abc123 > laptop.conf

Environment Variables:
  WG_ADMIN_URL       Base URL of the gateway (default: http://localhost:51821)
  WG_ADMIN_PASSWORD  Admin password`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&gatewayURL, "url", "u", getEnvOrDefault("WG_ADMIN_URL", "http://localhost:51821"), "Gateway base URL")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", os.Getenv("WG_ADMIN_PASSWORD"), "Admin password")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format: table, json")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
