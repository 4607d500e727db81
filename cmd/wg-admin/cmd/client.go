package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

// TunnelClient represents a tunnel client response
type TunnelClient struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage tunnel clients",
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := session()
		if err != nil {
			return err
		}
		data, err := client.Request(http.MethodGet, "/api/tunnel/client", nil)
		if err != nil {
			return err
		}

		if output == "json" {
			return printJSON(data)
		}

		var clients []TunnelClient
		if err := json.Unmarshal(data, &clients); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if len(clients) == 0 {
			fmt.Println("No clients found.")
			return nil
		}

		rows := make([][]string, len(clients))
		for i, c := range clients {
			enabled := "yes"
			if !c.Enabled {
				enabled = "no"
			}
			rows[i] = []string{c.ID, c.Name, c.Address, enabled}
		}
		printTable([]string{"ID", "NAME", "ADDRESS", "ENABLED"}, rows)
		return nil
	},
}

var clientCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := session()
		if err != nil {
			return err
		}
		data, err := client.Request(http.MethodPost, "/api/tunnel/client", map[string]string{"name": args[0]})
		if err != nil {
			return err
		}
		return printJSON(data)
	},
}

// clientAction builds a command that hits a client endpoint and prints msg.
func clientAction(use, short, method, suffix, msg string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [client-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := session()
			if err != nil {
				return err
			}
			if _, err := client.Request(method, "/api/tunnel/client/"+url.PathEscape(args[0])+suffix, nil); err != nil {
				return err
			}
			fmt.Printf(msg+"\n", args[0])
			return nil
		},
	}
}

var clientConfigCmd = &cobra.Command{
	Use:   "config [client-id]",
	Short: "Print a client's WireGuard configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := session()
		if err != nil {
			return err
		}
		data, err := client.Request(http.MethodGet, "/api/tunnel/client/"+url.PathEscape(args[0])+"/config", nil)
		if err != nil {
			return err
		}

		if output == "json" {
			return printJSON(data)
		}

		var resp struct {
			Config string `json:"config"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		fmt.Print(resp.Config)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.AddCommand(clientListCmd)
	clientCmd.AddCommand(clientCreateCmd)
	clientCmd.AddCommand(clientAction("delete", "Delete a client", http.MethodDelete, "", "Deleted client %s"))
	clientCmd.AddCommand(clientAction("enable", "Enable a client", http.MethodPost, "/enable", "Enabled client %s"))
	clientCmd.AddCommand(clientAction("disable", "Disable a client", http.MethodPost, "/disable", "Disabled client %s"))
	clientCmd.AddCommand(clientConfigCmd)
}
