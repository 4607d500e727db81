package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// PortStatus represents the port lease status response
type PortStatus struct {
	Port  int    `json:"port"`
	Ports string `json:"ports"`
	Range struct {
		Lower int `json:"lower"`
		Upper int `json:"upper"`
	} `json:"range"`
	History []int `json:"history_ports"`
}

// PortResponse represents the assign and release response
type PortResponse struct {
	Prot int `json:"prot"`
}

var portCmd = &cobra.Command{
	Use:   "port",
	Short: "Manage the tunnel listening port",
}

var portStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the leased port, range and history",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := session()
		if err != nil {
			return err
		}
		data, err := client.Request(http.MethodGet, "/api/tunnel/prot", nil)
		if err != nil {
			return err
		}

		if output == "json" {
			return printJSON(data)
		}

		var st PortStatus
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}

		port := strconv.Itoa(st.Port)
		if st.Port == 0 {
			port = "released"
		}
		history := make([]string, len(st.History))
		for i, p := range st.History {
			history[i] = strconv.Itoa(p)
		}
		printTable([]string{"PORT", "RANGE", "HISTORY"}, [][]string{{port, st.Ports, strings.Join(history, ",")}})
		return nil
	},
}

var portAssignCmd = &cobra.Command{
	Use:   "assign [port]",
	Short: "Lease a port, or the next unused one when none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]int{}
		if len(args) == 1 {
			p, err := strconv.Atoi(args[0])
			if err != nil || p <= 0 {
				return fmt.Errorf("invalid port: %s", args[0])
			}
			body["prot"] = p
		}

		client, err := session()
		if err != nil {
			return err
		}
		data, err := client.Request(http.MethodPut, "/api/tunnel/prot", body)
		if err != nil {
			return err
		}
		return printPortResult(data, "Leased port %d\n", "Every port in range has been used.")
	},
}

var portReleaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Release the port and clear its history",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := session()
		if err != nil {
			return err
		}
		data, err := client.Request(http.MethodDelete, "/api/tunnel/prot", nil)
		if err != nil {
			return err
		}
		return printPortResult(data, "Port %d\n", "Port released.")
	},
}

func printPortResult(data []byte, format, zero string) error {
	if output == "json" {
		return printJSON(data)
	}

	var resp PortResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Prot == 0 {
		fmt.Println(zero)
		return nil
	}
	fmt.Printf(format, resp.Prot)
	return nil
}

func init() {
	rootCmd.AddCommand(portCmd)
	portCmd.AddCommand(portStatusCmd)
	portCmd.AddCommand(portAssignCmd)
	portCmd.AddCommand(portReleaseCmd)
}
