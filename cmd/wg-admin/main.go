// Package main provides the wg-admin CLI tool for managing the WireGuard gateway.
package main

import (
	"os"

	"github.com/sirosfoundation/wg-gateway/cmd/wg-admin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
