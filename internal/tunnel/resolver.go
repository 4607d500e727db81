// Package tunnel resolves the effective tunnel configuration.
//
// Resolution layers three sources: built-in defaults, environment variables
// (both folded into config.TunnelConfig at startup) and the override file.
// The override file only ever contributes WG_PORT and WG_HISTORY_PORT.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sirosfoundation/wg-gateway/internal/override"
	"github.com/sirosfoundation/wg-gateway/pkg/config"
)

// OverrideReader reads the persisted port override.
type OverrideReader interface {
	Read() (*override.Record, error)
}

// Snapshot is one resolved configuration. It is never mutated after Resolve
// returns it.
type Snapshot struct {
	Path                string           `json:"WG_PATH"`
	Device              string           `json:"WG_DEVICE"`
	Host                string           `json:"WG_HOST"`
	Port                int              `json:"WG_PORT"`
	Ports               string           `json:"WG_PORTS"`
	Range               config.PortRange `json:"-"`
	History             []int            `json:"WG_HISTORY_PORT"`
	MTU                 *int             `json:"WG_MTU"`
	PersistentKeepalive int              `json:"WG_PERSISTENT_KEEPALIVE"`
	DefaultAddress      string           `json:"WG_DEFAULT_ADDRESS"`
	DefaultDNS          string           `json:"WG_DEFAULT_DNS"`
	AllowedIPs          string           `json:"WG_ALLOWED_IPS"`
	PreUp               string           `json:"WG_PRE_UP"`
	PostUp              string           `json:"WG_POST_UP"`
	PreDown             string           `json:"WG_PRE_DOWN"`
	PostDown            string           `json:"WG_POST_DOWN"`
}

// Field returns the value stored under a WG_* key.
func (s *Snapshot) Field(key string) (any, bool) {
	switch key {
	case "WG_PATH":
		return s.Path, true
	case "WG_DEVICE":
		return s.Device, true
	case "WG_HOST":
		return s.Host, true
	case "WG_PORT":
		return s.Port, true
	case "WG_PORTS":
		return s.Ports, true
	case "WG_HISTORY_PORT":
		return append([]int{}, s.History...), true
	case "WG_MTU":
		return s.MTU, true
	case "WG_PERSISTENT_KEEPALIVE":
		return s.PersistentKeepalive, true
	case "WG_DEFAULT_ADDRESS":
		return s.DefaultAddress, true
	case "WG_DEFAULT_DNS":
		return s.DefaultDNS, true
	case "WG_ALLOWED_IPS":
		return s.AllowedIPs, true
	case "WG_PRE_UP":
		return s.PreUp, true
	case "WG_POST_UP":
		return s.PostUp, true
	case "WG_PRE_DOWN":
		return s.PreDown, true
	case "WG_POST_DOWN":
		return s.PostDown, true
	default:
		return nil, false
	}
}

// Resolver produces Snapshots.
type Resolver struct {
	base   config.TunnelConfig
	rng    config.PortRange
	reader OverrideReader
	logger *zap.Logger
}

// NewResolver creates a Resolver over the environment/default layer base.
// base.Ports must parse; config.Validate guarantees that for loaded configs.
func NewResolver(base config.TunnelConfig, reader OverrideReader, logger *zap.Logger) (*Resolver, error) {
	rng, err := config.ParsePortRange(base.Ports)
	if err != nil {
		return nil, fmt.Errorf("invalid WG_PORTS: %w", err)
	}
	return &Resolver{
		base:   base,
		rng:    rng,
		reader: reader,
		logger: logger.Named("tunnel"),
	}, nil
}

// Resolve builds a fresh Snapshot. It never fails: a missing, unreadable or
// malformed override file leaves the environment/default values in place.
func (r *Resolver) Resolve(ctx context.Context) *Snapshot {
	b := r.base
	s := &Snapshot{
		Path:                b.Path,
		Device:              b.Device,
		Host:                b.Host,
		Port:                b.Port,
		Ports:               b.Ports,
		Range:               r.rng,
		History:             []int{},
		PersistentKeepalive: b.PersistentKeepalive,
		DefaultAddress:      b.DefaultAddress,
		DefaultDNS:          b.DefaultDNS,
		AllowedIPs:          b.AllowedIPs,
		PreUp:               b.PreUp,
		PreDown:             b.PreDown,
		PostDown:            b.PostDown,
	}
	if b.MTU > 0 {
		mtu := b.MTU
		s.MTU = &mtu
	}

	r.applyOverride(s)

	s.PostUp = b.PostUp
	if s.PostUp == "" {
		s.PostUp = PostUpRules(s.DefaultAddress, s.Device, s.Port)
	}

	return s
}

// Get resolves a single field by its WG_* key.
func (r *Resolver) Get(ctx context.Context, key string) (any, bool) {
	return r.Resolve(ctx).Field(key)
}

func (r *Resolver) applyOverride(s *Snapshot) {
	rec, err := r.reader.Read()
	if err != nil {
		if errors.Is(err, override.ErrNotFound) {
			r.logger.Debug("No override file, using environment port")
		} else {
			r.logger.Warn("Ignoring unusable override file", zap.Error(err))
		}
		return
	}

	// The file wins outright, including the released {0, []} state.
	s.Port = rec.Port
	s.History = append([]int{}, rec.History...)
}

// PostUpRules renders the default firewall setup for the tunnel: masquerade
// the client subnet out of device and accept UDP on the tunnel port.
func PostUpRules(defaultAddress, device string, port int) string {
	subnet := strings.Replace(defaultAddress, "x", "0", 1)
	rules := []string{
		fmt.Sprintf("iptables -t nat -A POSTROUTING -s %s/24 -o %s -j MASQUERADE;", subnet, device),
		fmt.Sprintf("iptables -A INPUT -p udp -m udp --dport %d -j ACCEPT;", port),
		"iptables -A FORWARD -i wg0 -j ACCEPT;",
		"iptables -A FORWARD -o wg0 -j ACCEPT;",
	}
	return strings.Join(rules, " ")
}
