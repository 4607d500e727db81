// Package lease assigns, reports and releases the tunnel's listening port.
//
// The allocator is the only writer of the override file. Each mutation reads
// the resolved configuration, computes a complete new record, replaces the
// file and then asks the WireGuard collaborator to reload. The whole
// read-modify-write sequence runs under one mutex so concurrent requests
// cannot lose each other's history or lease the same port twice.
package lease

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/sirosfoundation/wg-gateway/internal/metrics"
	"github.com/sirosfoundation/wg-gateway/internal/override"
	"github.com/sirosfoundation/wg-gateway/internal/tunnel"
	"github.com/sirosfoundation/wg-gateway/internal/wireguard"
	"github.com/sirosfoundation/wg-gateway/pkg/config"
)

// Unassigned is returned by Assign when every port in range is in history.
const Unassigned = 0

// ErrPortOutOfRange is returned when a requested port lies outside WG_PORTS.
var ErrPortOutOfRange = errors.New("requested port is outside the configured range")

// Resolver resolves the tunnel configuration.
type Resolver interface {
	Resolve(ctx context.Context) *tunnel.Snapshot
}

// Writer replaces the persisted override record.
type Writer interface {
	Write(rec override.Record) error
}

// Status is the read-only view of the lease.
type Status struct {
	Port    int              `json:"port"`
	Ports   string           `json:"ports"`
	Range   config.PortRange `json:"range"`
	History []int            `json:"history_ports"`
}

// Allocator owns the port lease.
type Allocator struct {
	resolver Resolver
	writer   Writer
	reloader wireguard.Reloader
	metrics  *metrics.Registry
	logger   *zap.Logger

	mu sync.Mutex
}

// NewAllocator creates an Allocator.
func NewAllocator(resolver Resolver, writer Writer, reloader wireguard.Reloader, logger *zap.Logger) *Allocator {
	if reloader == nil {
		reloader = wireguard.NopReloader{}
	}
	return &Allocator{
		resolver: resolver,
		writer:   writer,
		reloader: reloader,
		metrics:  metrics.Get(),
		logger:   logger.Named("lease"),
	}
}

// Status reports the current port, range and history. It has no side effects.
func (a *Allocator) Status(ctx context.Context) Status {
	s := a.resolver.Resolve(ctx)
	return Status{
		Port:    s.Port,
		Ports:   s.Ports,
		Range:   s.Range,
		History: s.History,
	}
}

// Assign leases a port. A requested port of zero asks the allocator to pick
// the lowest port in range that is not in history; Unassigned is returned
// when there is none. Requesting the port already leased is a no-op.
func (a *Allocator) Assign(ctx context.Context, requested int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.resolver.Resolve(ctx)

	if requested != 0 {
		if requested == s.Port {
			a.metrics.ObserveLease("assign", "unchanged")
			return requested, nil
		}
		if !s.Range.Contains(requested) {
			a.metrics.ObserveLease("assign", "rejected")
			return Unassigned, fmt.Errorf("%w: %d not in %s", ErrPortOutOfRange, requested, s.Range)
		}
		if err := a.lease(ctx, s, requested); err != nil {
			return Unassigned, err
		}
		return requested, nil
	}

	candidate, ok := firstFree(s.Range, s.History)
	if !ok {
		a.metrics.ObserveLease("assign", "exhausted")
		a.logger.Warn("Every port in range has been used",
			zap.String("range", s.Ports),
			zap.Int("history", len(s.History)))
		return Unassigned, nil
	}
	if candidate == s.Port {
		a.metrics.ObserveLease("assign", "unchanged")
		return candidate, nil
	}
	if err := a.lease(ctx, s, candidate); err != nil {
		return Unassigned, err
	}
	return candidate, nil
}

// Release drops the lease and forgets the whole history.
func (a *Allocator) Release(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.writer.Write(override.Reset()); err != nil {
		a.metrics.ObserveLease("release", "error")
		return fmt.Errorf("failed to persist port release: %w", err)
	}
	a.metrics.ObserveLease("release", "changed")
	a.metrics.SetLease(0, 0)
	a.logger.Info("Released tunnel port")

	a.reload(ctx)
	return nil
}

// lease persists port as the new lease, moving the current port into history.
func (a *Allocator) lease(ctx context.Context, s *tunnel.Snapshot, port int) error {
	history := appendHistory(s.History, s.Port)

	if err := a.writer.Write(override.Record{Port: port, History: history}); err != nil {
		a.metrics.ObserveLease("assign", "error")
		return fmt.Errorf("failed to persist port lease: %w", err)
	}
	a.metrics.ObserveLease("assign", "changed")
	a.metrics.SetLease(port, len(history))
	a.logger.Info("Leased tunnel port",
		zap.Int("port", port),
		zap.Int("previous", s.Port),
		zap.Ints("history", history))

	a.reload(ctx)
	return nil
}

// reload notifies the collaborator. The new lease is already persisted, so a
// failed reload is logged rather than reported to the caller.
func (a *Allocator) reload(ctx context.Context) {
	if err := a.reloader.SaveConfig(ctx); err != nil {
		a.metrics.ReloadTotal.WithLabelValues("error").Inc()
		a.logger.Error("Failed to reload WireGuard configuration", zap.Error(err))
		return
	}
	a.metrics.ReloadTotal.WithLabelValues("ok").Inc()
}

// firstFree scans from the lower bound up to, but not including, the upper
// bound.
func firstFree(r config.PortRange, history []int) (int, bool) {
	for port := r.Lower; port < r.Upper; port++ {
		if !slices.Contains(history, port) {
			return port, true
		}
	}
	return Unassigned, false
}

// appendHistory returns a copy of history with port added. History is a set:
// duplicates and the unassigned sentinel are not recorded.
func appendHistory(history []int, port int) []int {
	out := make([]int, 0, len(history)+1)
	out = append(out, history...)
	if port != Unassigned && !slices.Contains(out, port) {
		out = append(out, port)
	}
	return out
}
