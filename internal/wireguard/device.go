package wireguard

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// PortSource yields the currently leased port.
type PortSource interface {
	Get(ctx context.Context, key string) (any, bool)
}

// deviceConfigurer is the subset of *wgctrl.Client used here.
type deviceConfigurer interface {
	ConfigureDevice(name string, cfg wgtypes.Config) error
	Close() error
}

// DeviceReloader applies the leased port straight to a local WireGuard
// interface through wgctrl, without going through the management service.
type DeviceReloader struct {
	iface  string
	ports  PortSource
	logger *zap.Logger

	mu     sync.Mutex
	client deviceConfigurer
	open   func() (deviceConfigurer, error)
}

// NewDeviceReloader creates a reloader for iface. The wgctrl handle is
// opened lazily on the first reload.
func NewDeviceReloader(iface string, ports PortSource, logger *zap.Logger) *DeviceReloader {
	return &DeviceReloader{
		iface:  iface,
		ports:  ports,
		logger: logger.Named("wgctrl"),
		open: func() (deviceConfigurer, error) {
			return wgctrl.New()
		},
	}
}

// SaveConfig sets the interface's listen port to the resolved WG_PORT. A
// released lease (port 0) leaves the interface untouched, since wgctrl
// would otherwise pick a random port.
func (d *DeviceReloader) SaveConfig(ctx context.Context) error {
	v, _ := d.ports.Get(ctx, "WG_PORT")
	port, _ := v.(int)
	if port == 0 {
		d.logger.Info("No leased port, leaving interface unchanged", zap.String("interface", d.iface))
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client == nil {
		c, err := d.open()
		if err != nil {
			return fmt.Errorf("failed to open wgctrl: %w", err)
		}
		d.client = c
	}

	if err := d.client.ConfigureDevice(d.iface, wgtypes.Config{ListenPort: &port}); err != nil {
		return fmt.Errorf("failed to set listen port on %s: %w", d.iface, err)
	}

	d.logger.Info("Updated interface listen port",
		zap.String("interface", d.iface),
		zap.Int("port", port))
	return nil
}

// Close releases the wgctrl handle.
func (d *DeviceReloader) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}
