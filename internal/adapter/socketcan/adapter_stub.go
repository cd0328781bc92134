//go:build !linux

package socketcan

import (
	"context"
	"fmt"

	"github.com/kstaniek/xcan-gateway/internal/gwdevice"
)

// Device is an unusable placeholder on non-Linux builds so the gateway
// binary still compiles; raw AF_CAN sockets are Linux-only.
type Device struct{ gwdevice.Base }

// Open always fails on non-Linux platforms.
func Open(ctx context.Context, id uint8, name, iface string, qInCap, qOutCap int) (*Device, error) {
	return nil, fmt.Errorf("socketcan adapter unsupported on this platform")
}

func (d *Device) LinkState() bool { return false }
func (d *Device) Send(uint32, uint8, []byte) gwdevice.SendResult {
	return gwdevice.SendError
}
func (d *Device) Poll(loopScore int, recv func(uint32, uint8, []byte, int)) int { return loopScore }
func (d *Device) Destroy()                                                      {}

var _ gwdevice.Device = (*Device)(nil)
