//go:build linux

package socketcan

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/xcan-gateway/internal/frame"
	"github.com/kstaniek/xcan-gateway/internal/transport"
)

// canEFFFlag mirrors <linux/can.h>'s CAN_EFF_FLAG bit, set on can_id when
// the frame carries a 29-bit extended identifier.
const canEFFFlag uint32 = 0x80000000

// Device is a raw AF_CAN/SOCK_RAW socket bound to one SocketCAN interface.
// CAN-FD frames are explicitly disabled at Open time, matching the
// original adapter's classic-CAN-only scope; extended IDs are supported.
type Device struct {
	fd    int
	iface string
}

// Open binds a raw CAN socket to iface.
func Open(iface string) (*Device, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket(AF_CAN): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 0); err != nil {
		// Older kernels may not know this option; ignore ENOPROTOOPT
		if err != unix.ENOPROTOOPT {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("disable CAN FD: %w", err)
		}
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("if %q: %w", iface, err)
	}
	sa := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind(can@%s): %w", iface, err)
	}
	return &Device{fd: fd, iface: iface}, nil
}

func (d *Device) Close() error { return unix.Close(d.fd) }

// LinkState reports whether the bound network interface is currently up.
func (d *Device) LinkState() bool {
	ifi, err := net.InterfaceByName(d.iface)
	if err != nil {
		return false
	}
	return ifi.Flags&net.FlagUp != 0
}

// ReadFrame reads one classic CAN frame from the raw CAN socket.
func (d *Device) ReadFrame(fr *transport.WireFrame) error {
	var buf [unix.CAN_MTU]byte // classic CAN MTU = 16 bytes
	n, err := unix.Read(d.fd, buf[:])
	if err != nil {
		return err
	}
	if n != unix.CAN_MTU {
		return fmt.Errorf("short read: %d", n)
	}

	// struct can_frame (linux/can.h):
	//   can_id  u32   [0:4]  (includes EFF/RTR/ERR flags)
	//   can_dlc u8    [4]
	//   pad     3B    [5:8]
	//   data    [8]   [8:16]
	//
	// NOTE: The kernel provides fields in host byte order. On common Linux
	// archs (little-endian) this matches binary.LittleEndian. If you ever
	// target big-endian, switch to BigEndian here.
	id := binary.LittleEndian.Uint32(buf[0:4])
	dlc := int(buf[4])
	if dlc < 0 || dlc > 8 {
		dlc = 8
	}

	var flags frame.Flags
	if id&canEFFFlag != 0 {
		flags |= frame.FlagExtendedID
		id &= transport.CANEFFMask
	} else {
		id &= transport.CANSFFMask
	}

	fr.ID = id
	fr.Flags = uint8(flags)
	fr.Len = uint8(dlc)
	copy(fr.Data[:], buf[8:8+dlc])
	return nil
}

// WriteFrame writes one classic CAN frame to the raw CAN socket.
func (d *Device) WriteFrame(fr transport.WireFrame) error {
	var buf [unix.CAN_MTU]byte
	id := fr.ID
	if frame.Flags(fr.Flags)&frame.FlagExtendedID != 0 {
		id = (id & transport.CANEFFMask) | canEFFFlag
	} else {
		id &= transport.CANSFFMask
	}
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = fr.Len
	copy(buf[8:], fr.Data[:fr.Len])
	_, err := unix.Write(d.fd, buf[:])
	return err
}
