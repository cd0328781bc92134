//go:build !linux

package socketcan

import "errors"

// ErrTxOverflow mirrors the Linux build's sentinel so cross-platform
// callers can classify against it; raw AF_CAN sockets themselves are
// Linux-only and the device type is not available here.
var ErrTxOverflow = errors.New("socketcan tx overflow (stub)")
