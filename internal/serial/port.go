package serial

import (
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is the slice of tarm/serial the UART CAN bridge actually uses;
// tests substitute an in-memory pipe.
type Port interface {
	io.ReadWriteCloser
}

// Open opens the UART device at path. readTimeout bounds each Read so
// the adapter's read loop can notice shutdown; it is not a link-level
// timeout.
func Open(path string, baud int, readTimeout time.Duration) (Port, error) {
	return serial.OpenPort(&serial.Config{Name: path, Baud: baud, ReadTimeout: readTimeout})
}
