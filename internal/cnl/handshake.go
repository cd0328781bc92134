package cnl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Hello is the magic both ends of the monitor link exchange before any
// frame flows. It is deliberately not the classic cannelloni greeting:
// this codec carries CAN-FD payloads and a flags byte the original
// layout has no room for, so an unmodified cannelloni peer must be
// rejected at the door instead of mis-parsing the first frame.
const Hello = "XCANGW/1"

// ErrBadHello is returned when the peer greets with anything but Hello.
var ErrBadHello = errors.New("bad hello")

// Handshake exchanges Hello with the peer, writing and reading
// concurrently so two ends running the same code cannot deadlock on a
// connection without buffering. The deadline covers both directions
// and is cleared before returning.
func Handshake(ctx context.Context, c net.Conn, timeout time.Duration) error {
	if err := c.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	defer c.SetDeadline(time.Time{})

	errCh := make(chan error, 2)

	go func() {
		_, err := io.WriteString(c, Hello)
		errCh <- err
	}()
	go func() {
		buf := make([]byte, len(Hello))
		_, err := io.ReadFull(c, buf)
		if err == nil && string(buf) != Hello {
			err = ErrBadHello
		}
		errCh <- err
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("handshake: %w", err)
			}
		}
	}
	return nil
}
