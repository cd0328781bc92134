package server

import (
	"context"
	"net"

	"github.com/kstaniek/xcan-gateway/internal/cnl"
)

// Handshake runs the required TCP hello exchange before a client is
// admitted to the hub or allowed to inject frames.
func (s *Server) Handshake(ctx context.Context, c net.Conn) error {
	return cnl.Handshake(ctx, c, s.handshakeTimeout)
}
