package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/kstaniek/xcan-gateway/internal/hub"
	"github.com/kstaniek/xcan-gateway/internal/metrics"
	"github.com/kstaniek/xcan-gateway/internal/transport"
)

// injectBatch bounds how many frames one read round decodes before the
// loop re-checks deadlines and shutdown, keeping a chatty client from
// monopolising its reader goroutine.
const injectBatch = 16

func (s *Server) startReader(ctxDone <-chan struct{}, conn net.Conn, cl *hub.Client, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = conn.Close() }()
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
			count, err := s.Codec.DecodeN(conn, injectBatch, func(fr transport.WireFrame) {
				if s.frameFilter != nil && !s.frameFilter(&fr) {
					return
				}
				metrics.IncTCPRx()
				s.injectFrame(fr, logger)
			})
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
					return
				}
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
				metrics.IncError(mapErrToMetric(wrap))
				s.setError(wrap)
				return
			}
			if count == 0 {
				time.Sleep(100 * time.Microsecond)
			}
			select {
			case <-ctxDone:
				return
			default:
			}
		}
	}()
}

// injectFrame forwards one decoded frame into the gateway core and
// classifies the two failure modes: a full inject buffer is ordinary
// back-pressure, anything else is an error worth surfacing.
func (s *Server) injectFrame(fr transport.WireFrame, logger *slog.Logger) {
	err := s.Send(fr)
	if err == nil {
		return
	}
	if errors.Is(err, transport.ErrTxOverflow) {
		s.totalInjectOverflow.Add(1)
		logger.Debug("inject_overflow_drop", "can_id", fmt.Sprintf("0x%X", fr.ID), "len", fr.Len)
		return
	}
	wrap := fmt.Errorf("%w: %v", ErrInjectTx, err)
	metrics.IncError(mapErrToMetric(wrap))
	s.setError(wrap)
	s.totalInjectErrors.Add(1)
	logger.Error("inject_tx_error", "error", wrap, "can_id", fmt.Sprintf("0x%X", fr.ID))
}
