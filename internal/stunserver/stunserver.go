// Package stunserver answers STUN binding requests so clients can discover
// their public address before negotiating a peer connection. The protocol
// work is delegated to pion/stun; this package only owns the UDP socket and
// the request/response loop.
package stunserver

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/pion/stun/v3"

	"github.com/magesignaling/relay/internal/metrics"
)

const software = "signaling-relay"

// readBufferBytes comfortably covers a STUN binding request; anything larger
// is not a message we answer.
const readBufferBytes = 1500

type Server struct {
	addr    string
	log     *slog.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	conn net.PacketConn
}

func New(addr string, logger *slog.Logger, m *metrics.Metrics) *Server {
	return &Server{
		addr:    addr,
		log:     logger,
		metrics: m,
	}
}

// ListenAndServe binds the UDP socket and serves binding requests until
// Close is called. It returns nil on orderly shutdown.
func (s *Server) ListenAndServe() error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(conn)
}

// Serve answers binding requests on an already-bound socket. Malformed or
// non-STUN packets are ignored; per-packet failures are logged and never
// stop the loop.
func (s *Server) Serve(conn net.PacketConn) error {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.log.Info("stun responder serving", "addr", conn.LocalAddr().String())

	buf := make([]byte, readBufferBytes)
	for {
		n, raddr, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.handlePacket(conn, raddr, buf[:n])
	}
}

// Close unblocks Serve by closing the socket.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Server) handlePacket(conn net.PacketConn, raddr net.Addr, pkt []byte) {
	if !stun.IsMessage(pkt) {
		return
	}

	req := &stun.Message{Raw: append([]byte(nil), pkt...)}
	if err := req.Decode(); err != nil {
		s.log.Debug("undecodable stun packet", "remote_addr", raddr.String(), "err", err)
		return
	}
	if req.Type != stun.BindingRequest {
		return
	}

	udpAddr, ok := raddr.(*net.UDPAddr)
	if !ok {
		return
	}

	resp, err := stun.Build(
		stun.NewTransactionIDSetter(req.TransactionID),
		stun.BindingSuccess,
		&stun.XORMappedAddress{IP: udpAddr.IP, Port: udpAddr.Port},
		stun.NewSoftware(software),
		stun.Fingerprint,
	)
	if err != nil {
		s.log.Warn("build binding response", "remote_addr", raddr.String(), "err", err)
		return
	}

	if _, err := conn.WriteTo(resp.Raw, raddr); err != nil {
		s.log.Warn("send binding response", "remote_addr", raddr.String(), "err", err)
		return
	}
	s.metrics.Inc(metrics.EventSTUNBindingHandled)
	s.log.Debug("binding request answered", "remote_addr", raddr.String())
}
