// Package relay implements the connection-brokering service: a
// websocket hub that assigns identities and forwards frames between
// them. It is the self-hosted stand-in for any signaling service
// satisfying the same contract.
package relay

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server brokers links between registered identities.
type Server struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[string]*peerConn
}

func NewServer(log zerolog.Logger) *Server {
	return &Server{
		log: log.With().Str("component", "relay").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		peers: make(map[string]*peerConn),
	}
}

// peerConn is one registered identity. All writes go through the send
// channel so a single writer goroutine owns the websocket.
type peerConn struct {
	id   string
	conn *websocket.Conn
	send chan Frame

	mu    sync.Mutex
	links map[string]struct{}
}

func (p *peerConn) enqueue(f Frame) {
	select {
	case p.send <- f:
	default:
		// Slow consumer; drop rather than stall the whole relay.
	}
}

func (p *peerConn) link(id string) {
	p.mu.Lock()
	p.links[id] = struct{}{}
	p.mu.Unlock()
}

func (p *peerConn) unlink(id string) {
	p.mu.Lock()
	delete(p.links, id)
	p.mu.Unlock()
}

func (p *peerConn) linked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.links))
	for id := range p.links {
		out = append(out, id)
	}
	return out
}

// ServeWS upgrades a client connection and runs its read loop. The
// identity is taken from the id query parameter; an empty id is
// rejected before upgrade.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	peer := &peerConn{
		id:    id,
		conn:  conn,
		send:  make(chan Frame, 64),
		links: make(map[string]struct{}),
	}

	if !s.register(peer) {
		_ = conn.WriteJSON(Frame{Type: FrameError, Reason: ReasonIdentityTaken})
		_ = conn.Close()
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for f := range peer.send {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
	}()

	peer.enqueue(Frame{Type: FrameRegistered, To: id})
	s.log.Info().Str("identity", id).Msg("peer registered")

	s.readLoop(peer)

	s.unregister(peer)
	close(peer.send)
	<-writerDone
	_ = conn.Close()
	s.log.Info().Str("identity", id).Msg("peer disconnected")
}

func (s *Server) readLoop(peer *peerConn) {
	for {
		var f Frame
		if err := peer.conn.ReadJSON(&f); err != nil {
			return
		}
		switch f.Type {
		case FrameDial:
			s.handleDial(peer, f.To)
		case FrameData:
			if target, ok := s.lookup(f.To); ok {
				target.enqueue(Frame{Type: FrameData, From: peer.id, Data: f.Data})
			}
		case FrameClose:
			peer.unlink(f.To)
			if target, ok := s.lookup(f.To); ok {
				target.unlink(peer.id)
				target.enqueue(Frame{Type: FrameClose, From: peer.id})
			}
		default:
			// Unknown frames from clients are dropped.
		}
	}
}

func (s *Server) handleDial(peer *peerConn, to string) {
	target, ok := s.lookup(to)
	if !ok {
		peer.enqueue(Frame{Type: FrameDialFailed, To: to, Reason: ReasonUnknownIdentity})
		return
	}
	peer.link(to)
	target.link(peer.id)
	target.enqueue(Frame{Type: FrameOpen, From: peer.id})
	peer.enqueue(Frame{Type: FrameOpen, From: to})
}

func (s *Server) register(peer *peerConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.peers[peer.id]; taken {
		return false
	}
	s.peers[peer.id] = peer
	return true
}

func (s *Server) unregister(peer *peerConn) {
	s.mu.Lock()
	if s.peers[peer.id] == peer {
		delete(s.peers, peer.id)
	}
	s.mu.Unlock()

	// Every linked peer observes the disconnect as a close event.
	for _, id := range peer.linked() {
		if target, ok := s.lookup(id); ok {
			target.unlink(peer.id)
			target.enqueue(Frame{Type: FrameClose, From: peer.id})
		}
	}
}

func (s *Server) lookup(id string) (*peerConn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	return p, ok
}

// Handler returns the HTTP mux for the relay: the websocket endpoint
// plus a liveness probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", s.ServeWS)
	return mux
}
