// Package broker provides the connection-brokering client: one local
// identity plus zero or more ordered bidirectional channels to remote
// identities. It knows nothing about exam semantics; sessions layer
// the message protocol on top.
package broker

import (
	"context"
	"sync"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/protocol"
)

// Channel is one direct pipe to a remote identity. A channel delivers
// envelopes in send order; nothing is guaranteed across channels.
type Channel interface {
	// Remote is the identity at the far end.
	Remote() string
	// IsOpen reports whether the channel is still usable. Channel
	// loss is only observed through the close event, so a silently
	// dead path still reads as open until a send is attempted.
	IsOpen() bool
	// Send delivers one envelope to the far end. Sends on a closed
	// channel are dropped.
	Send(env protocol.Envelope) error
	// Close tears the channel down on both ends.
	Close() error
}

// MessageHandler observes every envelope arriving on any channel.
type MessageHandler func(env protocol.Envelope, ch Channel)

// ChannelHandler observes channel lifecycle events.
type ChannelHandler func(ch Channel)

// Client owns at most one broker identity at a time.
type Client interface {
	// Initialize acquires an identity, tearing down any previously
	// held one first. An empty preferred identity asks the broker to
	// assign a random one. Returns domain.ErrIdentityUnavailable if
	// the preferred identity is taken, domain.ErrBrokerUnreachable
	// if the broker cannot be reached.
	Initialize(ctx context.Context, preferred string) (string, error)
	// Connect opens a channel to an existing remote identity.
	// Returns domain.ErrConnectionRefused if the identity does not
	// exist and domain.ErrConnectionTimeout if the channel does not
	// report open within the dial bound.
	Connect(ctx context.Context, remote string) (Channel, error)
	// Send delivers to one channel, or broadcasts to every currently
	// open channel when ch is nil. Broadcast is best effort: closed
	// channels are skipped silently.
	Send(env protocol.Envelope, ch Channel)
	// SubscribeMessages registers a message observer. Multiple
	// subscribers may coexist; the returned cancel removes this one.
	SubscribeMessages(h MessageHandler) (cancel func())
	// SubscribeOpened registers an observer for newly established
	// channels, whether self- or peer-initiated.
	SubscribeOpened(h ChannelHandler) (cancel func())
	// SubscribeClosed registers an observer for channel teardown.
	SubscribeClosed(h ChannelHandler) (cancel func())
	// Shutdown releases the identity and drops all channels. Safe to
	// call repeatedly.
	Shutdown()
}

// subscribers is the shared typed-subscription registry used by both
// client implementations. Each registration gets its own slot, so a
// later subscriber never displaces an earlier one.
type subscribers struct {
	mu     sync.RWMutex
	nextID int
	msgs   map[int]MessageHandler
	opened map[int]ChannelHandler
	closed map[int]ChannelHandler
}

func newSubscribers() *subscribers {
	return &subscribers{
		msgs:   make(map[int]MessageHandler),
		opened: make(map[int]ChannelHandler),
		closed: make(map[int]ChannelHandler),
	}
}

func (s *subscribers) addMessage(h MessageHandler) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.msgs[id] = h
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.msgs, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) addOpened(h ChannelHandler) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.opened[id] = h
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.opened, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) addClosed(h ChannelHandler) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.closed[id] = h
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.closed, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) dispatchMessage(env protocol.Envelope, ch Channel) {
	s.mu.RLock()
	handlers := make([]MessageHandler, 0, len(s.msgs))
	for _, h := range s.msgs {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()
	for _, h := range handlers {
		h(env, ch)
	}
}

func (s *subscribers) dispatchOpened(ch Channel) {
	s.mu.RLock()
	handlers := make([]ChannelHandler, 0, len(s.opened))
	for _, h := range s.opened {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()
	for _, h := range handlers {
		h(ch)
	}
}

func (s *subscribers) dispatchClosed(ch Channel) {
	s.mu.RLock()
	handlers := make([]ChannelHandler, 0, len(s.closed))
	for _, h := range s.closed {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()
	for _, h := range handlers {
		h(ch)
	}
}
