package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/protocol"
)

var errChannelClosed = errors.New("channel closed")

// Hub is an in-process broker: clients created from the same hub can
// reach each other by identity. Used by tests and single-process
// demos; the relay-backed client covers the networked case.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*MemoryClient
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*MemoryClient)}
}

// NewClient returns an unregistered client attached to this hub.
func (h *Hub) NewClient() *MemoryClient {
	return &MemoryClient{hub: h, subs: newSubscribers()}
}

func (h *Hub) register(id string, c *MemoryClient) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, taken := h.clients[id]; taken {
		return domain.ErrIdentityUnavailable
	}
	h.clients[id] = c
	return nil
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

func (h *Hub) lookup(id string) (*MemoryClient, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	return c, ok
}

// MemoryClient implements Client over a Hub.
type MemoryClient struct {
	hub  *Hub
	subs *subscribers

	mu       sync.Mutex
	identity string
	channels map[*memoryChannel]struct{}
}

var _ Client = (*MemoryClient)(nil)

func (c *MemoryClient) Initialize(_ context.Context, preferred string) (string, error) {
	c.Shutdown()

	id := preferred
	if id == "" {
		id = "peer-" + uuid.NewString()
	}
	if err := c.hub.register(id, c); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.identity = id
	c.channels = make(map[*memoryChannel]struct{})
	c.mu.Unlock()
	return id, nil
}

func (c *MemoryClient) Connect(_ context.Context, remote string) (Channel, error) {
	c.mu.Lock()
	local := c.identity
	c.mu.Unlock()
	if local == "" {
		return nil, domain.ErrBrokerUnreachable
	}

	peer, ok := c.hub.lookup(remote)
	if !ok {
		return nil, domain.ErrConnectionRefused
	}

	mine, theirs := newChannelPair(c, peer)
	c.track(mine)
	peer.track(theirs)

	c.subs.dispatchOpened(mine)
	peer.subs.dispatchOpened(theirs)
	return mine, nil
}

func (c *MemoryClient) Send(env protocol.Envelope, ch Channel) {
	if ch != nil {
		_ = ch.Send(env)
		return
	}
	for _, open := range c.openChannels() {
		_ = open.Send(env)
	}
}

func (c *MemoryClient) SubscribeMessages(h MessageHandler) func() { return c.subs.addMessage(h) }
func (c *MemoryClient) SubscribeOpened(h ChannelHandler) func()   { return c.subs.addOpened(h) }
func (c *MemoryClient) SubscribeClosed(h ChannelHandler) func()   { return c.subs.addClosed(h) }

func (c *MemoryClient) Shutdown() {
	c.mu.Lock()
	id := c.identity
	channels := make([]*memoryChannel, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	c.identity = ""
	c.channels = nil
	c.mu.Unlock()

	if id != "" {
		c.hub.unregister(id)
	}
	for _, ch := range channels {
		_ = ch.Close()
	}
}

func (c *MemoryClient) track(ch *memoryChannel) {
	c.mu.Lock()
	if c.channels != nil {
		c.channels[ch] = struct{}{}
	}
	c.mu.Unlock()
}

func (c *MemoryClient) drop(ch *memoryChannel) {
	c.mu.Lock()
	if c.channels != nil {
		delete(c.channels, ch)
	}
	c.mu.Unlock()
}

func (c *MemoryClient) openChannels() []*memoryChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*memoryChannel, 0, len(c.channels))
	for ch := range c.channels {
		if ch.IsOpen() {
			out = append(out, ch)
		}
	}
	return out
}

// memoryChannel is one direction-agnostic end of an in-process pipe.
// Each end owns a queue drained by a single goroutine, which preserves
// per-channel ordering while keeping delivery asynchronous.
type memoryChannel struct {
	owner  *MemoryClient
	remote string
	peer   *memoryChannel

	out    chan protocol.Envelope
	closed chan struct{}
	once   sync.Once
}

func newChannelPair(a, b *MemoryClient) (*memoryChannel, *memoryChannel) {
	a.mu.Lock()
	aID := a.identity
	a.mu.Unlock()
	b.mu.Lock()
	bID := b.identity
	b.mu.Unlock()

	mine := &memoryChannel{owner: a, remote: bID, out: make(chan protocol.Envelope, 64), closed: make(chan struct{})}
	theirs := &memoryChannel{owner: b, remote: aID, out: make(chan protocol.Envelope, 64), closed: make(chan struct{})}
	mine.peer = theirs
	theirs.peer = mine

	go mine.pump()
	go theirs.pump()
	return mine, theirs
}

// pump drains envelopes sent from this end and delivers them to the
// peer's owner, tagged with the peer channel as the reply path.
func (ch *memoryChannel) pump() {
	for {
		select {
		case env := <-ch.out:
			ch.peer.owner.subs.dispatchMessage(env, ch.peer)
		case <-ch.closed:
			return
		}
	}
}

func (ch *memoryChannel) Remote() string { return ch.remote }

func (ch *memoryChannel) IsOpen() bool {
	select {
	case <-ch.closed:
		return false
	default:
		return true
	}
}

func (ch *memoryChannel) Send(env protocol.Envelope) error {
	select {
	case <-ch.closed:
		return errChannelClosed
	case ch.out <- env:
		return nil
	}
}

func (ch *memoryChannel) Close() error {
	ch.once.Do(func() {
		close(ch.closed)
		ch.owner.drop(ch)
		ch.owner.subs.dispatchClosed(ch)
		_ = ch.peer.Close()
	})
	return nil
}
