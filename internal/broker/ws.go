package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/protocol"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/relay"
)

const defaultDialTimeout = 5 * time.Second

// WSClient implements Client against a relay server. One websocket
// connection carries the identity registration and all channel
// traffic; channels are logical links multiplexed by peer identity.
type WSClient struct {
	relayURL    string
	dialTimeout time.Duration
	log         zerolog.Logger
	subs        *subscribers

	mu       sync.Mutex
	conn     *websocket.Conn
	writeMu  sync.Mutex
	identity string
	channels map[string]*wsChannel
	pending  map[string]chan error
}

var _ Client = (*WSClient)(nil)

// NewWSClient builds a client for the relay at relayURL (for example
// ws://127.0.0.1:8080/ws). A non-positive dialTimeout falls back to
// the 5 second default.
func NewWSClient(relayURL string, dialTimeout time.Duration, log zerolog.Logger) *WSClient {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	return &WSClient{
		relayURL:    relayURL,
		dialTimeout: dialTimeout,
		log:         log.With().Str("component", "broker").Logger(),
		subs:        newSubscribers(),
	}
}

func (c *WSClient) Initialize(ctx context.Context, preferred string) (string, error) {
	c.Shutdown()

	id := preferred
	if id == "" {
		id = "peer-" + uuid.NewString()
	}

	endpoint := c.relayURL + "?id=" + url.QueryEscape(id)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBrokerUnreachable, err)
	}

	var first relay.Frame
	_ = conn.SetReadDeadline(time.Now().Add(c.dialTimeout))
	if err := conn.ReadJSON(&first); err != nil {
		_ = conn.Close()
		return "", fmt.Errorf("%w: %v", domain.ErrBrokerUnreachable, err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch first.Type {
	case relay.FrameRegistered:
	case relay.FrameError:
		_ = conn.Close()
		if first.Reason == relay.ReasonIdentityTaken {
			return "", domain.ErrIdentityUnavailable
		}
		return "", fmt.Errorf("%w: %s", domain.ErrBrokerUnreachable, first.Reason)
	default:
		_ = conn.Close()
		return "", fmt.Errorf("%w: unexpected %s frame", domain.ErrBrokerUnreachable, first.Type)
	}

	c.mu.Lock()
	c.conn = conn
	c.identity = id
	c.channels = make(map[string]*wsChannel)
	c.pending = make(map[string]chan error)
	c.mu.Unlock()

	go c.readPump(conn)
	c.log.Debug().Str("identity", id).Msg("registered with relay")
	return id, nil
}

func (c *WSClient) Connect(ctx context.Context, remote string) (Channel, error) {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, domain.ErrBrokerUnreachable
	}
	if ch, ok := c.channels[remote]; ok && ch.IsOpen() {
		c.mu.Unlock()
		return ch, nil
	}
	result := make(chan error, 1)
	c.pending[remote] = result
	c.mu.Unlock()

	if err := c.writeFrame(relay.Frame{Type: relay.FrameDial, To: remote}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBrokerUnreachable, err)
	}

	timer := time.NewTimer(c.dialTimeout)
	defer timer.Stop()
	select {
	case err := <-result:
		if err != nil {
			return nil, err
		}
	case <-timer.C:
		return nil, domain.ErrConnectionTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	ch := c.channels[remote]
	c.mu.Unlock()
	if ch == nil {
		return nil, domain.ErrConnectionTimeout
	}
	return ch, nil
}

func (c *WSClient) Send(env protocol.Envelope, ch Channel) {
	if ch != nil {
		_ = ch.Send(env)
		return
	}
	c.mu.Lock()
	open := make([]*wsChannel, 0, len(c.channels))
	for _, ch := range c.channels {
		if ch.IsOpen() {
			open = append(open, ch)
		}
	}
	c.mu.Unlock()
	for _, ch := range open {
		_ = ch.Send(env)
	}
}

func (c *WSClient) SubscribeMessages(h MessageHandler) func() { return c.subs.addMessage(h) }
func (c *WSClient) SubscribeOpened(h ChannelHandler) func()   { return c.subs.addOpened(h) }
func (c *WSClient) SubscribeClosed(h ChannelHandler) func()   { return c.subs.addClosed(h) }

func (c *WSClient) Shutdown() {
	c.mu.Lock()
	conn := c.conn
	channels := c.channels
	c.conn = nil
	c.identity = ""
	c.channels = nil
	c.pending = nil
	c.mu.Unlock()

	for _, ch := range channels {
		ch.markClosed()
		c.subs.dispatchClosed(ch)
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *WSClient) readPump(conn *websocket.Conn) {
	for {
		var f relay.Frame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		switch f.Type {
		case relay.FrameOpen:
			ch := c.ensureChannel(f.From)
			c.resolvePending(f.From, nil)
			if ch != nil {
				c.subs.dispatchOpened(ch)
			}
		case relay.FrameDialFailed:
			c.resolvePending(f.To, domain.ErrConnectionRefused)
		case relay.FrameData:
			var env protocol.Envelope
			if err := json.Unmarshal(f.Data, &env); err != nil {
				c.log.Debug().Str("from", f.From).Msg("dropping malformed data frame")
				continue
			}
			ch := c.ensureChannel(f.From)
			if ch != nil {
				c.subs.dispatchMessage(env, ch)
			}
		case relay.FrameClose:
			c.dropChannel(f.From)
		}
	}

	// Relay connection lost: every channel observes a close.
	c.Shutdown()
}

// ensureChannel returns the channel for a peer, creating it when the
// first open or data frame arrives from a peer-initiated link.
func (c *WSClient) ensureChannel(remote string) *wsChannel {
	if remote == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channels == nil {
		return nil
	}
	if ch, ok := c.channels[remote]; ok {
		return ch
	}
	ch := &wsChannel{client: c, remote: remote, closed: make(chan struct{})}
	c.channels[remote] = ch
	return ch
}

func (c *WSClient) dropChannel(remote string) {
	c.mu.Lock()
	ch := (*wsChannel)(nil)
	if c.channels != nil {
		ch = c.channels[remote]
		delete(c.channels, remote)
	}
	c.mu.Unlock()
	if ch != nil {
		ch.markClosed()
		c.subs.dispatchClosed(ch)
	}
}

func (c *WSClient) resolvePending(remote string, err error) {
	c.mu.Lock()
	result := c.pending[remote]
	delete(c.pending, remote)
	c.mu.Unlock()
	if result != nil {
		result <- err
	}
}

func (c *WSClient) writeFrame(f relay.Frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errChannelClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(f)
}

// wsChannel is a logical link to one peer, multiplexed over the
// client's relay connection.
type wsChannel struct {
	client *WSClient
	remote string
	closed chan struct{}
	once   sync.Once
}

func (ch *wsChannel) Remote() string { return ch.remote }

func (ch *wsChannel) IsOpen() bool {
	select {
	case <-ch.closed:
		return false
	default:
		return true
	}
}

func (ch *wsChannel) Send(env protocol.Envelope) error {
	if !ch.IsOpen() {
		return errChannelClosed
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return ch.client.writeFrame(relay.Frame{Type: relay.FrameData, To: ch.remote, Data: raw})
}

func (ch *wsChannel) Close() error {
	if ch.IsOpen() {
		_ = ch.client.writeFrame(relay.Frame{Type: relay.FrameClose, To: ch.remote})
	}
	ch.client.dropChannel(ch.remote)
	return nil
}

func (ch *wsChannel) markClosed() {
	ch.once.Do(func() { close(ch.closed) })
}
