package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrNotConnected is returned by Emit while no socket is open. The message
// is dropped; there is no outbound queue.
var ErrNotConnected = errors.New("realtime: not connected")

const writeWait = 10 * time.Second

// Handler receives the raw data of one event occurrence.
type Handler func(data json.RawMessage)

// Subscription identifies one On registration. The zero value is valid and
// removing it is a no-op.
type Subscription struct {
	event string
	id    string
}

// NewSubscription builds a Subscription for transports other than Client.
func NewSubscription(event, id string) Subscription {
	return Subscription{event: event, id: id}
}

// Event is the event name the subscription was registered for.
func (s Subscription) Event() string { return s.event }

// ID distinguishes registrations of the same event.
func (s Subscription) ID() string { return s.id }

type registration struct {
	id string
	h  Handler
}

// Client maintains at most one socket per signed-in user and multiplexes
// named events over it. Holders share the socket through Acquire/Release;
// the socket closes when the last holder releases it.
type Client struct {
	url        string
	tokens     oauth2.TokenSource
	dialer     *websocket.Dialer
	logger     *zap.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	mu       sync.Mutex
	userID   string
	refs     int
	gen      uint64
	cancel   context.CancelFunc
	conn     *websocket.Conn
	handlers map[string][]registration

	// gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex
}

// Option customises a Client.
type Option func(*Client)

// WithBackoff sets the reconnect backoff bounds.
func WithBackoff(lo, hi time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = lo
		c.maxBackoff = hi
	}
}

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// NewClient creates a disconnected client for the socket endpoint at
// rawURL. tokens may be nil when the endpoint needs no authentication.
func NewClient(rawURL string, tokens oauth2.TokenSource, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		url:        rawURL,
		tokens:     tokens,
		dialer:     websocket.DefaultDialer,
		logger:     logger,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
		handlers:   make(map[string][]registration),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire registers a holder for userID's socket and connects if needed.
// Acquiring for a different user reconnects and invalidates every earlier
// hold. The returned func drops this hold; calling it more than once, or
// after the hold was invalidated, does nothing.
func (c *Client) Acquire(userID string) (release func()) {
	c.mu.Lock()
	if c.userID != userID || c.refs == 0 {
		c.gen++
		c.refs = 0
	}
	c.refs++
	gen := c.gen
	c.mu.Unlock()

	c.Connect(userID)

	var once sync.Once
	return func() {
		once.Do(func() { c.release(gen) })
	}
}

// release drops one holder of generation gen. The last release closes the
// socket.
func (c *Client) release(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.refs == 0 {
		return
	}
	c.refs--
	if c.refs == 0 {
		c.stopLocked()
		c.userID = ""
		c.gen++
	}
}

// Connect opens the socket for userID in the background. It is a no-op when
// already connected (or connecting) for the same user; a different user
// tears down the previous socket first.
func (c *Client) Connect(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil && c.userID == userID {
		return
	}
	c.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c.userID = userID
	c.cancel = cancel

	go c.run(ctx, userID)
}

// Disconnect closes the socket regardless of outstanding holders.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs = 0
	c.gen++
	c.stopLocked()
	c.userID = ""
}

// IsConnected reports whether a socket is currently open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// On registers h for every occurrence of event. Registrations accumulate.
func (c *Client) On(event string, h Handler) Subscription {
	sub := Subscription{event: event, id: uuid.NewString()}

	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], registration{id: sub.id, h: h})
	c.mu.Unlock()

	return sub
}

// Off removes exactly the registration identified by sub.
func (c *Client) Off(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	regs := c.handlers[sub.event]
	for i, r := range regs {
		if r.id != sub.id {
			continue
		}
		c.handlers[sub.event] = append(regs[:i:i], regs[i+1:]...)
		if len(c.handlers[sub.event]) == 0 {
			delete(c.handlers, sub.event)
		}
		return
	}
}

// Emit sends event with payload if a socket is open.
func (c *Client) Emit(event string, payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("writing %s: %w", event, err)
	}
	return nil
}

// stopLocked cancels the connection loop and closes the open socket.
// c.mu must be held.
func (c *Client) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// run dials, reads until the socket drops, and redials with exponential
// backoff until ctx is cancelled.
func (c *Client) run(ctx context.Context, userID string) {
	backoff := c.minBackoff

	for {
		conn, err := c.dial(ctx, userID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("realtime dial failed",
				zap.String("user_id", userID),
				zap.Duration("retry_in", backoff),
				zap.Error(err),
			)
		} else {
			if !c.attach(ctx, conn) {
				conn.Close()
				return
			}
			c.logger.Info("realtime connected", zap.String("user_id", userID))
			backoff = c.minBackoff

			c.readLoop(conn)
			c.detach(conn)

			if ctx.Err() != nil {
				return
			}
			c.logger.Info("realtime disconnected, reconnecting",
				zap.String("user_id", userID),
				zap.Duration("retry_in", backoff),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

func (c *Client) dial(ctx context.Context, userID string) (*websocket.Conn, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("parsing realtime url: %w", err)
	}
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("loading token: %w", err)
		}
		tok.SetAuthHeader(&http.Request{Header: header})
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", u.Host, err)
	}
	return conn, nil
}

// attach publishes conn unless the loop was stopped while dialing.
func (c *Client) attach(ctx context.Context, conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	c.conn = conn
	return true
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.logger.Debug("dropping malformed realtime frame", zap.Int("bytes", len(data)))
			continue
		}
		c.dispatch(env)
	}
}

// dispatch calls every handler registered for env.Event. Handlers run on
// the read goroutine without c.mu held.
func (c *Client) dispatch(env Envelope) {
	c.mu.Lock()
	regs := append([]registration(nil), c.handlers[env.Event]...)
	c.mu.Unlock()

	for _, r := range regs {
		r.h(env.Data)
	}
}
