package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"portfolio-engine/internal/observability"
	"portfolio-engine/internal/storage"
)

// Config configures feed client behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultConfig returns default feed configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Client consumes a quote stream and writes prices through the asset
// definition store. Each applied quote also invokes the OnUpdate hook, which
// the engine uses to invalidate its caches.
type Client struct {
	endpoint    string
	config      Config
	definitions storage.AssetDefinitionStore

	// OnUpdate, when set, runs after each successfully applied quote.
	onUpdate func(ticker string, price float64)

	logger  *log.Logger
	metrics *observability.Metrics
	clock   func() time.Time

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	tickers   []string
	tickersMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// New creates a feed client and connects to the endpoint. The client starts
// its read and ping loops immediately; call Subscribe to start receiving
// quotes.
func New(ctx context.Context, endpoint string, definitions storage.AssetDefinitionStore, config *Config) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}

	c := &Client{
		endpoint:    endpoint,
		config:      cfg,
		definitions: definitions,
		clock:       time.Now,
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// WithLogger sets the client logger. A nil logger disables logging.
func (c *Client) WithLogger(logger *log.Logger) *Client {
	c.logger = logger
	return c
}

// WithMetrics sets the Prometheus metrics sink.
func (c *Client) WithMetrics(m *observability.Metrics) *Client {
	c.metrics = m
	return c
}

// WithOnUpdate sets the hook invoked after each applied quote.
func (c *Client) WithOnUpdate(fn func(ticker string, price float64)) *Client {
	c.onUpdate = fn
	return c
}

// connect establishes the WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Subscribe registers the tickers to stream. The set is remembered and
// re-sent after every reconnect.
func (c *Client) Subscribe(tickers []string) error {
	if c.closed.Load() {
		return errors.New("client closed")
	}

	c.tickersMu.Lock()
	c.tickers = append([]string(nil), tickers...)
	c.tickersMu.Unlock()

	return c.sendSubscribe(tickers)
}

func (c *Client) sendSubscribe(tickers []string) error {
	if len(tickers) == 0 {
		return nil
	}
	req := subscribeRequest{Type: msgTypeSubscribe, Tickers: tickers}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return errors.New("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close closes the WebSocket connection.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages from the feed and applies quotes.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			// Connection error - reconnect with exponential backoff
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	if c.metrics != nil {
		c.metrics.PriceFeedReconnects.Inc()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	c.tickersMu.RLock()
	tickers := append([]string(nil), c.tickers...)
	c.tickersMu.RUnlock()

	if err := c.sendSubscribe(tickers); err != nil {
		c.logf("resubscribe failed: %v", err)
	}
}

// handleMessage processes one incoming feed message.
func (c *Client) handleMessage(message []byte) {
	var msg feedMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logf("malformed feed message: %v", err)
		return
	}

	switch msg.Type {
	case msgTypeQuote:
		c.applyQuote(Quote{Ticker: msg.Ticker, Price: msg.Price, TimestampMs: msg.TimestampMs})
	case msgTypeError:
		c.logf("feed error: %s", msg.Error)
	}
}

// applyQuote writes one quote through the definition store. Quotes for
// unknown tickers are dropped; the feed may stream a wider set than the
// portfolio tracks.
func (c *Client) applyQuote(q Quote) {
	if q.Ticker == "" || q.Price <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	def, err := c.definitions.GetByTicker(ctx, q.Ticker)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return
		}
		c.logf("lookup %s: %v", q.Ticker, err)
		return
	}

	if err := c.definitions.UpdatePrice(ctx, def.ID, q.Price, c.clock()); err != nil {
		c.logf("update price %s: %v", q.Ticker, err)
		return
	}

	if c.metrics != nil {
		c.metrics.PriceUpdatesReceived.Inc()
	}
	if c.onUpdate != nil {
		c.onUpdate(q.Ticker, q.Price)
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A failed ping surfaces as a read error; the reader handles
				// the reconnect.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf("[pricefeed] "+format, args...)
	}
}
