package ldap

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Client forwards LDAP operations to a single go-ldap connection and exposes
// each of them as a Future. It adds no retry, validation or error translation.
type Client struct {
	opts       *Options
	logContext context.Context // Context with the ldap subsystem configured
	events     *emitter
	dial       DialFunc

	mu   sync.RWMutex
	conn Conn
}

// New creates a client for opts without connecting it. A nil opts uses
// DefaultOptions.
func New(ctx context.Context, opts *Options) *Client {
	logContext := newLoggingContext(ctx)

	var o Options
	if opts != nil {
		o = *opts
	}
	if err := o.applyDefaults(); err != nil {
		tflog.SubsystemError(logContext, subsystemLDAP, "Failed to apply option defaults", map[string]any{
			"error": err.Error(),
		})
	}

	dial := o.Dial
	if dial == nil {
		dial = dialURL
	}

	return &Client{
		opts:       &o,
		logContext: logContext,
		events:     newEmitter(),
		dial:       dial,
	}
}

// NewWithConn creates a client around an already established connection.
func NewWithConn(ctx context.Context, conn Conn, opts *Options) *Client {
	c := New(ctx, opts)
	c.conn = conn
	return c
}

// Dial creates a client and connects it.
func Dial(ctx context.Context, opts *Options) (*Client, error) {
	c := New(ctx, opts)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Options returns a copy of the client options.
func (c *Client) Options() Options {
	return *c.opts
}

// Connect dials the configured URL. A client whose connection was closed
// may connect again.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.ConnectAsync(ctx).Await(ctx)
	return err
}

// ConnectAsync dials the configured URL in the background.
func (c *Client) ConnectAsync(ctx context.Context) *Future[struct{}] {
	if c.Connected() {
		return Rejected[struct{}](ErrAlreadyConnected)
	}

	f := newFuture[struct{}]()
	go func() {
		start := time.Now()
		fields := map[string]any{
			"url":             c.opts.URL,
			"connect_timeout": c.opts.ConnectTimeout.String(),
		}
		LogConnectionEvent(c.logContext, EventType("connection_attempt"), fields)

		conn, err := c.dial(c.opts.URL,
			ldap.DialWithTLSConfig(c.opts.TLSConfig),
			ldap.DialWithDialer(&net.Dialer{Timeout: c.opts.ConnectTimeout}),
		)
		fields["duration_ms"] = time.Since(start).Milliseconds()
		if err != nil {
			fields["error"] = err.Error()
			LogConnectionEvent(c.logContext, EventConnectError, fields)
			c.events.emit(c.logContext, Event{Type: EventConnectError, URL: c.opts.URL, Err: err})
			f.settle(struct{}{}, err)
			return
		}

		if c.opts.Timeout > 0 {
			conn.SetTimeout(c.opts.Timeout)
		}

		c.mu.Lock()
		if c.conn != nil && !c.conn.IsClosing() {
			c.mu.Unlock()
			_ = conn.Close()
			f.settle(struct{}{}, ErrAlreadyConnected)
			return
		}
		c.conn = conn
		c.mu.Unlock()

		LogConnectionEvent(c.logContext, EventConnect, fields)
		c.events.emit(c.logContext, Event{Type: EventConnect, URL: c.opts.URL})
		f.settle(struct{}{}, nil)
	}()

	return f
}

// Connected reports whether the client holds a connection that is not closing.
func (c *Client) Connected() bool {
	conn := c.currentConn()
	return conn != nil && !conn.IsClosing()
}

// Conn returns the wrapped connection, or nil before Connect.
func (c *Client) Conn() Conn {
	return c.currentConn()
}

func (c *Client) currentConn() Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Close closes the wrapped connection. Closing a client that never connected
// is a no-op.
func (c *Client) Close() error {
	conn := c.currentConn()
	if conn == nil {
		return nil
	}

	err := conn.Close()
	LogConnectionEvent(c.logContext, EventClose, map[string]any{"url": c.opts.URL})
	c.events.emit(c.logContext, Event{Type: EventClose, URL: c.opts.URL, Err: err})
	return err
}

// Destroy closes the connection and reports cause, if any, to error
// subscribers before emitting a destroy event.
func (c *Client) Destroy(cause error) {
	_ = c.Close()

	if cause != nil {
		c.events.emit(c.logContext, Event{Type: EventError, Operation: "destroy", Err: cause})
	}
	c.events.emit(c.logContext, Event{Type: EventDestroy, URL: c.opts.URL, Err: cause})
}

// run forwards fn to the wrapped connection on its own goroutine and settles
// the returned future with exactly what fn returned.
func run[T any](c *Client, operation string, fields map[string]any, fn func(Conn) (T, error)) *Future[T] {
	conn := c.currentConn()
	if conn == nil {
		return Rejected[T](ErrNotConnected)
	}

	id := uuid.NewString()
	f := newFuture[T]()

	c.events.emit(c.logContext, Event{Type: EventRequest, Operation: operation, ID: id})
	done := logOperationStart(c.logContext, operation, id, fields)
	start := time.Now()

	go func() {
		value, err := fn(conn)

		done(err)
		c.events.emit(c.logContext, Event{
			Type:      EventResult,
			Operation: operation,
			ID:        id,
			Duration:  time.Since(start),
			Err:       err,
		})
		if err != nil {
			c.events.emit(c.logContext, Event{Type: EventError, Operation: operation, ID: id, Err: err})
		}

		f.settle(value, err)
	}()

	return f
}

// runVoid is run for operations without a success payload.
func runVoid(c *Client, operation string, fields map[string]any, fn func(Conn) error) *Future[struct{}] {
	return run(c, operation, fields, func(conn Conn) (struct{}, error) {
		return struct{}{}, fn(conn)
	})
}
