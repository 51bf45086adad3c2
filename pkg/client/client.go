// Package client provides the outbound side of the context exchange
// protocol: one connection to one server, used for one or more sequential
// request/response exchanges.
//
// The client is synchronous. Every blocking operation is bounded by an
// explicit timeout, and the per-call timeout is the only cancellation
// mechanism; there is no retry or reconnect logic here, callers compose that
// externally.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Maggot4703/Crew-sub000/pkg/codec"
	mcperrors "github.com/Maggot4703/Crew-sub000/pkg/errors"
	"github.com/Maggot4703/Crew-sub000/pkg/framing"
	"github.com/Maggot4703/Crew-sub000/pkg/logging"
	"github.com/Maggot4703/Crew-sub000/pkg/protocol"
)

// State tracks the client connection lifecycle.
type State int

const (
	// StateDisconnected means Connect has not succeeded yet.
	StateDisconnected State = iota
	// StateConnected means exchanges may be performed.
	StateConnected
	// StateClosed means the client is finished; a closed client is not
	// reusable.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds the client's construction-time settings.
type Config struct {
	// Host and Port locate the server.
	Host string
	Port int

	// MaxMessageSize caps the declared length of a frame. Zero selects the
	// framing default of 16 MiB.
	MaxMessageSize int

	// ConnectTimeout bounds the TCP dial.
	ConnectTimeout time.Duration

	// ReadTimeout is the default bound for ReceiveContext when the caller
	// passes no explicit timeout.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing one request frame.
	WriteTimeout time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           8765,
		MaxMessageSize: framing.DefaultMaxMessageSize,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
	}
}

// Option configures a Client during creation.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is one outbound connection to one server.
// Its methods are safe for sequential use only; the protocol is half-duplex,
// a send must complete before the matching receive.
type Client struct {
	config Config
	logger logging.Logger

	mu     sync.Mutex
	conn   net.Conn
	framer *framing.Framer
	state  State
}

// New creates a client. The connection is not opened until Connect.
func New(config Config, options ...Option) *Client {
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = framing.DefaultMaxMessageSize
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConfig().ConnectTimeout
	}
	c := &Client{
		config: config,
		logger: logging.Nop(),
		state:  StateDisconnected,
	}
	for _, option := range options {
		option(c)
	}
	c.logger = c.logger.WithFields(
		logging.String("component", "mcp-client"),
		logging.String("server_addr", c.addr()),
	)
	return c
}

// Connect opens the TCP connection, bounded by ConnectTimeout. A nil return
// means the client is connected; the returned error carries the remote
// address and underlying cause for logging or retry decisions.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisconnected {
		return mcperrors.InvalidState("connect", c.state.String())
	}

	addr := c.addr()
	conn, err := net.DialTimeout("tcp", addr, c.config.ConnectTimeout)
	if err != nil {
		if isTimeout(err) {
			return mcperrors.ConnectTimeout(addr, c.config.ConnectTimeout)
		}
		return mcperrors.ConnectionFailed(addr, err)
	}

	c.conn = conn
	c.framer = framing.New(conn, c.config.MaxMessageSize)
	c.state = StateConnected
	c.logger.Debug("connected")
	return nil
}

// SendContext encodes a value and writes it as one frame. The value is
// usually a *protocol.Envelope; envelopes are validated before encoding,
// any other JSON-like value is encoded as-is.
func (c *Client) SendContext(value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return mcperrors.InvalidState("send_context", c.state.String())
	}

	var data []byte
	var err error
	if env, ok := value.(*protocol.Envelope); ok {
		data, err = codec.EncodeEnvelope(env)
	} else {
		data, err = codec.Encode(value)
	}
	if err != nil {
		return err
	}

	if err := c.framer.WriteMessage(data, c.config.WriteTimeout); err != nil {
		return err
	}
	c.logger.Debug("context sent", logging.Int("bytes", len(data)))
	return nil
}

// ReceiveContext reads one response frame, bounded by the given timeout (a
// non-positive timeout falls back to the configured ReadTimeout). A deadline
// expiry surfaces a timeout-category error; after one the stream position is
// not resumable and the client must be closed before any further use.
func (c *Client) ReceiveContext(timeout time.Duration) (*protocol.Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return nil, mcperrors.InvalidState("receive_context", c.state.String())
	}
	if timeout <= 0 {
		timeout = c.config.ReadTimeout
	}

	payload, err := c.framer.ReadMessage(timeout)
	if err != nil {
		return nil, err
	}

	env, err := codec.DecodeEnvelope(payload)
	if err != nil {
		return nil, err
	}
	if err := protocol.CheckVersion(env.Version); err != nil {
		return nil, err
	}
	c.logger.Debug("context received",
		logging.Int("bytes", len(payload)),
		logging.String("context_type", env.ContextType))
	return env, nil
}

// Exchange performs one full send/receive pair with a fresh exchange ID in
// the logs. The pair holds no state beyond this call; there is no queuing and
// no retry.
func (c *Client) Exchange(env *protocol.Envelope, timeout time.Duration) (*protocol.Envelope, error) {
	exchangeID := uuid.NewString()
	logger := c.logger.WithFields(logging.String("exchange_id", exchangeID))

	logger.Debug("exchange started")
	if err := c.SendContext(env); err != nil {
		logger.WithError(err).Warn("exchange send failed")
		return nil, err
	}
	resp, err := c.ReceiveContext(timeout)
	if err != nil {
		logger.WithError(err).Warn("exchange receive failed")
		return nil, err
	}
	logger.Debug("exchange complete", logging.String("context_type", resp.ContextType))
	return resp, nil
}

// Close tears down the connection. It is idempotent and safe to call in any
// state, including after a failed Connect.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		c.framer = nil
		if err != nil {
			return mcperrors.ConnectionClosed(c.addr(), err)
		}
	}
	c.logger.Debug("closed")
	return nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) addr() string {
	return fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
}

func isTimeout(err error) bool {
	nerr, ok := err.(net.Error)
	return ok && nerr.Timeout()
}
