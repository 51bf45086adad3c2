// Package server provides the listening side of the context exchange
// protocol: a TCP server that accepts many concurrent clients and runs a
// caller-supplied handler against each decoded envelope.
//
// Each accepted connection carries exactly one request/response exchange and
// is then closed. Connections are handled on their own goroutines, bounded by
// a configurable cap; failures on one connection never reach another or the
// accept loop.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/Maggot4703/Crew-sub000/pkg/codec"
	mcperrors "github.com/Maggot4703/Crew-sub000/pkg/errors"
	"github.com/Maggot4703/Crew-sub000/pkg/framing"
	"github.com/Maggot4703/Crew-sub000/pkg/logging"
	"github.com/Maggot4703/Crew-sub000/pkg/observability"
	"github.com/Maggot4703/Crew-sub000/pkg/protocol"
)

// Handler produces a response envelope from a request envelope. It is the
// server's only extension point; the server never interprets context_type or
// item contents itself. A handler shared across connections must be safe for
// concurrent use.
type Handler interface {
	Handle(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error) {
	return f(ctx, env)
}

// Config holds the server's construction-time settings. There is no
// process-wide registry; every server owns its own configuration.
type Config struct {
	// Host is the listen address.
	Host string

	// Port is the listen port. Zero asks the kernel for a free port;
	// Addr reports the bound address.
	Port int

	// MaxMessageSize caps the declared length of a frame. Zero selects the
	// framing default of 16 MiB.
	MaxMessageSize int

	// MaxConnections caps concurrently handled connections. Connections over
	// the cap are closed immediately, never queued.
	MaxConnections int

	// ReadTimeout bounds reading one request frame.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing one response frame.
	WriteTimeout time.Duration

	// ShutdownGrace is how long Stop waits for in-flight exchanges before
	// force-closing their connections.
	ShutdownGrace time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           8765,
		MaxMessageSize: framing.DefaultMaxMessageSize,
		MaxConnections: 128,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		ShutdownGrace:  5 * time.Second,
	}
}

// Option configures a Server during creation.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(metrics *observability.ServerMetrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithTracer overrides the tracer used to span each exchange. The default is
// the globally installed provider's tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// Server accepts context exchange connections and dispatches them to a
// handler.
type Server struct {
	config  Config
	handler Handler
	logger  logging.Logger
	metrics *observability.ServerMetrics
	tracer  trace.Tracer

	listener net.Listener
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	conns   map[string]net.Conn
	started bool
	stopped bool
}

// New creates a server for the given configuration and handler.
func New(config Config, handler Handler, options ...Option) (*Server, error) {
	if handler == nil {
		return nil, mcperrors.ValidationFailed("handler is nil")
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = framing.DefaultMaxMessageSize
	}
	if config.MaxConnections <= 0 {
		config.MaxConnections = DefaultConfig().MaxConnections
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = DefaultConfig().ShutdownGrace
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:  config,
		handler: handler,
		logger:  logging.Nop(),
		tracer:  otel.Tracer(observability.TracerName),
		sem:     semaphore.NewWeighted(int64(config.MaxConnections)),
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[string]net.Conn),
	}
	for _, option := range options {
		option(s)
	}
	s.logger = s.logger.WithFields(logging.String("component", "mcp-server"))
	return s, nil
}

// Start binds the listening socket and spawns the accept loop. It returns as
// soon as the socket is listening.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return mcperrors.InvalidState("start", "started")
	}
	if s.stopped {
		return mcperrors.InvalidState("start", "stopped")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return mcperrors.ConnectionFailed(addr, err)
	}
	s.listener = listener
	s.started = true

	s.logger.Info("listening", logging.String("addr", listener.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listening socket, waits up to ShutdownGrace (bounded also
// by ctx) for in-flight exchanges, then force-closes whatever remains. It is
// idempotent.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	listener := s.listener
	s.mu.Unlock()

	s.cancel()
	if listener != nil {
		if err := listener.Close(); err != nil {
			s.logger.Warn("listener close failed", logging.ErrorField(err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("stopped")
		return nil
	case <-time.After(s.config.ShutdownGrace):
	case <-ctx.Done():
	}

	// grace expired: force-close whatever is still connected
	s.mu.Lock()
	remaining := len(s.conns)
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	if remaining > 0 {
		s.logger.Warn("force-closed connections at shutdown",
			logging.Int("count", remaining))
	}

	<-done
	s.logger.Info("stopped")
	return ctx.Err()
}

// acceptLoop accepts connections until the listener closes. Every accepted
// socket gets its own goroutine; sockets over the connection cap are closed
// immediately.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", logging.ErrorField(err))
			continue
		}

		if !s.sem.TryAcquire(1) {
			s.metrics.ConnectionRefused()
			s.logger.Warn("connection refused: cap reached",
				logging.String("remote_addr", conn.RemoteAddr().String()),
				logging.Int("max_connections", s.config.MaxConnections))
			_ = conn.Close()
			continue
		}

		connID := uuid.NewString()
		s.mu.Lock()
		s.conns[connID] = conn
		s.mu.Unlock()

		s.metrics.ConnectionAccepted()
		s.wg.Add(1)
		go s.handleConn(connID, conn)
	}
}

// handleConn runs one full exchange: read, decode, handle, encode, write,
// close. Any failure transitions straight to close after best-effort error
// reporting to the client.
func (s *Server) handleConn(connID string, conn net.Conn) {
	start := time.Now()
	status := "ok"

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, connID)
		s.mu.Unlock()
		s.sem.Release(1)
		s.metrics.ConnectionClosed()
		s.metrics.ExchangeCompleted(status, time.Since(start))
		s.wg.Done()
	}()

	remoteAddr := conn.RemoteAddr().String()
	logger := s.logger.WithFields(
		logging.String("conn_id", connID),
		logging.String("remote_addr", remoteAddr),
	)

	ctx, span := s.tracer.Start(s.ctx, "mcp.exchange",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("mcp.conn_id", connID),
			attribute.String("net.peer.addr", remoteAddr),
		))
	defer span.End()

	framer := framing.New(conn, s.config.MaxMessageSize)

	fail := func(stage string, err error, reply bool) {
		status = stage + "_error"
		s.metrics.ErrorObserved(errorCategory(err))
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, stage)
		logger.WithError(err).Warn("exchange failed", logging.String("stage", stage))
		if reply {
			s.writeErrorEnvelope(framer, err)
		}
	}

	logger.Debug("exchange started", logging.String("stage", "reading"))
	payload, err := framer.ReadMessage(s.config.ReadTimeout)
	if err != nil {
		// an oversize declared length leaves the write side usable; every
		// other read failure means a dead or desynced stream with nothing
		// useful to write back
		fail("read", err, mcperrors.IsCode(err, mcperrors.CodeFrameTooLarge))
		return
	}
	s.metrics.BytesRead(len(payload))

	logger.Debug("frame received",
		logging.Int("bytes", len(payload)),
		logging.String("stage", "decoding"))
	env, err := codec.DecodeEnvelope(payload)
	if err != nil {
		fail("decode", err, true)
		return
	}
	if err := protocol.CheckVersion(env.Version); err != nil {
		fail("version", err, true)
		return
	}

	logger.Debug("envelope decoded",
		logging.String("context_type", env.ContextType),
		logging.String("stage", "handling"))
	span.SetAttributes(attribute.String("mcp.context_type", env.ContextType))

	resp, err := s.invokeHandler(ctx, env)
	if err != nil {
		fail("handle", err, true)
		return
	}
	if resp == nil {
		fail("handle", mcperrors.ValidationFailed("handler returned nil envelope"), true)
		return
	}

	logger.Debug("handler finished", logging.String("stage", "encoding"))
	data, err := codec.EncodeEnvelope(resp)
	if err != nil {
		fail("encode", err, true)
		return
	}

	logger.Debug("writing response",
		logging.Int("bytes", len(data)),
		logging.String("stage", "writing"))
	if err := framer.WriteMessage(data, s.config.WriteTimeout); err != nil {
		fail("write", err, false)
		return
	}
	s.metrics.BytesWritten(len(data))

	span.SetStatus(otelcodes.Ok, "")
	logger.Debug("exchange complete",
		logging.Duration("duration", time.Since(start)),
		logging.String("stage", "closed"))
}

// invokeHandler runs the handler with panic recovery so a misbehaving handler
// cannot take down the server process.
func (s *Server) invokeHandler(ctx context.Context, env *protocol.Envelope) (resp *protocol.Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = mcperrors.HandlerPanic(r)
		}
	}()
	return s.handler.Handle(ctx, env)
}

// writeErrorEnvelope sends a best-effort error envelope. If the connection is
// no longer writable the failure is logged and swallowed; the connection is
// closing either way.
func (s *Server) writeErrorEnvelope(framer *framing.Framer, cause error) {
	env := protocol.NewErrorEnvelope(cause.Error())
	data, err := codec.EncodeEnvelope(env)
	if err != nil {
		s.logger.Error("failed to encode error envelope", logging.ErrorField(err))
		return
	}
	if err := framer.WriteMessage(data, s.config.WriteTimeout); err != nil {
		s.logger.Debug("failed to deliver error envelope", logging.ErrorField(err))
		return
	}
	s.metrics.BytesWritten(len(data))
}

func errorCategory(err error) string {
	if perr, ok := mcperrors.AsProtocolError(err); ok {
		return string(perr.Category())
	}
	return string(mcperrors.CategoryInternal)
}
