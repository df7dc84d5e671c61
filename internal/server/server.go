package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/padstorm/internal/input"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server closed")

// Config configures the transport.
type Config struct {
	// Listen is the TCP address to listen on.
	Listen string
	// Path is the WebSocket endpoint.
	Path string
	// ReadLimit is the maximum size of one client message.
	ReadLimit int64
	// WriteTimeout bounds every write to a client.
	WriteTimeout time.Duration
	// PingInterval is the keepalive period. Zero disables pings.
	PingInterval time.Duration
	// SendBuffer is the number of outgoing messages queued per client.
	SendBuffer int
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		Listen:       "127.0.0.1:8765",
		Path:         "/ws",
		ReadLimit:    64 * 1024,
		WriteTimeout: time.Second,
		PingInterval: 15 * time.Second,
		SendBuffer:   256,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by the server and its handlers.
func WithLogger(l input.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics shares a metrics tracker across all client handlers.
func WithMetrics(m *input.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithHandlerHook registers a hook on every new client handler.
func WithHandlerHook(name string, newHook func(id uuid.UUID) input.Hook) Option {
	return func(s *Server) {
		s.hooks = append(s.hooks, namedHook{name: name, build: newHook})
	}
}

type namedHook struct {
	name  string
	build func(uuid.UUID) input.Hook
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// Server accepts WebSocket clients and runs one input handler per client.
type Server struct {
	cfg     Config
	log     input.Logger
	metrics *input.Metrics
	hooks   []namedHook

	mu       sync.RWMutex
	inputCfg input.Config
	clients  map[uuid.UUID]*client
	http     *http.Server
	closed   bool
}

// New creates a server. inputCfg is the handler configuration given to every
// new client.
func New(cfg Config, inputCfg input.Config, opts ...Option) (*Server, error) {
	if cfg.Path == "" || cfg.Path[0] != '/' {
		return nil, fmt.Errorf("websocket path %q must start with /", cfg.Path)
	}
	if cfg.ReadLimit <= 0 || cfg.WriteTimeout <= 0 {
		return nil, errors.New("read limit and write timeout must be positive")
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}
	if err := inputCfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		log:      nopLogger{},
		metrics:  input.NewMetrics(),
		inputCfg: inputCfg,
		clients:  make(map[uuid.UUID]*client),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the HTTP handler serving the WebSocket endpoint and
// /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.http = &http.Server{
		Handler:     s.Handler(),
		IdleTimeout: 60 * time.Second,
	}
	srv := s.http
	s.mu.Unlock()

	s.log.Info("listening on %s%s", ln.Addr(), s.cfg.Path)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting clients and closes every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.http
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// Reload applies a new handler configuration to every connected client and
// to clients that connect later.
func (s *Server) Reload(inputCfg input.Config) error {
	if err := inputCfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.inputCfg = inputCfg
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	var errs []error
	for _, c := range clients {
		if err := c.handler.Reload(inputCfg); err != nil && !errors.Is(err, input.ErrClosed) {
			errs = append(errs, fmt.Errorf("client %s: %w", c.id, err))
		}
	}
	s.log.Info("reloaded %d clients", len(clients))
	return errors.Join(errs...)
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Metrics returns the metrics shared by all client handlers.
func (s *Server) Metrics() *input.Metrics { return s.metrics }

func (s *Server) register(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c.id] = c
	return true
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
}

func (s *Server) newHandler(id uuid.UUID) (*input.Handler, error) {
	s.mu.RLock()
	cfg := s.inputCfg
	s.mu.RUnlock()

	h, err := input.NewHandler(cfg,
		input.WithID(id),
		input.WithLogger(s.log),
		input.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}
	for _, nh := range s.hooks {
		h.Hooks().RegisterNamed(nh.build(id), nh.name)
	}
	return h, nil
}

type healthResponse struct {
	Healthy   bool    `json:"healthy"`
	Message   string  `json:"message"`
	Clients   int     `json:"clients"`
	Ticks     uint64  `json:"ticks"`
	Events    uint64  `json:"events"`
	PeakMS    float64 `json:"peak_latency_ms"`
	TicksRate float64 `json:"ticks_per_second"`
}

// healthLatency is the tick latency above which the server reports itself
// unhealthy.
const healthLatency = 4 * time.Millisecond

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.metrics.HealthCheck(healthLatency)
	snap := s.metrics.Snapshot()
	resp := healthResponse{
		Healthy:   status.Healthy,
		Message:   status.Message,
		Clients:   s.Clients(),
		Ticks:     snap.TicksTotal,
		Events:    snap.EventsTotal,
		PeakMS:    float64(snap.PeakLatency) / float64(time.Millisecond),
		TicksRate: snap.TicksPerSecond,
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
