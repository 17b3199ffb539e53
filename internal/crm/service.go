package crm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds each outbound CRM call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Phase is where a Service sits in its connection lifecycle.
type Phase string

const (
	PhaseUnconnected Phase = "unconnected"
	PhaseDisabled    Phase = "disabled"
	PhaseConnected   Phase = "connected"
)

// Service is the status wrapper. One instance holds at most one connection
// for its whole lifetime; construct it once and share it between requests.
//
// Missing credentials disable the instance permanently. An authentication
// failure caches nothing, so the next call attempts a full connect again.
type Service struct {
	connector   Connector
	credentials CredentialSource
	timeout     time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	loaded   bool
	disabled bool
	creds    Credentials
	conn     Connection
}

// Option configures a Service.
type Option func(*Service)

// WithCredentialSource replaces the SF_* environment lookup.
func WithCredentialSource(src CredentialSource) Option {
	return func(s *Service) {
		s.credentials = src
	}
}

// WithTimeout bounds each connect and query call. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used for outcome logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a status wrapper around connector. Nothing is read or
// dialed until the first GetStatus call.
func NewService(connector Connector, opts ...Option) *Service {
	s := &Service{
		connector:   connector,
		credentials: EnvCredentials,
		timeout:     DefaultTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetStatus checks the integration and returns its normalized status. It
// never returns an error and never panics.
func (s *Service) GetStatus(ctx context.Context) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("CRM status check panicked", "panic", r)
			result = Failed()
		}
	}()

	conn, err := s.connectIfNeeded(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			s.logger.Warn("CRM authentication failed", "error", err)
			return AuthError()
		}
		s.logger.Warn("CRM connection failed", "error", err)
		return Failed()
	}
	if conn == nil {
		return Disabled()
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := conn.CountContacts(queryCtx)
	if err != nil {
		s.logger.Warn("CRM contact query failed", "org", conn.Org(), "error", err)
		return Failed()
	}

	s.logger.Debug("CRM status ok", "org", conn.Org(), "contacts_count", count)
	return OK(conn.Org(), count)
}

// Phase reports the connection lifecycle position without touching the network.
func (s *Service) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.conn != nil:
		return PhaseConnected
	case s.disabled:
		return PhaseDisabled
	default:
		return PhaseUnconnected
	}
}

// connectIfNeeded returns the cached connection, or nil when disabled, or
// establishes a new one. The lock is held across the connect so concurrent
// first calls produce a single login.
func (s *Service) connectIfNeeded(ctx context.Context) (Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}

	if !s.loaded {
		s.creds = s.credentials()
		s.loaded = true
		if !s.creds.Complete() {
			s.disabled = true
			s.logger.Info("CRM integration disabled: credentials incomplete", "credentials", s.creds)
		}
	}
	if s.disabled {
		return nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.connector.Connect(connectCtx, s.creds)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, errors.New("crm connector returned no connection")
	}

	s.logger.Info("CRM connection established", "org", conn.Org())
	s.conn = conn
	return conn, nil
}
