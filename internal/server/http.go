package server

import (
	"io"
	"os"
	"sync"
	"time"

	"resumerank/internal/config"
	"resumerank/internal/dispatch"
	resumerankErrors "resumerank/internal/errors"
	"resumerank/internal/observability"
	"resumerank/internal/queue"
	"resumerank/internal/session"
)

// SubmitRequest represents the request body for the submit endpoint
type SubmitRequest struct {
	JobDescription string `json:"jobDescription"`
}

// QueueResponse is the body of GET /queue
type QueueResponse struct {
	Items []queue.Item  `json:"items"`
	Stats session.Stats `json:"stats"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Server exposes one upload session over HTTP
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	Session *session.Session
	// Breaker is reported by /health; nil when the breaker is disabled
	Breaker *dispatch.EndpointBreaker

	Observability *observability.ObservabilityManager

	// API Authentication, replaced at runtime by the key watcher
	keysMu  sync.RWMutex
	apiKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	keyWatcher *APIKeyWatcher

	// Out receives the startup banner
	Out    io.Writer
	Logger *resumerankErrors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig

	Breaker       *dispatch.EndpointBreaker
	Observability *observability.ObservabilityManager
}

// ConfigFrom derives a ServerConfig from application configuration
func ConfigFrom(cfg *config.Config, version string) ServerConfig {
	rl := cfg.Server.RateLimit
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.Server.MaxRequestSize,
		RateLimit:      &rl,
	}
}

// NewServer creates a Server for sess
func NewServer(appCfg *config.Config, sess *session.Session, cfg ServerConfig, logger *resumerankErrors.Logger) *Server {
	if logger == nil {
		logger = resumerankErrors.Discard()
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.BurstCapacity,
			cfg.Observability.GetMetrics(),
			logger,
		)
	}

	s := &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		Session:        sess,
		Breaker:        cfg.Breaker,
		Observability:  cfg.Observability,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Out:            os.Stdout,
		Logger:         logger,
	}
	s.SetAPIKeys(cfg.APIKeys)
	return s
}

// SetAPIKeys replaces the accepted API keys. An empty list disables
// authentication.
func (s *Server) SetAPIKeys(keys []string) {
	apiKeyMap := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	s.keysMu.Lock()
	s.apiKeys = apiKeyMap
	s.keysMu.Unlock()
}

// AttachKeyWatcher makes the server start and stop w with its lifecycle
func (s *Server) AttachKeyWatcher(w *APIKeyWatcher) {
	s.keyWatcher = w
}

func (s *Server) keyCount() int {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return len(s.apiKeys)
}

func (s *Server) validKey(key string) bool {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return s.apiKeys[key]
}
