// Package httpapi exposes the session manager and the record pipelines over
// HTTP.
package httpapi

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"krafti/internal/bus"
	"krafti/internal/metrics"
	"krafti/internal/pipeline"
	"krafti/internal/session"
	"krafti/internal/users"
)

const (
	defaultRequestTimeout = 30 * time.Second
	publishTimeout        = 2 * time.Second
)

// Config controls runtime behaviour of the HTTP layer.
type Config struct {
	ServiceName    string
	AuthCookie     string
	AllowedOrigins []string

	// RateLimit is the number of requests per minute allowed per client IP.
	// Zero disables limiting.
	RateLimit int

	RequestTimeout time.Duration
}

// Deps holds the collaborators the HTTP layer dispatches to.
type Deps struct {
	DB       *gorm.DB
	Sessions *session.Manager
	Users    *users.Directory
	Admin    *pipeline.Registry
	Web      *pipeline.Registry
	Metrics  *metrics.Metrics

	// Bus receives admin mutation events; nil disables publishing.
	Bus    bus.Publisher
	Logger *zerolog.Logger
}

// API wires dependencies and configuration for HTTP handlers.
type API struct {
	db       *gorm.DB
	sessions *session.Manager
	users    *users.Directory
	admin    *pipeline.Registry
	web      *pipeline.Registry
	metrics  *metrics.Metrics
	bus      bus.Publisher
	log      zerolog.Logger
	config   Config
	now      func() time.Time
}

// New validates deps and applies defaults to cfg.
func New(deps Deps, cfg Config) (*API, error) {
	switch {
	case deps.DB == nil:
		return nil, errors.New("database is required")
	case deps.Sessions == nil:
		return nil, errors.New("session manager is required")
	case deps.Users == nil:
		return nil, errors.New("user directory is required")
	case deps.Admin == nil || deps.Web == nil:
		return nil, errors.New("admin and web registries are required")
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "krafti-api"
	}
	if cfg.AuthCookie == "" {
		cfg.AuthCookie = session.DefaultCookie
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	logger := log.Logger
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	return &API{
		db:       deps.DB,
		sessions: deps.Sessions,
		users:    deps.Users,
		admin:    deps.Admin,
		web:      deps.Web,
		metrics:  deps.Metrics,
		bus:      deps.Bus,
		log:      logger,
		config:   cfg,
		now:      time.Now,
	}, nil
}
