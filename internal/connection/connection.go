// Package connection turns connection strings and credentials into open,
// verified database handles.
package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"plugin"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockplane/schemaclone/database"
	"github.com/lockplane/schemaclone/internal/cloneerr"
)

// DefaultPingTimeout bounds the connectivity check made on every acquire
const DefaultPingTimeout = 5 * time.Second

// DriverSpec names an external database/sql driver. When Path is set it is
// opened as a Go plugin whose init registers the driver under Name.
type DriverSpec struct {
	Name string
	Path string
}

// Request describes one connection
type Request struct {
	URL      string
	Username string
	Password string
	Driver   *DriverSpec
}

// Dialect returns the dialect detected from the URL
func (r Request) Dialect() database.Dialect {
	return DetectDialect(r.URL)
}

// ForDatabase returns a copy of the request addressing database name on
// the same server
func (r Request) ForDatabase(name string) (Request, error) {
	u, err := WithDatabase(r.URL, r.Dialect(), name)
	if err != nil {
		return Request{}, cloneerr.New(cloneerr.Configuration, "address database", name, err)
	}
	r.URL = u
	return r, nil
}

// Provider opens connections
type Provider struct {
	logger      zerolog.Logger
	pingTimeout time.Duration
	loadPlugin  func(path string) error
}

// Option configures a Provider
type Option func(*Provider)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithPingTimeout sets the connectivity check timeout
func WithPingTimeout(d time.Duration) Option {
	return func(p *Provider) { p.pingTimeout = d }
}

// NewProvider returns a Provider
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		logger:      zerolog.Nop(),
		pingTimeout: DefaultPingTimeout,
		loadPlugin:  openPlugin,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func openPlugin(path string) error {
	_, err := plugin.Open(path)
	return err
}

// Acquire opens a connection and pings it. The caller closes the handle.
func (p *Provider) Acquire(ctx context.Context, req Request) (*sql.DB, error) {
	if req.URL == "" {
		return nil, cloneerr.New(cloneerr.Configuration, "acquire connection", "", errors.New("no database URL configured"))
	}
	target := Redact(req.URL)
	dialect := req.Dialect()

	driverName, err := p.driverName(req, dialect)
	if err != nil {
		return nil, cloneerr.New(cloneerr.Connection, "load driver", target, err)
	}

	dsn, err := DSN(req.URL, dialect, req.Username, req.Password)
	if err != nil {
		return nil, cloneerr.New(cloneerr.Connection, "acquire connection", target, err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, cloneerr.New(cloneerr.Connection, "acquire connection", target, fmt.Errorf("failed to open connection: %w", err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, p.pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, cloneerr.New(cloneerr.Connection, "acquire connection", target, fmt.Errorf("failed to ping database: %w", err))
	}

	p.logger.Debug().Str("url", target).Str("driver", driverName).Msg("Connected")
	return db, nil
}

func (p *Provider) driverName(req Request, dialect database.Dialect) (string, error) {
	if req.Driver == nil || req.Driver.Name == "" {
		if req.Driver != nil && req.Driver.Path != "" {
			return "", fmt.Errorf("driver path %s given without a driver name", req.Driver.Path)
		}
		name := dialect.DriverName()
		if name == "" {
			return "", fmt.Errorf("cannot determine database type from URL; expected postgres://, sqlite://, file:, libsql:// or a .db path")
		}
		return name, nil
	}

	if req.Driver.Path != "" && !slices.Contains(sql.Drivers(), req.Driver.Name) {
		if err := p.loadPlugin(req.Driver.Path); err != nil {
			return "", fmt.Errorf("failed to load driver plugin %s: %w", req.Driver.Path, err)
		}
		p.logger.Debug().Str("driver", req.Driver.Name).Str("path", req.Driver.Path).Msg("Loaded driver plugin")
	}
	if !slices.Contains(sql.Drivers(), req.Driver.Name) {
		return "", fmt.Errorf("database/sql driver %q is not registered (available: %v)", req.Driver.Name, sql.Drivers())
	}
	return req.Driver.Name, nil
}
