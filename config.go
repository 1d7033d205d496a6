// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package herita

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/herita/certification"
	"github.com/blinklabs-io/herita/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultShutdownTimeout = 30 * time.Second

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	now              func() time.Time
	dataDir          string
	metadataBackend  string
	metadataDsn      string
	metadataConn     metadata.Connection
	blobBackend      string
	apiListenAddress string
	registryName     string
	registrySymbol   string
	jwtSecret        []byte
	admin            certification.Identity
	shutdownTimeout  time.Duration
	tracing          bool
	tracingStdout    bool
}

func (n *Node) configValidate() error {
	if n.config.shutdownTimeout < 0 {
		return errors.New("shutdown timeout cannot be negative")
	}
	if n.config.apiListenAddress != "" && len(n.config.jwtSecret) == 0 {
		n.config.logger.Warn(
			"no JWT secret configured, mutating API routes will reject every request",
			"component", "node",
		)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the Node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new herita config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithMetadataBackend specifies the metadata store to use: sqlite, postgres or mysql
func WithMetadataBackend(backend string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataBackend = backend
	}
}

// WithMetadataDSN specifies the connection string for the postgres and mysql metadata backends
func WithMetadataDSN(dsn string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataDsn = dsn
	}
}

// WithMetadataConnection specifies individual connection settings for the
// postgres and mysql metadata backends, used when no DSN is given
func WithMetadataConnection(conn metadata.Connection) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataConn = conn
	}
}

// WithBlobBackend specifies the blob store to use
func WithBlobBackend(backend string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobBackend = backend
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithAPIListenAddress specifies the listen address for the HTTP API. An empty string disables the API
func WithAPIListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = addr
	}
}

// WithJWTSecret specifies the key used to validate API bearer tokens
func WithJWTSecret(secret []byte) ConfigOptionFunc {
	return func(c *Config) {
		c.jwtSecret = secret
	}
}

// WithAdmin specifies the administrator for a registry that has none stored yet
func WithAdmin(admin certification.Identity) ConfigOptionFunc {
	return func(c *Config) {
		c.admin = admin
	}
}

func WithRegistryName(name string) ConfigOptionFunc {
	return func(c *Config) {
		c.registryName = name
	}
}

func WithRegistrySymbol(symbol string) ConfigOptionFunc {
	return func(c *Config) {
		c.registrySymbol = symbol
	}
}

// WithClock overrides the time source used for issuance and verification timestamps
func WithClock(now func() time.Time) ConfigOptionFunc {
	return func(c *Config) {
		c.now = now
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
