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
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/herita/certification"
	"github.com/blinklabs-io/herita/database/plugin/blob"
	"github.com/blinklabs-io/herita/database/plugin/metadata"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "herita.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultConfigDir       = ".herita"
	DefaultConfigFile      = "herita.yaml"
	envPrefix              = "herita"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// Config holds the node configuration. AdminIdentity seeds the registry
// administrator on first start and is ignored once one is stored.
type Config struct {
	DatabasePath    string `yaml:"databasePath"    split_words:"true"`
	MetadataBackend string `yaml:"metadataBackend" split_words:"true"`
	MetadataDsn     string `yaml:"metadataDsn"     split_words:"true"`
	BlobBackend     string `yaml:"blobBackend"     split_words:"true"`
	BindAddr        string `yaml:"bindAddr"        split_words:"true"`
	AdminIdentity   string `yaml:"adminIdentity"   split_words:"true"`
	JwtSecret       string `yaml:"jwtSecret"       split_words:"true"`
	RegistryName    string `yaml:"registryName"    split_words:"true"`
	RegistrySymbol  string `yaml:"registrySymbol"  split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	// Individual connection settings for the network metadata backends,
	// used when metadataDsn is empty
	MetadataHost     string `yaml:"metadataHost"     split_words:"true"`
	MetadataUser     string `yaml:"metadataUser"     split_words:"true"`
	MetadataPassword string `yaml:"metadataPassword" split_words:"true"`
	MetadataDatabase string `yaml:"metadataDatabase" split_words:"true"`
	MetadataSslMode  string `yaml:"metadataSslMode"  split_words:"true"`
	MetadataTimeZone string `yaml:"metadataTimeZone" split_words:"true"`
	MetadataPort     uint   `yaml:"metadataPort"     split_words:"true"`
	ApiPort          uint   `yaml:"apiPort"          split_words:"true"`
	MetricsPort      uint   `yaml:"metricsPort"      split_words:"true"`
	Tracing          bool   `yaml:"tracing"`
	TracingStdout    bool   `yaml:"tracingStdout"    split_words:"true"`
}

// MetadataConnection returns the individual metadata connection settings
func (c *Config) MetadataConnection() metadata.Connection {
	return metadata.Connection{
		Host:     c.MetadataHost,
		Port:     c.MetadataPort,
		User:     c.MetadataUser,
		Password: c.MetadataPassword,
		Database: c.MetadataDatabase,
		SSLMode:  c.MetadataSslMode,
		TimeZone: c.MetadataTimeZone,
	}
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    ".herita",
		MetadataBackend: metadata.DefaultBackend,
		BlobBackend:     blob.DefaultBackend,
		BindAddr:        "0.0.0.0",
		RegistryName:    certification.DefaultName,
		RegistrySymbol:  certification.DefaultSymbol,
		ShutdownTimeout: DefaultShutdownTimeout,
		ApiPort:         8080,
		MetricsPort:     12799,
	}
}

var globalConfig = DefaultConfig()

// LoadConfig builds the configuration from the defaults, then the YAML file,
// then HERITA_* environment variables. Without an explicit file,
// ~/.herita/herita.yaml and /etc/herita/herita.yaml are tried in turn.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

func findConfigFile() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, DefaultConfigDir, DefaultConfigFile)
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := filepath.Join("/etc/herita", DefaultConfigFile)
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

// Validate checks values that cannot be caught by parsing alone
func (c *Config) Validate() error {
	switch c.MetadataBackend {
	case metadata.BackendSqlite:
	case metadata.BackendPostgres, metadata.BackendMysql:
		if c.MetadataDsn == "" && c.MetadataHost == "" {
			return fmt.Errorf(
				"metadataDsn or metadataHost is required for the %s metadata backend",
				c.MetadataBackend,
			)
		}
	default:
		return fmt.Errorf("invalid metadataBackend: %q", c.MetadataBackend)
	}
	if c.BlobBackend != blob.BackendBadger {
		return fmt.Errorf("invalid blobBackend: %q", c.BlobBackend)
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	if c.AdminIdentity != "" {
		if _, err := certification.ParseIdentity(c.AdminIdentity); err != nil {
			return fmt.Errorf("invalid adminIdentity: %w", err)
		}
	}
	return nil
}

func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdownTimeout %q: %w", c.ShutdownTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("shutdownTimeout must be positive, got %s", d)
	}
	return d, nil
}

// Admin returns the configured administrator, or the null identity when none
// is set
func (c *Config) Admin() certification.Identity {
	if c.AdminIdentity == "" {
		return certification.NullIdentity
	}
	admin, err := certification.ParseIdentity(c.AdminIdentity)
	if err != nil {
		return certification.NullIdentity
	}
	return admin
}

func GetConfig() *Config {
	return globalConfig
}
