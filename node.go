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
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/herita/api"
	"github.com/blinklabs-io/herita/certification"
	"github.com/blinklabs-io/herita/database"
	"github.com/blinklabs-io/herita/event"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Node struct {
	eventBus       *event.EventBus
	db             *database.Database
	registry       *certification.Registry
	api            *api.API
	tracerProvider *sdktrace.TracerProvider
	shutdownFuncs  []func(context.Context) error
	config         Config
	done           chan struct{}
	startOnce      sync.Once
	shutdownOnce   sync.Once
}

func New(cfg Config) (*Node, error) {
	eventBus := event.NewEventBus(cfg.promRegistry, cfg.logger)
	n := &Node{
		config:   cfg,
		eventBus: eventBus,
		done:     make(chan struct{}),
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// Start opens the database, loads the registry and brings up the API
// listener. It returns once everything is running.
func (n *Node) Start(ctx context.Context) error {
	err := errors.New("node already started")
	n.startOnce.Do(func() {
		err = n.start(ctx)
	})
	return err
}

func (n *Node) start(ctx context.Context) error {
	logger := n.config.logger
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(database.Config{
		DataDir:            n.config.dataDir,
		Logger:             logger,
		PromRegistry:       n.config.promRegistry,
		MetadataBackend:    n.config.metadataBackend,
		MetadataDSN:        n.config.metadataDsn,
		MetadataConnection: n.config.metadataConn,
		BlobBackend:        n.config.blobBackend,
	})
	if err != nil {
		var dbErr database.CommitTimestampError
		if db == nil || !errors.As(err, &dbErr) {
			if db != nil {
				_ = db.Close()
			}
			return fmt.Errorf("failed to open database: %w", err)
		}
		logger.Warn(
			"database initialization error, needs recovery",
			"component", "node",
			"error", err,
		)
		if err := db.RecoverCommitTimestampConflict(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to recover database: %w", err)
		}
	}
	n.db = db
	// Load registry
	registry, err := certification.NewRegistry(
		certification.RegistryConfig{
			Logger:       logger,
			PromRegistry: n.config.promRegistry,
			EventBus:     n.eventBus,
			Store:        n.db,
			Now:          n.config.now,
			Name:         n.config.registryName,
			Symbol:       n.config.registrySymbol,
			Admin:        n.config.admin,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	n.registry = registry
	logger.Info(
		fmt.Sprintf(
			"loaded registry with %d certifications",
			registry.TotalCertifications(),
		),
		"component", "node",
		"admin", registry.Admin().String(),
	)
	// Configure API
	if n.config.apiListenAddress != "" {
		apiCfg := api.APIConfig{
			ListenAddress: n.config.apiListenAddress,
			JWTSecret:     n.config.jwtSecret,
		}
		if n.tracerProvider != nil {
			apiCfg.TracerProvider = n.tracerProvider
		}
		n.api = api.New(apiCfg, n.registry, n.db, logger)
		if err := n.api.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the node and blocks until ctx is cancelled or Stop is called
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return nil
}

// EventBus returns the bus that registry events are published on
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// Registry returns the certification registry. It is nil until Start succeeds.
func (n *Node) Registry() *certification.Registry {
	return n.registry
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	shutdownTimeout := DefaultShutdownTimeout
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Stop accepting new requests
	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Release subscribers before the store goes away
	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	close(n.done)
	return err
}
