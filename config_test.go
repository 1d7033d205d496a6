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
	"testing"
	"time"

	"github.com/blinklabs-io/herita/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.NotNil(t, cfg.logger)
	assert.Equal(t, DefaultShutdownTimeout, cfg.shutdownTimeout)
	assert.Empty(t, cfg.dataDir)
	assert.Empty(t, cfg.apiListenAddress)
	assert.False(t, cfg.tracing)
}

func TestNewConfigOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	admin := testNodeIdentity(0xaa)
	now := func() time.Time { return time.Unix(0, 0) }
	cfg := NewConfig(
		WithDatabasePath("/tmp/herita"),
		WithMetadataBackend("postgres"),
		WithMetadataDSN("host=db"),
		WithMetadataConnection(metadata.Connection{Host: "db", Port: 5433}),
		WithBlobBackend("badger"),
		WithPrometheusRegistry(reg),
		WithAPIListenAddress("127.0.0.1:8080"),
		WithJWTSecret([]byte("secret")),
		WithAdmin(admin),
		WithRegistryName("Test Registry"),
		WithRegistrySymbol("TST"),
		WithClock(now),
		WithTracing(true),
		WithTracingStdout(true),
		WithShutdownTimeout(5*time.Second),
	)
	assert.Equal(t, "/tmp/herita", cfg.dataDir)
	assert.Equal(t, "postgres", cfg.metadataBackend)
	assert.Equal(t, "host=db", cfg.metadataDsn)
	assert.Equal(t, metadata.Connection{Host: "db", Port: 5433}, cfg.metadataConn)
	assert.Equal(t, "badger", cfg.blobBackend)
	assert.Same(t, reg, cfg.promRegistry)
	assert.Equal(t, "127.0.0.1:8080", cfg.apiListenAddress)
	assert.Equal(t, []byte("secret"), cfg.jwtSecret)
	assert.Equal(t, admin, cfg.admin)
	assert.Equal(t, "Test Registry", cfg.registryName)
	assert.Equal(t, "TST", cfg.registrySymbol)
	assert.Equal(t, time.Unix(0, 0), cfg.now())
	assert.True(t, cfg.tracing)
	assert.True(t, cfg.tracingStdout)
	assert.Equal(t, 5*time.Second, cfg.shutdownTimeout)
}

func TestConfigValidateShutdownTimeout(t *testing.T) {
	_, err := New(NewConfig(WithShutdownTimeout(-time.Second)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
