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
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"testing"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/herita/certification"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNodeIdentity(b byte) certification.Identity {
	return lcommon.NewBlake2b224(bytes.Repeat([]byte{b}, 28))
}

func newTestNode(t *testing.T, opts ...ConfigOptionFunc) *Node {
	t.Helper()
	n, err := New(NewConfig(opts...))
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() {
		_ = n.Stop()
	})
	return n
}

func freeListenAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestNodeStartInMemory(t *testing.T) {
	admin := testNodeIdentity(0xaa)
	holder := testNodeIdentity(0x01)
	n := newTestNode(
		t,
		WithAdmin(admin),
		WithPrometheusRegistry(prometheus.NewRegistry()),
	)
	reg := n.Registry()
	require.NotNil(t, reg)
	assert.Equal(t, admin, reg.Admin())
	assert.Equal(t, certification.DefaultName, reg.Name())

	_, evtCh := n.EventBus().Subscribe(certification.CertificationIssuedEventType)
	tokenID, err := reg.Issue(admin, holder, "ENT-1", "PRJ-1", big.NewInt(1000), 80)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tokenID)
	select {
	case evt := <-evtCh:
		data, ok := evt.Data.(certification.CertificationIssuedEvent)
		require.True(t, ok)
		assert.Equal(t, tokenID, data.TokenID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for issued event")
	}
}

func TestNodeStartTwice(t *testing.T) {
	n := newTestNode(t, WithAdmin(testNodeIdentity(0xaa)))
	err := n.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestNodeRequiresAdmin(t *testing.T) {
	n, err := New(NewConfig())
	require.NoError(t, err)
	err = n.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load registry")
	assert.NoError(t, n.Stop())
}

func TestNodeUnknownMetadataBackend(t *testing.T) {
	n, err := New(NewConfig(
		WithAdmin(testNodeIdentity(0xaa)),
		WithMetadataBackend("oracle"),
	))
	require.NoError(t, err)
	err = n.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open database")
	assert.NoError(t, n.Stop())
}

func TestNodePersistence(t *testing.T) {
	dataDir := t.TempDir()
	admin := testNodeIdentity(0xaa)
	holder := testNodeIdentity(0x01)
	other := testNodeIdentity(0x02)

	n, err := New(NewConfig(WithDatabasePath(dataDir), WithAdmin(admin)))
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	tokenID, err := n.Registry().Issue(
		admin, holder, "ENT-1", "PRJ-1", big.NewInt(5000), 70,
	)
	require.NoError(t, err)
	require.NoError(t, n.Registry().Verify(admin, tokenID))
	require.NoError(t, n.Registry().Transfer(holder, tokenID, other))
	require.NoError(t, n.Stop())

	// A different configured admin does not replace the stored one
	n2 := newTestNode(
		t,
		WithDatabasePath(dataDir),
		WithAdmin(testNodeIdentity(0xbb)),
	)
	reg := n2.Registry()
	assert.Equal(t, admin, reg.Admin())
	assert.Equal(t, uint64(1), reg.TotalSupply())
	cert, err := reg.Certification(tokenID)
	require.NoError(t, err)
	assert.True(t, cert.Verified)
	assert.Equal(t, 0, cert.Amount.Cmp(big.NewInt(5000)))
	owner, err := reg.OwnerOf(tokenID)
	require.NoError(t, err)
	assert.Equal(t, other, owner)
	assert.Equal(t, uint64(0), reg.BalanceOf(holder))
}

func TestNodeRunStopsOnContextCancel(t *testing.T) {
	n, err := New(NewConfig(WithAdmin(testNodeIdentity(0xaa))))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(ctx)
	}()
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	require.NoError(t, n.Stop())
	// Stop is idempotent
	require.NoError(t, n.Stop())
}

func TestNodeServesAPI(t *testing.T) {
	addr := freeListenAddress(t)
	newTestNode(
		t,
		WithAdmin(testNodeIdentity(0xaa)),
		WithAPIListenAddress(addr),
		WithJWTSecret([]byte("test-secret")),
	)
	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = http.Get(fmt.Sprintf("http://%s/health", addr))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_healthy":true}`, string(body))
}
