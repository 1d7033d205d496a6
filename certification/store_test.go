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

package certification_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/blinklabs-io/herita/certification"
	"github.com/blinklabs-io/herita/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store unavailable")

// memoryStore is an in-memory certification.Store that can be told to fail
type memoryStore struct {
	certs     []certification.Certification
	transfers []certification.Transfer
	admin     certification.Identity
	hasAdmin  bool
	fail      bool
}

func (m *memoryStore) LoadCertifications() ([]certification.Certification, error) {
	if m.fail {
		return nil, errStoreDown
	}
	ret := make([]certification.Certification, 0, len(m.certs))
	for _, cert := range m.certs {
		ret = append(ret, cert.Clone())
	}
	return ret, nil
}

func (m *memoryStore) LoadTransfers() ([]certification.Transfer, error) {
	if m.fail {
		return nil, errStoreDown
	}
	return slices.Clone(m.transfers), nil
}

func (m *memoryStore) LoadAdmin() (certification.Identity, bool, error) {
	if m.fail {
		return certification.NullIdentity, false, errStoreDown
	}
	return m.admin, m.hasAdmin, nil
}

func (m *memoryStore) CreateCertification(cert certification.Certification) error {
	if m.fail {
		return errStoreDown
	}
	m.certs = append(m.certs, cert.Clone())
	return nil
}

func (m *memoryStore) UpdateCertification(cert certification.Certification) error {
	if m.fail {
		return errStoreDown
	}
	m.certs[cert.TokenID-1] = cert.Clone()
	return nil
}

func (m *memoryStore) TransferCertification(t certification.Transfer) error {
	if m.fail {
		return errStoreDown
	}
	m.transfers = append(m.transfers, t)
	m.certs[t.TokenID-1].Holder = t.To
	return nil
}

func (m *memoryStore) SetAdmin(admin certification.Identity) error {
	if m.fail {
		return errStoreDown
	}
	m.admin = admin
	m.hasAdmin = true
	return nil
}

func TestStoreFailureLeavesStateUnchanged(t *testing.T) {
	store := &memoryStore{}
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, issuedCh := eb.Subscribe(certification.CertificationIssuedEventType)
	_, verifiedCh := eb.Subscribe(certification.CertificationVerifiedEventType)
	reg, err := certification.NewRegistry(certification.RegistryConfig{
		Admin:    testAdmin,
		Store:    store,
		EventBus: eb,
	})
	require.NoError(t, err)
	tokenID := mustIssue(t, reg, "ENT001", "PROJ001", 70)
	<-issuedCh

	store.fail = true
	_, err = reg.Issue(testAdmin, testRecipient, "ENT001", "PROJ002", ether(1), 70)
	require.ErrorIs(t, err, errStoreDown)
	require.ErrorIs(t, reg.Verify(testAdmin, tokenID), errStoreDown)
	require.ErrorIs(t, reg.UpdateScore(testAdmin, tokenID, 10), errStoreDown)
	require.ErrorIs(t, reg.Transfer(testRecipient, tokenID, testOther), errStoreDown)
	require.ErrorIs(t, reg.TransferAdmin(testAdmin, testOther), errStoreDown)

	assert.Equal(t, uint64(1), reg.TotalCertifications())
	assert.Equal(t, []uint64{tokenID}, reg.ListByEnterprise("ENT001"))
	cert, err := reg.Certification(tokenID)
	require.NoError(t, err)
	assert.False(t, cert.Verified)
	assert.Equal(t, uint8(70), cert.ESGScore)
	assert.Equal(t, testRecipient, cert.Holder)
	assert.Equal(t, testAdmin, reg.Admin())
	select {
	case evt := <-issuedCh:
		t.Fatalf("unexpected event: %v", evt)
	case evt := <-verifiedCh:
		t.Fatalf("unexpected event: %v", evt)
	default:
	}

	// The failed pair can be issued once the store recovers, with the
	// next token ID
	store.fail = false
	tokenID2, err := reg.Issue(testAdmin, testRecipient, "ENT001", "PROJ002", ether(1), 70)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tokenID2)
}

func TestRegistryReload(t *testing.T) {
	store := &memoryStore{}
	reg := newTestRegistry(t, store)
	token1 := mustIssue(t, reg, "ENT001", "PROJ001", 75)
	token2 := mustIssue(t, reg, "ENT001", "PROJ002", 85)
	require.NoError(t, reg.Verify(testAdmin, token1))
	require.NoError(t, reg.UpdateScore(testAdmin, token2, 40))
	// testOther receives token 1 before being minted token 3
	require.NoError(t, reg.Transfer(testRecipient, token1, testOther))
	_, err := reg.Issue(testAdmin, testOther, "ENT002", "PROJ001", ether(4), 90)
	require.NoError(t, err)
	require.NoError(t, reg.Transfer(testRecipient, token2, testOther))
	require.NoError(t, reg.TransferAdmin(testAdmin, testStranger))

	// The configured administrator is ignored once one is stored
	reloaded, err := certification.NewRegistry(certification.RegistryConfig{
		Admin: testAdmin,
		Store: store,
	})
	require.NoError(t, err)
	assert.Equal(t, testStranger, reloaded.Admin())
	assert.Equal(t, reg.TotalCertifications(), reloaded.TotalCertifications())
	assert.Equal(t, reg.ListByEnterprise("ENT001"), reloaded.ListByEnterprise("ENT001"))
	assert.Equal(t, reg.EnterpriseDetails("ENT001"), reloaded.EnterpriseDetails("ENT001"))
	total, count := reloaded.EnterpriseScore("ENT001")
	assert.Equal(t, uint64(75), total)
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, []uint64{1, 3, 2}, reloaded.TokensOf(testOther))
	assert.Equal(t, reg.TokensOf(testOther), reloaded.TokensOf(testOther))
	assert.Equal(t, uint64(0), reloaded.BalanceOf(testRecipient))

	// Uniqueness survives a reload
	_, err = reloaded.Issue(testStranger, testRecipient, "ENT001", "PROJ001", ether(1), 1)
	require.ErrorIs(t, err, certification.ErrDuplicateSponsorship)
	tokenID, err := reloaded.Issue(testStranger, testRecipient, "ENT001", "PROJ003", ether(1), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), tokenID)
}

func TestRegistryLoadErrors(t *testing.T) {
	_, err := certification.NewRegistry(certification.RegistryConfig{
		Admin: testAdmin,
		Store: &memoryStore{fail: true},
	})
	require.ErrorIs(t, err, errStoreDown)

	gap := &memoryStore{
		certs: []certification.Certification{
			{TokenID: 2, EnterpriseID: "E", ProjectID: "P", Amount: ether(1), Holder: testRecipient},
		},
	}
	_, err = certification.NewRegistry(certification.RegistryConfig{
		Admin: testAdmin,
		Store: gap,
	})
	require.ErrorContains(t, err, "not sequential")

	mismatch := &memoryStore{
		certs: []certification.Certification{
			{TokenID: 1, EnterpriseID: "E", ProjectID: "P", Amount: ether(1), Holder: testOther},
		},
	}
	_, err = certification.NewRegistry(certification.RegistryConfig{
		Admin: testAdmin,
		Store: mismatch,
	})
	require.NoError(t, err)
	mismatch.transfers = []certification.Transfer{
		{TokenID: 1, AfterToken: 1, From: testRecipient, To: testStranger},
	}
	_, err = certification.NewRegistry(certification.RegistryConfig{
		Admin: testAdmin,
		Store: mismatch,
	})
	require.ErrorContains(t, err, "does not match transfer history")
}
