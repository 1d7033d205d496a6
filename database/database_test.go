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
package database_test

import (
	"bytes"
	"math/big"
	"strings"
	"testing"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/herita/certification"
	"github.com/blinklabs-io/herita/database"
	"github.com/blinklabs-io/herita/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAdmin     = testIdentity(0xaa)
	testRecipient = testIdentity(0x01)
	testOther     = testIdentity(0x02)
)

func testIdentity(b byte) certification.Identity {
	return lcommon.NewBlake2b224(bytes.Repeat([]byte{b}, 28))
}

func newTestDatabase(t *testing.T, dataDir string) *database.Database {
	t.Helper()
	db, err := database.New(database.Config{DataDir: dataDir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newRegistry(t *testing.T, db *database.Database) *certification.Registry {
	t.Helper()
	reg, err := certification.NewRegistry(certification.RegistryConfig{
		Admin: testAdmin,
		Store: db,
	})
	require.NoError(t, err)
	return reg
}

func TestRegistryRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	db, err := database.New(database.Config{DataDir: dataDir})
	require.NoError(t, err)
	reg := newRegistry(t, db)

	amount, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)
	token1, err := reg.Issue(testAdmin, testRecipient, "ENT001", "PROJ001", amount, 75)
	require.NoError(t, err)
	token2, err := reg.Issue(testAdmin, testRecipient, "ENT001", "PROJ002", big.NewInt(1), 90)
	require.NoError(t, err)
	require.NoError(t, reg.Verify(testAdmin, token1))
	require.NoError(t, reg.UpdateScore(testAdmin, token2, 0))
	require.NoError(t, reg.Transfer(testRecipient, token2, testOther))
	require.NoError(t, reg.TransferAdmin(testAdmin, testOther))
	before, err := reg.Certification(token1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db = newTestDatabase(t, dataDir)
	reloaded := newRegistry(t, db)
	assert.Equal(t, testOther, reloaded.Admin())
	assert.Equal(t, uint64(2), reloaded.TotalCertifications())
	after, err := reloaded.Certification(token1)
	require.NoError(t, err)
	assert.Equal(t, 0, before.Amount.Cmp(after.Amount))
	assert.True(t, before.Timestamp.Equal(after.Timestamp))
	assert.True(t, before.VerifiedAt.Equal(after.VerifiedAt))
	assert.True(t, after.Verified)
	assert.Equal(t, testRecipient, after.Holder)

	cert2, err := reloaded.Certification(token2)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), cert2.ESGScore)
	assert.False(t, cert2.Verified)
	assert.True(t, cert2.VerifiedAt.IsZero())
	assert.Equal(t, testOther, cert2.Holder)
	assert.Equal(t, []uint64{token2}, reloaded.TokensOf(testOther))
	total, count := reloaded.EnterpriseScore("ENT001")
	assert.Equal(t, uint64(75), total)
	assert.Equal(t, uint64(1), count)

	_, err = reloaded.Issue(testOther, testRecipient, "ENT001", "PROJ001", big.NewInt(1), 1)
	require.ErrorIs(t, err, certification.ErrDuplicateSponsorship)
}

func TestLongIdentifiersRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	db, err := database.New(database.Config{DataDir: dataDir})
	require.NoError(t, err)
	reg := newRegistry(t, db)

	enterprise := "ENT-" + strings.Repeat("x", 1000)
	project := "PROJ-" + strings.Repeat("y", 1000)
	tokenID, err := reg.Issue(testAdmin, testRecipient, enterprise, project, big.NewInt(10), 60)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db = newTestDatabase(t, dataDir)
	reloaded := newRegistry(t, db)
	cert, err := reloaded.Certification(tokenID)
	require.NoError(t, err)
	assert.Equal(t, enterprise, cert.EnterpriseID)
	assert.Equal(t, project, cert.ProjectID)
	total, count := reloaded.EnterpriseScore(enterprise)
	assert.Equal(t, uint64(60), total)
	assert.Equal(t, uint64(1), count)

	_, err = reloaded.Issue(testAdmin, testOther, enterprise, project, big.NewInt(1), 1)
	require.ErrorIs(t, err, certification.ErrDuplicateSponsorship)
}

func TestCertificationCbor(t *testing.T) {
	db := newTestDatabase(t, "")
	reg := newRegistry(t, db)
	tokenID, err := reg.Issue(testAdmin, testRecipient, "ENT001", "PROJ001", big.NewInt(5000), 42)
	require.NoError(t, err)
	require.NoError(t, reg.Verify(testAdmin, tokenID))

	data, err := db.CertificationCbor(tokenID)
	require.NoError(t, err)
	decoded, err := database.DecodeCertification(data)
	require.NoError(t, err)
	want, err := reg.Certification(tokenID)
	require.NoError(t, err)
	assert.Equal(t, want.TokenID, decoded.TokenID)
	assert.Equal(t, want.EnterpriseID, decoded.EnterpriseID)
	assert.Equal(t, want.ProjectID, decoded.ProjectID)
	assert.Equal(t, 0, want.Amount.Cmp(decoded.Amount))
	assert.Equal(t, want.Holder, decoded.Holder)
	assert.Equal(t, want.ESGScore, decoded.ESGScore)
	assert.True(t, decoded.Verified)
	assert.True(t, want.VerifiedAt.Equal(decoded.VerifiedAt))

	encoded, err := database.EncodeCertification(want)
	require.NoError(t, err)
	assert.Equal(t, data, encoded)

	_, err = db.CertificationCbor(99)
	require.ErrorIs(t, err, certification.ErrNotFound)
	_, err = database.DecodeCertification([]byte{0xff})
	require.Error(t, err)
}

func TestTransferHistory(t *testing.T) {
	db := newTestDatabase(t, "")
	reg := newRegistry(t, db)
	tokenID, err := reg.Issue(testAdmin, testRecipient, "ENT001", "PROJ001", big.NewInt(1), 42)
	require.NoError(t, err)
	require.NoError(t, reg.Transfer(testRecipient, tokenID, testOther))
	require.NoError(t, reg.Transfer(testOther, tokenID, testRecipient))

	history, err := db.TransferHistory(tokenID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, testRecipient, history[0].From)
	assert.Equal(t, testOther, history[0].To)
	assert.Equal(t, testOther, history[1].From)
	assert.Equal(t, testRecipient, history[1].To)
	assert.Equal(t, uint64(1), history[1].AfterToken)

	empty, err := db.TransferHistory(99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCommitTimestampConflictRecovery(t *testing.T) {
	dataDir := t.TempDir()
	db, err := database.New(database.Config{DataDir: dataDir})
	require.NoError(t, err)
	reg := newRegistry(t, db)
	tokenID, err := reg.Issue(testAdmin, testRecipient, "ENT001", "PROJ001", big.NewInt(1), 42)
	require.NoError(t, err)

	// Lose the blob side of the last write
	blobTxn := db.Blob().NewTransaction(true)
	require.NoError(t, db.Blob().Delete(blobTxn, types.CertificationBlobKey(tokenID)))
	require.NoError(t, db.Blob().SetCommitTimestamp(1, blobTxn))
	// A record the metadata store does not know about
	require.NoError(t, db.Blob().Set(blobTxn, types.CertificationBlobKey(7), []byte{0x80}))
	require.NoError(t, blobTxn.Commit())
	require.NoError(t, db.Close())

	db, err = database.New(database.Config{DataDir: dataDir})
	require.NotNil(t, db)
	t.Cleanup(func() { _ = db.Close() })
	var tsErr database.CommitTimestampError
	require.ErrorAs(t, err, &tsErr)
	assert.Equal(t, int64(1), tsErr.BlobTimestamp)

	require.NoError(t, db.RecoverCommitTimestampConflict())
	_, err = db.CertificationCbor(tokenID)
	require.NoError(t, err)
	_, err = db.CertificationCbor(7)
	require.ErrorIs(t, err, certification.ErrNotFound)
	metadataTs, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	blobTs, err := db.Blob().GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, metadataTs, blobTs)
}

func TestTxnDo(t *testing.T) {
	db := newTestDatabase(t, "")
	key := types.CertificationBlobKey(1)
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		require.NoError(t, db.Blob().Set(txn.Blob(), key, []byte("v")))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	_, err = db.CertificationCbor(1)
	require.ErrorIs(t, err, certification.ErrNotFound)

	before := time.Now().UnixMilli()
	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.Blob().Set(txn.Blob(), key, []byte("v"))
	})
	require.NoError(t, err)
	data, err := db.CertificationCbor(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)
	ts, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts, before)
}

func TestUnknownBackends(t *testing.T) {
	_, err := database.New(database.Config{MetadataBackend: "oracle"})
	require.ErrorContains(t, err, "unknown metadata backend")
	_, err = database.New(database.Config{BlobBackend: "s3"})
	require.ErrorContains(t, err, "unknown blob backend")
}
