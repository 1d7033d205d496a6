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
package database

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/herita/certification"
	"github.com/blinklabs-io/herita/database/models"
	"github.com/blinklabs-io/herita/database/types"
)

// certificationRecord is the CBOR form of a certification kept in the blob
// store
type certificationRecord struct {
	cbor.StructAsArray
	TokenID      uint64
	EnterpriseID string
	ProjectID    string
	Amount       []byte
	Holder       []byte
	ESGScore     uint8
	Verified     bool
	IssuedAt     int64
	VerifiedAt   int64
}

func identityFromBytes(b []byte) (certification.Identity, error) {
	if len(b) != certification.IdentitySize {
		return certification.NullIdentity, fmt.Errorf(
			"invalid identity length %d",
			len(b),
		)
	}
	return lcommon.NewBlake2b224(b), nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func certificationToModel(cert certification.Certification) *models.Certification {
	return &models.Certification{
		TokenID:      cert.TokenID,
		EnterpriseID: cert.EnterpriseID,
		ProjectID:    cert.ProjectID,
		Amount:       types.NewBigInt(cert.Amount),
		Holder:       cert.Holder.Bytes(),
		ESGScore:     cert.ESGScore,
		Verified:     cert.Verified,
		IssuedAt:     unixNano(cert.Timestamp),
		VerifiedAt:   unixNano(cert.VerifiedAt),
	}
}

func certificationFromModel(m *models.Certification) (certification.Certification, error) {
	holder, err := identityFromBytes(m.Holder)
	if err != nil {
		return certification.Certification{}, fmt.Errorf(
			"certification %d: %w",
			m.TokenID,
			err,
		)
	}
	amount := new(big.Int)
	if m.Amount.Int != nil {
		amount.Set(m.Amount.Int)
	}
	return certification.Certification{
		TokenID:      m.TokenID,
		EnterpriseID: m.EnterpriseID,
		ProjectID:    m.ProjectID,
		Amount:       amount,
		Holder:       holder,
		ESGScore:     m.ESGScore,
		Verified:     m.Verified,
		Timestamp:    fromUnixNano(m.IssuedAt),
		VerifiedAt:   fromUnixNano(m.VerifiedAt),
	}, nil
}

func transferFromModel(m *models.CertificationTransfer) (certification.Transfer, error) {
	from, err := identityFromBytes(m.FromHolder)
	if err != nil {
		return certification.Transfer{}, fmt.Errorf("transfer %d: %w", m.ID, err)
	}
	to, err := identityFromBytes(m.ToHolder)
	if err != nil {
		return certification.Transfer{}, fmt.Errorf("transfer %d: %w", m.ID, err)
	}
	return certification.Transfer{
		Timestamp:  fromUnixNano(m.TransferredAt),
		TokenID:    m.TokenID,
		AfterToken: m.AfterToken,
		From:       from,
		To:         to,
	}, nil
}

// EncodeCertification returns the CBOR record stored for a certification
func EncodeCertification(cert certification.Certification) ([]byte, error) {
	return encodeCertificationModel(certificationToModel(cert))
}

func encodeCertificationModel(m *models.Certification) ([]byte, error) {
	rec := certificationRecord{
		TokenID:      m.TokenID,
		EnterpriseID: m.EnterpriseID,
		ProjectID:    m.ProjectID,
		Holder:       m.Holder,
		ESGScore:     m.ESGScore,
		Verified:     m.Verified,
		IssuedAt:     m.IssuedAt,
		VerifiedAt:   m.VerifiedAt,
	}
	if m.Amount.Int != nil {
		rec.Amount = m.Amount.Bytes()
	}
	return cbor.Encode(&rec)
}

// DecodeCertification parses a CBOR record produced by EncodeCertification
func DecodeCertification(data []byte) (certification.Certification, error) {
	var rec certificationRecord
	if _, err := cbor.Decode(data, &rec); err != nil {
		return certification.Certification{}, fmt.Errorf(
			"decode certification record: %w",
			err,
		)
	}
	return certificationFromModel(&models.Certification{
		TokenID:      rec.TokenID,
		EnterpriseID: rec.EnterpriseID,
		ProjectID:    rec.ProjectID,
		Amount:       types.NewBigInt(new(big.Int).SetBytes(rec.Amount)),
		Holder:       rec.Holder,
		ESGScore:     rec.ESGScore,
		Verified:     rec.Verified,
		IssuedAt:     rec.IssuedAt,
		VerifiedAt:   rec.VerifiedAt,
	})
}

func (d *Database) setCertificationBlob(txn types.Txn, m *models.Certification) error {
	data, err := encodeCertificationModel(m)
	if err != nil {
		return fmt.Errorf("encode certification %d: %w", m.TokenID, err)
	}
	if err := d.Blob().Set(txn, types.CertificationBlobKey(m.TokenID), data); err != nil {
		return fmt.Errorf("store certification %d: %w", m.TokenID, err)
	}
	return nil
}

// certificationBlobKeys lists the keys of every certification record in the
// blob store
func (d *Database) certificationBlobKeys() ([][]byte, error) {
	txn := d.Blob().NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	iter := d.Blob().NewIterator(
		txn,
		types.BlobIteratorOptions{
			Prefix: []byte(types.CertificationBlobKeyPrefix),
		},
	)
	defer iter.Close()
	var ret [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		ret = append(ret, iter.Item().Key())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("iterate certification records: %w", err)
	}
	return ret, nil
}

// LoadCertifications returns every stored certification in token order
func (d *Database) LoadCertifications() ([]certification.Certification, error) {
	rows, err := d.Metadata().GetCertifications(nil)
	if err != nil {
		return nil, err
	}
	ret := make([]certification.Certification, 0, len(rows))
	for i := range rows {
		cert, err := certificationFromModel(&rows[i])
		if err != nil {
			return nil, err
		}
		ret = append(ret, cert)
	}
	return ret, nil
}

// LoadTransfers returns every recorded holder change in the order it happened
func (d *Database) LoadTransfers() ([]certification.Transfer, error) {
	rows, err := d.Metadata().GetCertificationTransfers(nil)
	if err != nil {
		return nil, err
	}
	ret := make([]certification.Transfer, 0, len(rows))
	for i := range rows {
		transfer, err := transferFromModel(&rows[i])
		if err != nil {
			return nil, err
		}
		ret = append(ret, transfer)
	}
	return ret, nil
}

// LoadAdmin returns the stored registry administrator, if any
func (d *Database) LoadAdmin() (certification.Identity, bool, error) {
	state, err := d.Metadata().GetRegistryState(nil)
	if err != nil {
		return certification.NullIdentity, false, err
	}
	if state == nil {
		return certification.NullIdentity, false, nil
	}
	admin, err := identityFromBytes(state.Admin)
	if err != nil {
		return certification.NullIdentity, false, fmt.Errorf("registry admin: %w", err)
	}
	return admin, true, nil
}

func (d *Database) CreateCertification(cert certification.Certification) error {
	m := certificationToModel(cert)
	txn := d.Transaction(true)
	return txn.Do(func(txn *Txn) error {
		if err := d.Metadata().AddCertification(m, txn.Metadata()); err != nil {
			return fmt.Errorf("add certification %d: %w", m.TokenID, err)
		}
		return d.setCertificationBlob(txn.Blob(), m)
	})
}

func (d *Database) UpdateCertification(cert certification.Certification) error {
	m := certificationToModel(cert)
	txn := d.Transaction(true)
	return txn.Do(func(txn *Txn) error {
		if err := d.Metadata().UpdateCertification(m, txn.Metadata()); err != nil {
			return fmt.Errorf("update certification %d: %w", m.TokenID, err)
		}
		return d.setCertificationBlob(txn.Blob(), m)
	})
}

func (d *Database) TransferCertification(transfer certification.Transfer) error {
	txn := d.Transaction(true)
	return txn.Do(func(txn *Txn) error {
		m, err := d.Metadata().GetCertification(transfer.TokenID, txn.Metadata())
		if err != nil {
			return fmt.Errorf("get certification %d: %w", transfer.TokenID, err)
		}
		m.Holder = transfer.To.Bytes()
		if err := d.Metadata().UpdateCertification(m, txn.Metadata()); err != nil {
			return fmt.Errorf("update certification %d: %w", m.TokenID, err)
		}
		err = d.Metadata().AddCertificationTransfer(
			&models.CertificationTransfer{
				TokenID:       transfer.TokenID,
				AfterToken:    transfer.AfterToken,
				FromHolder:    transfer.From.Bytes(),
				ToHolder:      transfer.To.Bytes(),
				TransferredAt: unixNano(transfer.Timestamp),
			},
			txn.Metadata(),
		)
		if err != nil {
			return fmt.Errorf("record transfer of %d: %w", transfer.TokenID, err)
		}
		return d.setCertificationBlob(txn.Blob(), m)
	})
}

func (d *Database) SetAdmin(admin certification.Identity) error {
	txn := d.Transaction(true)
	return txn.Do(func(txn *Txn) error {
		return d.Metadata().SetRegistryState(
			&models.RegistryState{Admin: admin.Bytes()},
			txn.Metadata(),
		)
	})
}

// CertificationCbor returns the CBOR record stored for a certification
func (d *Database) CertificationCbor(tokenID uint64) ([]byte, error) {
	txn := d.Blob().NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	data, err := d.Blob().Get(txn, types.CertificationBlobKey(tokenID))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, fmt.Errorf("%w: token %d", certification.ErrNotFound, tokenID)
		}
		return nil, err
	}
	return data, nil
}

// TransferHistory returns the holder changes of a certification, oldest first
func (d *Database) TransferHistory(tokenID uint64) ([]certification.Transfer, error) {
	rows, err := d.Metadata().GetCertificationTransfersByToken(tokenID, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]certification.Transfer, 0, len(rows))
	for i := range rows {
		transfer, err := transferFromModel(&rows[i])
		if err != nil {
			return nil, err
		}
		ret = append(ret, transfer)
	}
	return ret, nil
}
