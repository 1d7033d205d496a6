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

package models

import (
	"encoding/binary"
	"errors"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/herita/database/types"
	"gorm.io/gorm"
)

var ErrCertificationNotFound = errors.New("certification not found")

// Certification is the metadata row for an issued certification token.
// Timestamps are stored as Unix nanoseconds so that every backend round-trips
// them exactly. Identifiers have no length limit, so the (enterprise, project)
// pair is kept unique through its fixed-size SponsorshipKey digest.
type Certification struct {
	Amount         types.BigInt `gorm:"type:text;not null"`
	EnterpriseID   string       `gorm:"type:text;not null"`
	ProjectID      string       `gorm:"type:text;not null"`
	Holder         []byte       `gorm:"size:28;index"`
	SponsorshipKey []byte       `gorm:"size:32;not null;uniqueIndex:idx_certification_sponsorship"`
	ID             uint         `gorm:"primarykey"`
	TokenID        uint64       `gorm:"uniqueIndex;not null"`
	IssuedAt       int64        `gorm:"not null"`
	VerifiedAt     int64
	ESGScore       uint8 `gorm:"column:esg_score;not null"`
	Verified       bool  `gorm:"not null;default:false"`
}

func (Certification) TableName() string {
	return "certification"
}

// BeforeCreate fills in the sponsorship digest from the identifiers
func (c *Certification) BeforeCreate(tx *gorm.DB) error {
	c.SponsorshipKey = SponsorshipKey(c.EnterpriseID, c.ProjectID)
	return nil
}

// SponsorshipKey returns the Blake2b-256 digest of the length-prefixed
// enterprise and project identifiers. The length prefixes keep pairs such as
// ("ab", "c") and ("a", "bc") apart.
func SponsorshipKey(enterpriseID, projectID string) []byte {
	buf := make([]byte, 0, 16+len(enterpriseID)+len(projectID))
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(enterpriseID)))
	buf = append(buf, enterpriseID...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(projectID)))
	buf = append(buf, projectID...)
	hash := lcommon.Blake2b256Hash(buf)
	return hash.Bytes()
}

// CertificationTransfer records a change of holder. Rows are replayed in ID
// order when the registry is loaded.
type CertificationTransfer struct {
	FromHolder    []byte `gorm:"size:28"`
	ToHolder      []byte `gorm:"size:28"`
	ID            uint   `gorm:"primarykey"`
	TokenID       uint64 `gorm:"index;not null"`
	AfterToken    uint64 `gorm:"not null"`
	TransferredAt int64  `gorm:"not null"`
}

func (CertificationTransfer) TableName() string {
	return "certification_transfer"
}
