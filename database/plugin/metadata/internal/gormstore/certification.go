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

package gormstore

import (
	"errors"

	"github.com/blinklabs-io/herita/database/models"
	"github.com/blinklabs-io/herita/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddCertification inserts a newly issued certification
func (s *Store) AddCertification(
	cert *models.Certification,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(cert).Error
}

// UpdateCertification writes the mutable fields of an existing certification
func (s *Store) UpdateCertification(
	cert *models.Certification,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Model(&models.Certification{}).
		Where("token_id = ?", cert.TokenID).
		Updates(map[string]any{
			"holder":      cert.Holder,
			"esg_score":   cert.ESGScore,
			"verified":    cert.Verified,
			"verified_at": cert.VerifiedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	// MySQL reports changed rows rather than matched rows
	var count int64
	result = db.Model(&models.Certification{}).
		Where("token_id = ?", cert.TokenID).
		Count(&count)
	if result.Error != nil {
		return result.Error
	}
	if count == 0 {
		return models.ErrCertificationNotFound
	}
	return nil
}

// GetCertification returns a single certification by token ID
func (s *Store) GetCertification(
	tokenID uint64,
	txn types.Txn,
) (*models.Certification, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.Certification{}
	result := db.Where("token_id = ?", tokenID).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrCertificationNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetCertifications returns all certifications ordered by token ID
func (s *Store) GetCertifications(
	txn types.Txn,
) ([]models.Certification, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Certification
	if result := db.Order("token_id").Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// AddCertificationTransfer records a holder change
func (s *Store) AddCertificationTransfer(
	transfer *models.CertificationTransfer,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(transfer).Error
}

// GetCertificationTransfers returns all holder changes in the order they were recorded
func (s *Store) GetCertificationTransfers(
	txn types.Txn,
) ([]models.CertificationTransfer, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.CertificationTransfer
	if result := db.Order("id").Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetCertificationTransfersByToken returns the holder changes of one token
func (s *Store) GetCertificationTransfersByToken(
	tokenID uint64,
	txn types.Txn,
) ([]models.CertificationTransfer, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.CertificationTransfer
	result := db.Where("token_id = ?", tokenID).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetRegistryState returns the registry state row, or nil if none is stored
func (s *Store) GetRegistryState(
	txn types.Txn,
) (*models.RegistryState, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.RegistryState{}
	result := db.Where("id = ?", models.RegistryStateRowId).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// SetRegistryState creates or replaces the registry state row
func (s *Store) SetRegistryState(
	state *models.RegistryState,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	state.ID = models.RegistryStateRowId
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"admin"}),
	}).Create(state)
	return result.Error
}
