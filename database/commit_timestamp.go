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

	"github.com/blinklabs-io/herita/database/types"
	badger "github.com/dgraph-io/badger/v4"
)

type CommitTimestampError struct {
	MetadataTimestamp int64
	BlobTimestamp     int64
}

func (e CommitTimestampError) Error() string {
	return fmt.Sprintf(
		"commit timestamp mismatch: %d (metadata) != %d (blob)",
		e.MetadataTimestamp,
		e.BlobTimestamp,
	)
}

func (d *Database) checkCommitTimestamp() error {
	// Get value from metadata
	metadataTimestamp, metadataErr := d.Metadata().GetCommitTimestamp()
	if metadataErr != nil {
		return fmt.Errorf(
			"failed to get metadata timestamp: %w",
			metadataErr,
		)
	}
	// Get value from blob
	blobTimestamp, blobErr := d.Blob().GetCommitTimestamp()
	if blobErr != nil {
		return fmt.Errorf(
			"failed to get blob timestamp: %w",
			blobErr,
		)
	}
	// Compare values
	if blobTimestamp != metadataTimestamp {
		return CommitTimestampError{
			MetadataTimestamp: metadataTimestamp,
			BlobTimestamp:     blobTimestamp,
		}
	}
	return nil
}

func (d *Database) updateCommitTimestamp(txn *Txn, timestamp int64) error {
	// Update metadata
	if err := d.Metadata().SetCommitTimestamp(timestamp, txn.Metadata()); err != nil {
		return err
	}
	// Update blob
	if err := d.Blob().SetCommitTimestamp(timestamp, txn.Blob()); err != nil {
		return err
	}
	return nil
}

// RecoverCommitTimestampConflict rebuilds the blob records from the metadata
// store, which is committed last and so holds the authoritative state
func (d *Database) RecoverCommitTimestampConflict() error {
	metadataTimestamp, err := d.Metadata().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("failed to get metadata timestamp: %w", err)
	}
	certs, err := d.Metadata().GetCertifications(nil)
	if err != nil {
		return fmt.Errorf("failed to load certifications: %w", err)
	}
	blobStore := d.Blob()
	txn := blobStore.NewTransaction(true)
	defer func() {
		_ = txn.Rollback()
	}()
	// apply runs fn, moving to a fresh transaction when the current one is full
	apply := func(fn func(types.Txn) error) error {
		err := fn(txn)
		if !errors.Is(err, badger.ErrTxnTooBig) {
			return err
		}
		if err := txn.Commit(); err != nil {
			return err
		}
		txn = blobStore.NewTransaction(true)
		return fn(txn)
	}
	staleKeys, err := d.certificationBlobKeys()
	if err != nil {
		return err
	}
	for _, key := range staleKeys {
		err := apply(func(txn types.Txn) error {
			return blobStore.Delete(txn, key)
		})
		if err != nil {
			return fmt.Errorf("failed to delete blob record: %w", err)
		}
	}
	for i := range certs {
		err := apply(func(txn types.Txn) error {
			return d.setCertificationBlob(txn, &certs[i])
		})
		if err != nil {
			return err
		}
	}
	// The timestamp goes in the final transaction so an interrupted rebuild
	// is detected again on the next start
	if err := blobStore.SetCommitTimestamp(metadataTimestamp, txn); err != nil {
		return fmt.Errorf("failed to set blob timestamp: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit blob rebuild: %w", err)
	}
	d.logger.Info(
		fmt.Sprintf(
			"rebuilt %d certification records in blob store",
			len(certs),
		),
		"component", "database",
	)
	return nil
}
