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

package types

import (
	"encoding/binary"
	"errors"
)

const (
	CertificationBlobKeyPrefix = "c"
	CommitTimestampBlobKey     = "metadata_commit_timestamp"
)

func CertificationBlobKey(tokenID uint64) []byte {
	key := make([]byte, 0, len(CertificationBlobKeyPrefix)+8)
	key = append(key, CertificationBlobKeyPrefix...)
	return binary.BigEndian.AppendUint64(key, tokenID)
}

// CertificationBlobKeyTokenID extracts the token ID from a certification blob key
func CertificationBlobKeyTokenID(key []byte) (uint64, error) {
	if len(key) != len(CertificationBlobKeyPrefix)+8 ||
		string(key[:len(CertificationBlobKeyPrefix)]) != CertificationBlobKeyPrefix {
		return 0, errors.New("not a certification blob key")
	}
	return binary.BigEndian.Uint64(key[len(CertificationBlobKeyPrefix):]), nil
}
