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

package certification

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

const (
	MinESGScore = 0
	MaxESGScore = 100

	DefaultName   = "HERITA ESG Certification"
	DefaultSymbol = "HESG"

	IdentitySize = 28
)

// Identity is a caller or holder identity: the hash of a payment verification key
type Identity = lcommon.Blake2b224

// NullIdentity is the all-zero identity. It can never hold a certification
// or administer the registry.
var NullIdentity = lcommon.NewBlake2b224(nil)

// ParseIdentity accepts either a hex-encoded 28-byte key hash or a bech32
// address, in which case the payment key hash of the address is used
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NullIdentity, fmt.Errorf("%w: empty identity", ErrInvalidInput)
	}
	if len(s) == IdentitySize*2 {
		b, err := hex.DecodeString(s)
		if err == nil {
			return lcommon.NewBlake2b224(b), nil
		}
	}
	addr, err := lcommon.NewAddress(s)
	if err != nil {
		return NullIdentity, fmt.Errorf(
			"%w: identity %q is neither a key hash nor an address: %w",
			ErrInvalidInput,
			s,
			err,
		)
	}
	return addr.PaymentKeyHash(), nil
}

// IdentityFromKey derives the identity for a payment verification key
func IdentityFromKey(vkey []byte) Identity {
	return lcommon.Blake2b224Hash(vkey)
}

// Certification records an enterprise's contribution to a heritage project
type Certification struct {
	Timestamp    time.Time
	VerifiedAt   time.Time
	Amount       *big.Int
	EnterpriseID string
	ProjectID    string
	TokenID      uint64
	Holder       Identity
	ESGScore     uint8
	Verified     bool
}

// Clone returns a copy of the certification that shares no memory with the original
func (c Certification) Clone() Certification {
	ret := c
	if c.Amount != nil {
		ret.Amount = new(big.Int).Set(c.Amount)
	}
	return ret
}

// Transfer is a change of holder for a certification token
type Transfer struct {
	Timestamp time.Time
	TokenID   uint64
	// AfterToken is the number of certifications issued before the transfer.
	// It places the transfer within the issuance sequence so holder
	// enumeration order can be replayed on load.
	AfterToken uint64
	From       Identity
	To         Identity
}

type sponsorshipKey struct {
	enterpriseID string
	projectID    string
}
