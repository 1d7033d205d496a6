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
	"math/big"

	"github.com/blinklabs-io/herita/event"
)

const (
	CertificationIssuedEventType       event.EventType = "certification.issued"
	CertificationVerifiedEventType     event.EventType = "certification.verified"
	CertificationTransferredEventType  event.EventType = "certification.transferred"
	CertificationScoreUpdatedEventType event.EventType = "certification.score_updated"
)

type CertificationIssuedEvent struct {
	Amount       *big.Int
	EnterpriseID string
	ProjectID    string
	TokenID      uint64
	Recipient    Identity
	ESGScore     uint8
}

type CertificationVerifiedEvent struct {
	EnterpriseID string
	ProjectID    string
	TokenID      uint64
}

type CertificationTransferredEvent struct {
	TokenID uint64
	From    Identity
	To      Identity
}

type CertificationScoreUpdatedEvent struct {
	TokenID  uint64
	OldScore uint8
	NewScore uint8
}
