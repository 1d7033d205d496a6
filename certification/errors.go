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
	"errors"

	"github.com/blinklabs-io/herita/ledger"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidRecipient     = errors.New("invalid recipient")
	ErrDuplicateSponsorship = errors.New(
		"sponsorship already certified for this enterprise-project combination",
	)
	ErrNotFound        = errors.New("certification does not exist")
	ErrAlreadyVerified = errors.New("certification already verified")
	ErrNotHolder       = ledger.ErrNotHolder
	ErrIndexOutOfRange = ledger.ErrIndexOutOfRange
)

// errorReason maps an operation error to a short label for metrics
func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDuplicateSponsorship):
		return "duplicate_sponsorship"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, ErrNotHolder):
		return "not_holder"
	default:
		return "store"
	}
}
