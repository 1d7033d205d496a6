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

// Store persists registry state. Every write must be atomic: when a method
// returns an error, nothing it was asked to write may be visible afterward.
type Store interface {
	// LoadCertifications returns all certifications ordered by token ID
	LoadCertifications() ([]Certification, error)
	// LoadTransfers returns all holder changes in the order they were applied
	LoadTransfers() ([]Transfer, error)
	// LoadAdmin returns the stored administrator, if one has been stored
	LoadAdmin() (Identity, bool, error)
	CreateCertification(Certification) error
	UpdateCertification(Certification) error
	TransferCertification(Transfer) error
	SetAdmin(Identity) error
}
