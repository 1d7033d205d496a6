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
package api

import (
	"time"

	"github.com/blinklabs-io/herita/certification"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

type InfoResponse struct {
	Name                string `json:"name"`
	Symbol              string `json:"symbol"`
	Admin               string `json:"admin"`
	TotalCertifications uint64 `json:"total_certifications"`
	TotalSupply         uint64 `json:"total_supply"`
}

// CertificationResponse carries amounts as decimal strings so that values
// beyond 2^53 survive JSON clients
type CertificationResponse struct {
	Timestamp    time.Time  `json:"timestamp"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	Amount       string     `json:"amount"`
	EnterpriseID string     `json:"enterprise_id"`
	ProjectID    string     `json:"project_id"`
	Holder       string     `json:"holder"`
	TokenID      uint64     `json:"token_id"`
	ESGScore     uint8      `json:"esg_score"`
	Verified     bool       `json:"verified"`
}

// NewCertificationResponse converts a certification to its JSON form
func NewCertificationResponse(cert certification.Certification) CertificationResponse {
	ret := CertificationResponse{
		Timestamp:    cert.Timestamp,
		Amount:       cert.Amount.String(),
		EnterpriseID: cert.EnterpriseID,
		ProjectID:    cert.ProjectID,
		Holder:       cert.Holder.String(),
		TokenID:      cert.TokenID,
		ESGScore:     cert.ESGScore,
		Verified:     cert.Verified,
	}
	if !cert.VerifiedAt.IsZero() {
		verifiedAt := cert.VerifiedAt
		ret.VerifiedAt = &verifiedAt
	}
	return ret
}

type TransferResponse struct {
	Timestamp time.Time `json:"timestamp"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	TokenID   uint64    `json:"token_id"`
}

type TokenIDResponse struct {
	TokenID uint64 `json:"token_id"`
}

type OwnerResponse struct {
	Holder  string `json:"holder"`
	TokenID uint64 `json:"token_id"`
}

type EnterpriseScoreResponse struct {
	EnterpriseID     string `json:"enterprise_id"`
	TotalSponsorship string `json:"total_sponsorship"`
	TotalScore       uint64 `json:"total_score"`
	VerifiedCount    uint64 `json:"verified_count"`
}

type HoldingsResponse struct {
	Holder   string   `json:"holder"`
	TokenIDs []uint64 `json:"token_ids"`
	Balance  uint64   `json:"balance"`
}

type IssueRequest struct {
	ESGScore     *int   `json:"esg_score"`
	Recipient    string `json:"recipient"`
	EnterpriseID string `json:"enterprise_id"`
	ProjectID    string `json:"project_id"`
	Amount       string `json:"amount"`
}

type UpdateScoreRequest struct {
	ESGScore *int `json:"esg_score"`
}

type TransferRequest struct {
	To string `json:"to"`
}

type TransferAdminRequest struct {
	Admin string `json:"admin"`
}
