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
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/blinklabs-io/herita/certification"
	"github.com/go-chi/chi/v5"
)

const maxRequestBodySize = 1 << 20

// writeJSON writes a JSON response with the given status
// code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(
	w http.ResponseWriter,
	status int,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", certification.ErrInvalidInput, err)
	}
	return nil
}

func uintParam(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", certification.ErrInvalidInput, name, raw)
	}
	return v, nil
}

func identityParam(r *http.Request, name string) (certification.Identity, error) {
	return certification.ParseIdentity(chi.URLParam(r, name))
}

// parseRecipient parses an identity that will receive a token or a role
func parseRecipient(field string, raw string) (certification.Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return certification.NullIdentity, fmt.Errorf(
			"%w: %s is required",
			certification.ErrInvalidRecipient,
			field,
		)
	}
	return certification.ParseIdentity(raw)
}

// requireAdmin rejects callers other than the administrator before the
// request body is read. The registry repeats the check under its lock.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	caller := callerFromContext(r.Context())
	if a.registry.IsAdmin(caller) {
		return true
	}
	a.writeRegistryError(w, r, fmt.Errorf(
		"%w: %s is not the administrator",
		certification.ErrUnauthorized,
		caller.String(),
	))
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{IsHealthy: true})
}

func (a *API) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Name:                a.registry.Name(),
		Symbol:              a.registry.Symbol(),
		Admin:               a.registry.Admin().String(),
		TotalCertifications: a.registry.TotalCertifications(),
		TotalSupply:         a.registry.TotalSupply(),
	})
}

func (a *API) handleIssue(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	var req IssueRequest
	if err := readJSON(w, r, &req); err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	recipient, err := parseRecipient("recipient", req.Recipient)
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		a.writeRegistryError(w, r, fmt.Errorf(
			"%w: amount must be a decimal integer, got %q",
			certification.ErrInvalidInput,
			req.Amount,
		))
		return
	}
	if req.ESGScore == nil {
		a.writeRegistryError(w, r, fmt.Errorf(
			"%w: esg_score is required",
			certification.ErrInvalidInput,
		))
		return
	}
	tokenID, err := a.registry.Issue(
		callerFromContext(r.Context()),
		recipient,
		req.EnterpriseID,
		req.ProjectID,
		amount,
		*req.ESGScore,
	)
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/certifications/%d", apiPrefix, tokenID))
	writeJSON(w, http.StatusCreated, TokenIDResponse{TokenID: tokenID})
}

func (a *API) writeCertification(w http.ResponseWriter, r *http.Request, tokenID uint64) {
	cert, err := a.registry.Certification(tokenID)
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewCertificationResponse(cert))
}

func (a *API) handleGetCertification(w http.ResponseWriter, r *http.Request) {
	tokenID, err := uintParam(r, "tokenID")
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	a.writeCertification(w, r, tokenID)
}

func (a *API) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	tokenID, err := uintParam(r, "tokenID")
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	holder, err := a.registry.OwnerOf(tokenID)
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OwnerResponse{
		TokenID: tokenID,
		Holder:  holder.String(),
	})
}

func (a *API) handleGetCertificationCbor(w http.ResponseWriter, r *http.Request) {
	tokenID, err := uintParam(r, "tokenID")
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	if a.records == nil {
		a.writeRegistryError(w, r, errRecordsUnavailable)
		return
	}
	data, err := a.records.CertificationCbor(tokenID)
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) handleGetTransfers(w http.ResponseWriter, r *http.Request) {
	tokenID, err := uintParam(r, "tokenID")
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	if a.records == nil {
		a.writeRegistryError(w, r, errRecordsUnavailable)
		return
	}
	// Distinguish an unknown token from one that never moved
	if _, err := a.registry.Certification(tokenID); err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	params, err := ParsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	transfers, err := a.records.TransferHistory(tokenID)
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	ret := make([]TransferResponse, 0, len(transfers))
	for _, t := range transfers {
		ret = append(ret, TransferResponse{
			Timestamp: t.Timestamp,
			TokenID:   t.TokenID,
			From:      t.From.String(),
			To:        t.To.String(),
		})
	}
	SetPaginationHeaders(w, len(ret), params)
	writeJSON(w, http.StatusOK, paginate(ret, params))
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	tokenID, err := uintParam(r, "tokenID")
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	if err := a.registry.Verify(callerFromContext(r.Context()), tokenID); err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	a.writeCertification(w, r, tokenID)
}

func (a *API) handleUpdateScore(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	tokenID, err := uintParam(r, "tokenID")
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	var req UpdateScoreRequest
	if err := readJSON(w, r, &req); err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	if req.ESGScore == nil {
		a.writeRegistryError(w, r, fmt.Errorf(
			"%w: esg_score is required",
			certification.ErrInvalidInput,
		))
		return
	}
	err = a.registry.UpdateScore(
		callerFromContext(r.Context()),
		tokenID,
		*req.ESGScore,
	)
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	a.writeCertification(w, r, tokenID)
}

func (a *API) handleTransfer(w http.ResponseWriter, r *http.Request) {
	tokenID, err := uintParam(r, "tokenID")
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	var req TransferRequest
	if err := readJSON(w, r, &req); err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	to, err := parseRecipient("to", req.To)
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	if err := a.registry.Transfer(callerFromContext(r.Context()), tokenID, to); err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	a.writeCertification(w, r, tokenID)
}

func (a *API) handleTransferAdmin(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	var req TransferAdminRequest
	if err := readJSON(w, r, &req); err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	admin, err := parseRecipient("admin", req.Admin)
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	if err := a.registry.TransferAdmin(callerFromContext(r.Context()), admin); err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	a.handleInfo(w, r)
}

func (a *API) handleListByEnterprise(w http.ResponseWriter, r *http.Request) {
	params, err := ParsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tokenIDs := a.registry.ListByEnterprise(chi.URLParam(r, "enterpriseID"))
	SetPaginationHeaders(w, len(tokenIDs), params)
	writeJSON(w, http.StatusOK, paginate(tokenIDs, params))
}

func (a *API) handleEnterpriseDetails(w http.ResponseWriter, r *http.Request) {
	params, err := ParsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	certs := a.registry.EnterpriseDetails(chi.URLParam(r, "enterpriseID"))
	ret := make([]CertificationResponse, 0, len(certs))
	for _, cert := range certs {
		ret = append(ret, NewCertificationResponse(cert))
	}
	SetPaginationHeaders(w, len(ret), params)
	writeJSON(w, http.StatusOK, paginate(ret, params))
}

func (a *API) handleEnterpriseScore(w http.ResponseWriter, r *http.Request) {
	enterpriseID := chi.URLParam(r, "enterpriseID")
	total, count := a.registry.EnterpriseScore(enterpriseID)
	writeJSON(w, http.StatusOK, EnterpriseScoreResponse{
		EnterpriseID:     enterpriseID,
		TotalScore:       total,
		VerifiedCount:    count,
		TotalSponsorship: a.registry.EnterpriseSponsorship(enterpriseID).String(),
	})
}

func (a *API) handleHolderCertifications(w http.ResponseWriter, r *http.Request) {
	holder, err := identityParam(r, "identity")
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	params, err := ParsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tokenIDs := a.registry.TokensOf(holder)
	SetPaginationHeaders(w, len(tokenIDs), params)
	writeJSON(w, http.StatusOK, HoldingsResponse{
		Holder:   holder.String(),
		Balance:  uint64(len(tokenIDs)),
		TokenIDs: paginate(tokenIDs, params),
	})
}

func (a *API) handleHolderCertificationByIndex(w http.ResponseWriter, r *http.Request) {
	holder, err := identityParam(r, "identity")
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	index, err := uintParam(r, "index")
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	tokenID, err := a.registry.TokenOfOwnerByIndex(holder, index)
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenIDResponse{TokenID: tokenID})
}

func (a *API) handleTokenByIndex(w http.ResponseWriter, r *http.Request) {
	index, err := uintParam(r, "index")
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	tokenID, err := a.registry.TokenByIndex(index)
	if err != nil {
		a.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenIDResponse{TokenID: tokenID})
}
