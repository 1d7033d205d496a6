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
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/blinklabs-io/herita/event"
	"github.com/blinklabs-io/herita/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

type RegistryConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	EventBus     *event.EventBus
	// Store is optional. Without it the registry lives in memory only.
	Store Store
	// Now is the clock used for issuance and verification timestamps
	Now    func() time.Time
	Name   string
	Symbol string
	// Admin is used when the store does not already hold an administrator
	Admin Identity
}

// Registry holds every certification ever issued along with the enterprise
// index and the token ownership ledger. All mutations are serialized by a
// single lock, which is held through persistence and event publication so
// that observers see mutations in the order they were applied. Publication
// only queues events, so a slow observer never holds up the registry.
type Registry struct {
	config       RegistryConfig
	metrics      registryMetrics
	ownership    *ledger.Ownership
	sponsorships map[sponsorshipKey]uint64
	enterprises  map[string][]uint64
	// certs[i] holds token ID i+1
	certs []Certification
	admin Identity
	mu    sync.RWMutex
}

func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "certification")
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Symbol == "" {
		cfg.Symbol = DefaultSymbol
	}
	r := &Registry{
		config:       cfg,
		ownership:    ledger.NewOwnership(),
		sponsorships: make(map[sponsorshipKey]uint64),
		enterprises:  make(map[string][]uint64),
	}
	r.metrics.init(cfg.PromRegistry)
	if err := r.loadAdmin(); err != nil {
		return nil, err
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	r.metrics.totalSupply.Set(float64(len(r.certs)))
	return r, nil
}

func (r *Registry) loadAdmin() error {
	if r.config.Store != nil {
		stored, ok, err := r.config.Store.LoadAdmin()
		if err != nil {
			return fmt.Errorf("load administrator: %w", err)
		}
		if ok && stored != NullIdentity {
			if r.config.Admin != NullIdentity && r.config.Admin != stored {
				r.config.Logger.Warn(
					"configured administrator differs from stored administrator, using stored value",
					"configured", r.config.Admin.String(),
					"stored", stored.String(),
				)
			}
			r.admin = stored
			return nil
		}
	}
	if r.config.Admin == NullIdentity {
		return fmt.Errorf(
			"%w: administrator identity must not be null",
			ErrInvalidRecipient,
		)
	}
	if r.config.Store != nil {
		if err := r.config.Store.SetAdmin(r.config.Admin); err != nil {
			return fmt.Errorf("store administrator: %w", err)
		}
	}
	r.admin = r.config.Admin
	return nil
}

// load rebuilds in-memory state from the store. Transfers are replayed at the
// point in the issuance sequence where they happened, which reproduces the
// per-holder enumeration order.
func (r *Registry) load() error {
	if r.config.Store == nil {
		return nil
	}
	certs, err := r.config.Store.LoadCertifications()
	if err != nil {
		return fmt.Errorf("load certifications: %w", err)
	}
	transfers, err := r.config.Store.LoadTransfers()
	if err != nil {
		return fmt.Errorf("load transfers: %w", err)
	}
	initialHolders := make(map[uint64]Identity)
	pending := make(map[uint64][]Transfer)
	for _, t := range transfers {
		if t.AfterToken == 0 || t.AfterToken > uint64(len(certs)) {
			return fmt.Errorf(
				"transfer of token %d is outside the issuance sequence",
				t.TokenID,
			)
		}
		if _, ok := initialHolders[t.TokenID]; !ok {
			initialHolders[t.TokenID] = t.From
		}
		pending[t.AfterToken] = append(pending[t.AfterToken], t)
	}
	storedHolders := make([]Identity, 0, len(certs))
	for idx, cert := range certs {
		if cert.TokenID != uint64(idx)+1 {
			return fmt.Errorf(
				"stored certifications are not sequential: expected token %d, found %d",
				idx+1,
				cert.TokenID,
			)
		}
		storedHolders = append(storedHolders, cert.Holder)
		if holder, ok := initialHolders[cert.TokenID]; ok {
			cert.Holder = holder
		}
		if err := r.applyIssue(cert); err != nil {
			return fmt.Errorf("restore token %d: %w", cert.TokenID, err)
		}
		for _, t := range pending[cert.TokenID] {
			if err := r.applyTransfer(t); err != nil {
				return fmt.Errorf("replay transfer of token %d: %w", t.TokenID, err)
			}
		}
	}
	for idx := range r.certs {
		if r.certs[idx].Holder != storedHolders[idx] {
			return fmt.Errorf(
				"stored holder of token %d does not match transfer history",
				r.certs[idx].TokenID,
			)
		}
	}
	if len(certs) > 0 {
		r.config.Logger.Info(
			fmt.Sprintf(
				"loaded %d certifications and %d transfers",
				len(certs),
				len(transfers),
			),
		)
	}
	return nil
}

// applyIssue adds a validated certification to the in-memory state
func (r *Registry) applyIssue(cert Certification) error {
	if err := r.ownership.Mint(cert.TokenID, cert.Holder); err != nil {
		return err
	}
	r.certs = append(r.certs, cert)
	r.enterprises[cert.EnterpriseID] = append(
		r.enterprises[cert.EnterpriseID],
		cert.TokenID,
	)
	r.sponsorships[sponsorshipKey{
		enterpriseID: cert.EnterpriseID,
		projectID:    cert.ProjectID,
	}] = cert.TokenID
	return nil
}

func (r *Registry) applyTransfer(t Transfer) error {
	if err := r.ownership.Transfer(t.TokenID, t.From, t.To); err != nil {
		return err
	}
	r.certs[t.TokenID-1].Holder = t.To
	return nil
}

func (r *Registry) lookup(tokenID uint64) (*Certification, error) {
	if tokenID == 0 || tokenID > uint64(len(r.certs)) {
		return nil, fmt.Errorf("%w: token %d", ErrNotFound, tokenID)
	}
	return &r.certs[tokenID-1], nil
}

func (r *Registry) checkAdmin(caller Identity) error {
	if caller == NullIdentity || caller != r.admin {
		return fmt.Errorf(
			"%w: %s is not the administrator",
			ErrUnauthorized,
			caller.String(),
		)
	}
	return nil
}

func validateScore(score int) error {
	if score < MinESGScore || score > MaxESGScore {
		return fmt.Errorf(
			"%w: ESG score must be between %d and %d, got %d",
			ErrInvalidInput,
			MinESGScore,
			MaxESGScore,
			score,
		)
	}
	return nil
}

func (r *Registry) publish(eventType event.EventType, data any) {
	if r.config.EventBus == nil {
		return
	}
	r.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}

func (r *Registry) failed(op string, err error) error {
	r.metrics.errors.WithLabelValues(op, errorReason(err)).Inc()
	return err
}

// Issue creates a new certification held by recipient and returns its token ID
func (r *Registry) Issue(
	caller Identity,
	recipient Identity,
	enterpriseID string,
	projectID string,
	amount *big.Int,
	esgScore int,
) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkAdmin(caller); err != nil {
		return 0, r.failed("issue", err)
	}
	if recipient == NullIdentity {
		return 0, r.failed("issue", fmt.Errorf(
			"%w: cannot mint to the null identity",
			ErrInvalidRecipient,
		))
	}
	if enterpriseID == "" {
		return 0, r.failed("issue", fmt.Errorf(
			"%w: enterprise ID cannot be empty",
			ErrInvalidInput,
		))
	}
	if projectID == "" {
		return 0, r.failed("issue", fmt.Errorf(
			"%w: project ID cannot be empty",
			ErrInvalidInput,
		))
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, r.failed("issue", fmt.Errorf(
			"%w: amount must be greater than 0",
			ErrInvalidInput,
		))
	}
	if err := validateScore(esgScore); err != nil {
		return 0, r.failed("issue", err)
	}
	key := sponsorshipKey{enterpriseID: enterpriseID, projectID: projectID}
	if existing, ok := r.sponsorships[key]; ok {
		return 0, r.failed("issue", fmt.Errorf(
			"%w: enterprise %q project %q is certified by token %d",
			ErrDuplicateSponsorship,
			enterpriseID,
			projectID,
			existing,
		))
	}
	cert := Certification{
		TokenID:      uint64(len(r.certs)) + 1,
		EnterpriseID: enterpriseID,
		ProjectID:    projectID,
		Amount:       new(big.Int).Set(amount),
		ESGScore:     uint8(esgScore), // #nosec G115
		Timestamp:    r.config.Now(),
		Holder:       recipient,
	}
	if r.config.Store != nil {
		if err := r.config.Store.CreateCertification(cert.Clone()); err != nil {
			return 0, r.failed("issue", fmt.Errorf(
				"persist certification %d: %w",
				cert.TokenID,
				err,
			))
		}
	}
	if err := r.applyIssue(cert); err != nil {
		return 0, r.failed("issue", err)
	}
	r.metrics.issued.Inc()
	r.metrics.totalSupply.Set(float64(len(r.certs)))
	r.config.Logger.Info(
		fmt.Sprintf(
			"issued certification %d for enterprise %s, project %s",
			cert.TokenID,
			enterpriseID,
			projectID,
		),
		"holder", recipient.String(),
		"amount", cert.Amount.String(),
		"esg_score", cert.ESGScore,
	)
	r.publish(
		CertificationIssuedEventType,
		CertificationIssuedEvent{
			TokenID:      cert.TokenID,
			EnterpriseID: enterpriseID,
			ProjectID:    projectID,
			Amount:       new(big.Int).Set(cert.Amount),
			ESGScore:     cert.ESGScore,
			Recipient:    recipient,
		},
	)
	return cert.TokenID, nil
}

// Verify marks a certification as verified. A certification can only be
// verified once.
func (r *Registry) Verify(caller Identity, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkAdmin(caller); err != nil {
		return r.failed("verify", err)
	}
	cert, err := r.lookup(tokenID)
	if err != nil {
		return r.failed("verify", err)
	}
	if cert.Verified {
		return r.failed("verify", fmt.Errorf(
			"%w: token %d",
			ErrAlreadyVerified,
			tokenID,
		))
	}
	updated := cert.Clone()
	updated.Verified = true
	updated.VerifiedAt = r.config.Now()
	if r.config.Store != nil {
		if err := r.config.Store.UpdateCertification(updated.Clone()); err != nil {
			return r.failed("verify", fmt.Errorf(
				"persist certification %d: %w",
				tokenID,
				err,
			))
		}
	}
	*cert = updated
	r.metrics.verified.Inc()
	r.config.Logger.Info(
		fmt.Sprintf("verified certification %d", tokenID),
		"enterprise", cert.EnterpriseID,
		"project", cert.ProjectID,
	)
	r.publish(
		CertificationVerifiedEventType,
		CertificationVerifiedEvent{
			TokenID:      tokenID,
			EnterpriseID: cert.EnterpriseID,
			ProjectID:    cert.ProjectID,
		},
	)
	return nil
}

// UpdateScore overwrites the ESG score of a certification, verified or not
func (r *Registry) UpdateScore(
	caller Identity,
	tokenID uint64,
	newScore int,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkAdmin(caller); err != nil {
		return r.failed("update_score", err)
	}
	cert, err := r.lookup(tokenID)
	if err != nil {
		return r.failed("update_score", err)
	}
	if err := validateScore(newScore); err != nil {
		return r.failed("update_score", err)
	}
	oldScore := cert.ESGScore
	updated := cert.Clone()
	updated.ESGScore = uint8(newScore) // #nosec G115
	if r.config.Store != nil {
		if err := r.config.Store.UpdateCertification(updated.Clone()); err != nil {
			return r.failed("update_score", fmt.Errorf(
				"persist certification %d: %w",
				tokenID,
				err,
			))
		}
	}
	*cert = updated
	r.metrics.scoreUpdates.Inc()
	r.config.Logger.Info(
		fmt.Sprintf(
			"updated ESG score of certification %d from %d to %d",
			tokenID,
			oldScore,
			updated.ESGScore,
		),
	)
	r.publish(
		CertificationScoreUpdatedEventType,
		CertificationScoreUpdatedEvent{
			TokenID:  tokenID,
			OldScore: oldScore,
			NewScore: updated.ESGScore,
		},
	)
	return nil
}

// Transfer moves a certification token from its current holder to another
// identity. Only the holder may transfer. The certification record itself
// is not changed apart from its holder.
func (r *Registry) Transfer(caller Identity, tokenID uint64, to Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cert, err := r.lookup(tokenID)
	if err != nil {
		return r.failed("transfer", err)
	}
	if caller != cert.Holder {
		return r.failed("transfer", fmt.Errorf(
			"%w: token %d",
			ErrNotHolder,
			tokenID,
		))
	}
	if to == NullIdentity {
		return r.failed("transfer", fmt.Errorf(
			"%w: cannot transfer to the null identity",
			ErrInvalidRecipient,
		))
	}
	if to == caller {
		return nil
	}
	t := Transfer{
		Timestamp:  r.config.Now(),
		TokenID:    tokenID,
		AfterToken: uint64(len(r.certs)),
		From:       caller,
		To:         to,
	}
	if r.config.Store != nil {
		if err := r.config.Store.TransferCertification(t); err != nil {
			return r.failed("transfer", fmt.Errorf(
				"persist transfer of certification %d: %w",
				tokenID,
				err,
			))
		}
	}
	if err := r.applyTransfer(t); err != nil {
		return r.failed("transfer", err)
	}
	r.metrics.transfers.Inc()
	r.config.Logger.Info(
		fmt.Sprintf("transferred certification %d", tokenID),
		"from", caller.String(),
		"to", to.String(),
	)
	r.publish(
		CertificationTransferredEventType,
		CertificationTransferredEvent{
			TokenID: tokenID,
			From:    caller,
			To:      to,
		},
	)
	return nil
}

// TransferAdmin hands administration of the registry to another identity
func (r *Registry) TransferAdmin(caller Identity, newAdmin Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkAdmin(caller); err != nil {
		return r.failed("transfer_admin", err)
	}
	if newAdmin == NullIdentity {
		return r.failed("transfer_admin", fmt.Errorf(
			"%w: administrator cannot be the null identity",
			ErrInvalidRecipient,
		))
	}
	if r.config.Store != nil {
		if err := r.config.Store.SetAdmin(newAdmin); err != nil {
			return r.failed("transfer_admin", fmt.Errorf(
				"persist administrator: %w",
				err,
			))
		}
	}
	r.admin = newAdmin
	r.config.Logger.Info(
		"administrator changed",
		"from", caller.String(),
		"to", newAdmin.String(),
	)
	return nil
}

// Certification returns a copy of a single certification
func (r *Registry) Certification(tokenID uint64) (Certification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cert, err := r.lookup(tokenID)
	if err != nil {
		return Certification{}, err
	}
	return cert.Clone(), nil
}

// ListByEnterprise returns the token IDs issued to an enterprise in issuance
// order. The result is empty, never nil, for unknown enterprises.
func (r *Registry) ListByEnterprise(enterpriseID string) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]uint64{}, r.enterprises[enterpriseID]...)
}

// EnterpriseDetails returns copies of an enterprise's certifications in
// issuance order
func (r *Registry) EnterpriseDetails(enterpriseID string) []Certification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tokenIDs := r.enterprises[enterpriseID]
	ret := make([]Certification, 0, len(tokenIDs))
	for _, tokenID := range tokenIDs {
		ret = append(ret, r.certs[tokenID-1].Clone())
	}
	return ret
}

// EnterpriseScore sums the ESG scores of an enterprise's verified
// certifications. Unverified certifications are not counted.
func (r *Registry) EnterpriseScore(
	enterpriseID string,
) (totalScore uint64, verifiedCount uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tokenID := range r.enterprises[enterpriseID] {
		cert := &r.certs[tokenID-1]
		if !cert.Verified {
			continue
		}
		totalScore += uint64(cert.ESGScore)
		verifiedCount++
	}
	return totalScore, verifiedCount
}

// EnterpriseSponsorship returns the total amount across all of an
// enterprise's certifications, verified or not
func (r *Registry) EnterpriseSponsorship(enterpriseID string) *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := new(big.Int)
	for _, tokenID := range r.enterprises[enterpriseID] {
		total.Add(total, r.certs[tokenID-1].Amount)
	}
	return total
}

// OwnerOf returns the current holder of a certification token
func (r *Registry) OwnerOf(tokenID uint64) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	holder, err := r.ownership.OwnerOf(tokenID)
	if err != nil {
		if errors.Is(err, ledger.ErrTokenNotFound) {
			return NullIdentity, fmt.Errorf("%w: token %d", ErrNotFound, tokenID)
		}
		return NullIdentity, err
	}
	return holder, nil
}

// BalanceOf returns the number of certification tokens held by an identity
func (r *Registry) BalanceOf(holder Identity) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownership.BalanceOf(holder)
}

// TokensOf returns the token IDs held by an identity, in the order received
func (r *Registry) TokensOf(holder Identity) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]uint64{}, r.ownership.TokensOf(holder)...)
}

// TotalSupply returns the number of certification tokens in existence
func (r *Registry) TotalSupply() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownership.TotalSupply()
}

// TokenByIndex returns the token at a zero-based index in issuance order
func (r *Registry) TokenByIndex(index uint64) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownership.TokenByIndex(index)
}

// TokenOfOwnerByIndex returns the token at a zero-based index among the
// tokens held by an identity
func (r *Registry) TokenOfOwnerByIndex(
	holder Identity,
	index uint64,
) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownership.TokenOfOwnerByIndex(holder, index)
}

// TotalCertifications returns the number of certifications ever issued
func (r *Registry) TotalCertifications() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.certs))
}

func (r *Registry) Admin() Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin
}

func (r *Registry) IsAdmin(caller Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return caller != NullIdentity && caller == r.admin
}

func (r *Registry) Name() string {
	return r.config.Name
}

func (r *Registry) Symbol() string {
	return r.config.Symbol
}
