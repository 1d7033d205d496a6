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
	"net/http"

	"github.com/go-chi/chi/v5"
)

const apiPrefix = "/api/v1"

// Handler returns the routed HTTP handler
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(a.observe)
	r.Get("/health", a.handleHealth)
	r.Route(apiPrefix, func(r chi.Router) {
		r.Get("/", a.handleInfo)

		r.Get("/certifications/{tokenID}", a.handleGetCertification)
		r.Get("/certifications/{tokenID}/owner", a.handleGetOwner)
		r.Get("/certifications/{tokenID}/cbor", a.handleGetCertificationCbor)
		r.Get("/certifications/{tokenID}/transfers", a.handleGetTransfers)

		r.Get("/enterprises/{enterpriseID}/certifications", a.handleListByEnterprise)
		r.Get("/enterprises/{enterpriseID}/details", a.handleEnterpriseDetails)
		r.Get("/enterprises/{enterpriseID}/score", a.handleEnterpriseScore)

		r.Get("/holders/{identity}/certifications", a.handleHolderCertifications)
		r.Get("/holders/{identity}/certifications/{index}", a.handleHolderCertificationByIndex)
		r.Get("/tokens/{index}", a.handleTokenByIndex)

		// Mutations identify the caller from the bearer token
		r.Group(func(r chi.Router) {
			r.Use(a.requireCaller)
			r.Post("/certifications", a.handleIssue)
			r.Post("/certifications/{tokenID}/verify", a.handleVerify)
			r.Put("/certifications/{tokenID}/score", a.handleUpdateScore)
			r.Post("/certifications/{tokenID}/transfer", a.handleTransfer)
			r.Put("/admin", a.handleTransferAdmin)
		})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
