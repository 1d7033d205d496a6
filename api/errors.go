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
	"errors"
	"net/http"

	"github.com/blinklabs-io/herita/certification"
)

var errRecordsUnavailable = errors.New("certification records are not available")

// statusForError maps registry errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, certification.ErrInvalidInput),
		errors.Is(err, certification.ErrInvalidRecipient):
		return http.StatusBadRequest
	case errors.Is(err, certification.ErrNotFound),
		errors.Is(err, certification.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, certification.ErrDuplicateSponsorship),
		errors.Is(err, certification.ErrAlreadyVerified):
		return http.StatusConflict
	case errors.Is(err, certification.ErrUnauthorized),
		errors.Is(err, certification.ErrNotHolder):
		return http.StatusForbidden
	case errors.Is(err, errRecordsUnavailable):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// writeRegistryError writes the response for a failed registry call. Server
// side failures are logged and their detail withheld from the client.
func (a *API) writeRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		a.logger.Error(
			"request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", requestIDFromContext(r.Context()),
		)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
