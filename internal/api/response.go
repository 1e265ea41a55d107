// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/relaychat/internal/logging"
	"github.com/tomtom215/relaychat/internal/models"
)

// Error codes for API responses.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeValidationFailed   = "VALIDATION_ERROR"
)

// respondJSON writes response with an ETag. A matching If-None-Match gets 304.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if status == http.StatusOK {
		if etag, err := generateETag(response); err == nil {
			w.Header().Set("ETag", etag)
			if r != nil && etagMatches(r.Header.Get("If-None-Match"), etag) {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// generateETag hashes the response payload. The envelope timestamp is left
// out so unchanged data keeps the same tag.
func generateETag(response *models.APIResponse) (string, error) {
	payload, err := json.Marshal(response.Data)
	if err != nil {
		return "", err
	}
	h := xxhash.New()
	_, _ = h.WriteString(response.Status)
	_, _ = h.Write(payload)
	return `"` + strconv.FormatUint(h.Sum64(), 16) + `"`, nil
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimSpace(candidate) == etag {
			return true
		}
	}
	return false
}

func success(data interface{}) *models.APIResponse {
	return &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	}
}

// respondError writes an error envelope. err, when set, is logged with the
// request correlation ID and never sent to the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logger := logging.Logger()
		if r != nil {
			logger = *logging.Ctx(r.Context())
		}
		logger.Error().Str("code", code).Err(err).Msg("API error")
	}

	respondJSON(w, r, status, &models.APIResponse{
		Status:   "error",
		Data:     nil,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

func respondValidationError(w http.ResponseWriter, r *http.Request, message string, details map[string]interface{}) {
	respondJSON(w, r, http.StatusBadRequest, &models.APIResponse{
		Status:   "error",
		Data:     nil,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    ErrCodeValidationFailed,
			Message: message,
			Details: details,
		},
	})
}
