package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a failed response is read for diagnostics
const maxErrorBody = 64 << 10

// Envelope is the backend's response wrapper: {"data": ..., "error": ..., "meta": ...}
type Envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *ErrorBody      `json:"error,omitempty"`
	Meta  *Meta           `json:"meta,omitempty"`
}

// ErrorBody is the error part of the envelope
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta carries paging information for list responses
type Meta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// TokenResponse is returned by login, register, oauth and refresh
type TokenResponse struct {
	AccessToken    string `json:"accessToken"`
	RefreshToken   string `json:"refreshToken"`
	ExpiresIn      int64  `json:"expiresIn"`
	UserID         *int64 `json:"userId,omitempty"`
	Email          string `json:"email,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	GitHubUsername string `json:"githubUsername,omitempty"`
}

// decodeEnvelope reads resp and unmarshals the envelope's data into out,
// turning failures into *APIError. out may be nil when the payload is not needed.
func decodeEnvelope(resp *http.Response, out any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env Envelope
		if json.Unmarshal(body, &env) == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		} else if len(body) > 0 {
			if len(body) > maxErrorBody {
				body = body[:maxErrorBody]
			}
			apiErr.Message = string(body)
		}
		return apiErr
	}

	if len(body) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if env.Error != nil {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}
