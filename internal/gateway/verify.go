package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type verifyRequest struct {
	Platform    string            `json:"platform"`
	Credentials map[string]string `json:"credentials"`
}

type verifyResponse struct {
	Valid *bool `json:"valid"`
}

// Verify asks the verification service whether fields are valid credentials
// for platform. A definitive answer is returned as (valid, nil); anything
// else wraps ErrUnavailable or is ErrNotConfigured. A 4xx reply is a
// rejection unless it is a timeout or throttling status without a verdict.
func (c *Client) Verify(ctx context.Context, platform string, fields map[string]string) (bool, error) {
	if c.verifyURL == "" {
		return false, ErrNotConfigured
	}

	payload, err := json.Marshal(verifyRequest{Platform: platform, Credentials: fields})
	if err != nil {
		return false, err
	}

	body, err := c.do(ctx, endpointVerify, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.verifyURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && rejected(statusErr) {
			return false, nil
		}
		return false, err
	}

	var result verifyResponse
	if err := json.Unmarshal(body, &result); err != nil || result.Valid == nil {
		return false, fmt.Errorf("%s: %w: malformed reply", endpointVerify, ErrUnavailable)
	}
	return *result.Valid, nil
}

func rejected(e *StatusError) bool {
	if e.Code < 400 || e.Code > 499 {
		return false
	}
	var result verifyResponse
	if json.Unmarshal([]byte(e.Body), &result) == nil && result.Valid != nil {
		return !*result.Valid
	}
	return e.Code != http.StatusRequestTimeout && e.Code != http.StatusTooManyRequests
}
