package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"commerce-swap/pkg/intent"
)

// SignatureStatusPath is the backend endpoint the pipeline polls
const SignatureStatusPath = "/api/commerce/signature-status"

const defaultRequestTimeout = 10 * time.Second

// signatureStatusRequest is the wire shape of a signature-status query
type signatureStatusRequest struct {
	IntentID   string `json:"intentId"`
	IntentHash string `json:"intentHash"`
}

// SignatureClient queries the commerce backend for intent signatures
type SignatureClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSignatureClient creates a client for the given backend base URL
func NewSignatureClient(baseURL string) *SignatureClient {
	return &SignatureClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

// SignatureStatus asks the backend whether the intent has been signed
func (c *SignatureClient) SignatureStatus(ctx context.Context, intentID, intentHash string) (*intent.SignatureStatus, error) {
	payload, err := json.Marshal(signatureStatusRequest{
		IntentID:   intentID,
		IntentHash: intentHash,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal signature-status request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+SignatureStatusPath, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build signature-status request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "signature-status request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Try to extract the actual error message from the response
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr == nil && len(bodyBytes) > 0 {
			var errorResp map[string]interface{}
			if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
				if message, ok := errorResp["message"].(string); ok {
					return nil, errors.Errorf("API error (status %d): %s", resp.StatusCode, message)
				}
			}
			return nil, errors.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
		}
		return nil, errors.Errorf("API returned status code %d", resp.StatusCode)
	}

	var status intent.SignatureStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, errors.Wrap(err, "failed to decode signature-status response")
	}

	return &status, nil
}
