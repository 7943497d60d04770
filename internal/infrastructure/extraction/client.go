// Package extraction calls the external document-extraction service that
// turns uploaded prescriptions and bills into structured claim fields.  The
// service is the only external HTTP dependency; everything it returns is
// treated as untrusted strings and re-parsed by the adjudication normalizer.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medishield/opdclaims/internal/config"
	"github.com/medishield/opdclaims/internal/domain/adjudication"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	"github.com/medishield/opdclaims/pkg/errors"
)

// DocumentInput is one document submitted for extraction.
type DocumentInput struct {
	Kind        string `json:"kind"` // prescription | bill | test_report
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"` // base64-encoded by encoding/json
}

// Extractor is the contract the claims service depends on.
type Extractor interface {
	// Extract submits the claim documents and returns one RawClaim per claim
	// found in them.  More than one element means the upload bundled several
	// claims; the caller decides how to handle that.
	Extract(ctx context.Context, docs []DocumentInput) ([]adjudication.RawClaim, error)
}

type extractResponse struct {
	Claims []adjudication.RawClaim `json:"claims"`
}

type client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient creates an extraction client from service configuration.
func NewClient(cfg config.ExtractionConfig, log logging.Logger) (Extractor, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeValidation, "extraction base url required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}, nil
}

// NewClientWithHTTP wraps a custom HTTP client (for tests).
func NewClientWithHTTP(baseURL string, httpClient *http.Client, log logging.Logger) Extractor {
	return &client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     log,
	}
}

func (c *client) Extract(ctx context.Context, docs []DocumentInput) ([]adjudication.RawClaim, error) {
	if len(docs) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "no documents to extract")
	}

	body, err := json.Marshal(map[string]interface{}{"documents": docs})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal extraction request")
	}

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		claims, retryable, err := c.doExtract(ctx, body)
		if err == nil {
			return claims, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.Warn("Extraction attempt failed",
			logging.Int("attempt", attempt+1),
			logging.Err(err),
		)
	}
	return nil, lastErr
}

// doExtract performs one request.  retryable is true for transport errors and
// 5xx responses; 4xx responses and malformed payloads fail immediately.
func (c *client) doExtract(ctx context.Context, body []byte) (claims []adjudication.RawClaim, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeInternal, "failed to build extraction request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, errors.Wrap(err, errors.ErrCodeExtractionUnavailable, "extraction service unreachable")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, true, errors.Wrap(err, errors.ErrCodeExtractionUnavailable, "failed to read extraction response")
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, true, errors.Newf(errors.ErrCodeExtractionUnavailable,
			"extraction service returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, errors.Newf(errors.ErrCodeExtractionFailed,
			"extraction rejected the documents: %d %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed extractResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeExtractionMalformed, "malformed extraction response")
	}
	if len(parsed.Claims) == 0 {
		return nil, false, errors.New(errors.ErrCodeExtractionMalformed, "extraction returned no claims")
	}
	return parsed.Claims, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
