package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
	"github.com/cenkalti/backoff"
)

const maxResponseSize = 1 << 20

// HTTPProvider fetches metadata from {BaseURL}/projects/{id}. Server errors
// and network failures are retried with exponential backoff.
type HTTPProvider struct {
	BaseURL string

	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// MaxElapsed bounds the total time spent retrying. Zero uses 10s.
	MaxElapsed time.Duration

	Logger *slog.Logger
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (p *HTTPProvider) Fetch(ctx context.Context, projectID int64) (mpwebrtc.ProjectMetadata, error) {
	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	requestURL := fmt.Sprintf("%s/projects/%d", strings.TrimRight(p.BaseURL, "/"), projectID)

	var meta mpwebrtc.ProjectMetadata
	operation := func() error {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		request.Header.Set("Accept", "application/json")

		response, err := client.Do(request)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer response.Body.Close()

		body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
		if err != nil {
			return err
		}

		switch {
		case response.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %d", ErrNotFound, projectID))
		case response.StatusCode >= 500:
			return &statusError{code: response.StatusCode, body: string(body)}
		case response.StatusCode < 200 || response.StatusCode >= 300:
			return backoff.Permanent(&statusError{code: response.StatusCode, body: string(body)})
		}

		if err := json.Unmarshal(body, &meta); err != nil {
			return backoff.Permanent(fmt.Errorf("invalid metadata response: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second
	if p.MaxElapsed > 0 {
		policy.MaxElapsedTime = p.MaxElapsed
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("metadata fetch failed, retrying", "url", requestURL, "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		if perm, ok := err.(*backoff.PermanentError); ok {
			err = perm.Err
		}
		return mpwebrtc.ProjectMetadata{}, fmt.Errorf("failed to fetch project %d: %w", projectID, err)
	}
	return meta, nil
}
