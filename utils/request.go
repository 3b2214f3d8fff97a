package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultRetryTimes    = 3
	DefaultRetryInterval = 100 * time.Millisecond
	DefaultTimeout       = 5 * time.Second
)

// StatusError is returned when the remote answers with a non-200 status.
type StatusError struct {
	Method string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request returned status %d: %s", e.Method, e.Code, e.Body)
}

// GetUrlResponseWithRetry retries read-only GETs with exponential backoff.
// Never use it for requests with side effects.
func GetUrlResponseWithRetry(ctx context.Context, reqUrl string, params map[string]string, result any, retry int, logger *slog.Logger) error {
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		reqUrl += "?" + q.Encode()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = DefaultRetryInterval
	var policy backoff.BackOff = backoff.WithContext(backoff.WithMaxRetries(bo, uint64(max(retry-1, 0))), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := doGet(ctx, reqUrl, result)
		if err != nil && logger != nil {
			logger.Warn("GET request failed", "url", reqUrl, "attempt", attempt, "err", err)
		}
		return err
	}, policy)
	if err != nil {
		return fmt.Errorf("GET request failed after %d attempts: %w", attempt, err)
	}
	return nil
}

func doGet(ctx context.Context, reqUrl string, result any) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create GET request: %w", err))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &StatusError{Method: http.MethodGet, Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(result); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to stream and unmarshal GET response: %w", err))
	}

	return nil
}
