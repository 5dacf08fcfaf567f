package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck reports unhealthy when the goroutine count exceeds
// threshold. Useful as a liveness probe against goroutine leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		count := runtime.NumGoroutine()
		if count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// HTTPGetCheck reports unhealthy when a GET to url fails or returns a 4xx
// or 5xx. Used as a readiness probe for the storefront API and the payment
// widget script.
func HTTPGetCheck(url string, timeout time.Duration) CheckFunc {
	client := &http.Client{
		Timeout: timeout,
		// The probe only cares about reachability.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.Wrap(err, "build request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return errors.Wrap(err, "probe")
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 400 {
			return errors.Errorf("probe returned status %d", resp.StatusCode)
		}
		return nil
	}
}
