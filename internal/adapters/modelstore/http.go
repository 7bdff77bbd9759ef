package modelstore

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"solar_price/internal/adapters/observability"
	"solar_price/internal/domain"
)

// maxArtifact bounds the model download.
const maxArtifact = 32 << 20

var (
	ErrUnauthorized = errors.New("modelstore: unauthorized")
	ErrForbidden    = errors.New("modelstore: forbidden")
)

// HTTPStore fetches the exported model from an artifact server.
type HTTPStore struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func NewHTTP(base, key string, rps int) (*HTTPStore, error) {
	if base == "" {
		return nil, fmt.Errorf("model URL is required")
	}
	if rps <= 0 {
		rps = 2
	}
	return &HTTPStore{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Load tries the URL as given when it names a .json file, otherwise
// {base}/model.json and then {base}/latest/model.json.
func (s *HTTPStore) Load(ctx context.Context) ([]byte, error) {
	candidates := []string{s.base}
	if !strings.HasSuffix(s.base, ".json") {
		candidates = []string{s.base + "/model.json", s.base + "/latest/model.json"}
	}
	var last error
	for _, u := range candidates {
		b, err := s.get(ctx, u)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				last = err
				continue
			}
			return nil, err
		}
		return b, nil
	}
	return nil, last
}

// get performs a GET with client-side rate limiting and retries on 429 and
// transient 5xx, honoring Retry-After when provided.
func (s *HTTPStore) get(ctx context.Context, url string) ([]byte, error) {
	if err := s.rl.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if s.key != "" {
			req.Header.Set("Authorization", "Bearer "+s.key)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "solar-price/1.0")

		start := time.Now()
		resp, err := s.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("model_store", "model", 0, time.Since(start))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, lastErr
		}
		observability.ObserveExternal("model_store", "model", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			b, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifact+1))
			resp.Body.Close()
			if err != nil {
				return nil, err
			}
			if len(b) > maxArtifact {
				return nil, fmt.Errorf("model artifact exceeds %d bytes", maxArtifact)
			}
			return b, nil

		case http.StatusNotFound:
			resp.Body.Close()
			return nil, fmt.Errorf("%s: %w", url, domain.ErrNotFound)

		case http.StatusUnauthorized:
			resp.Body.Close()
			return nil, ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return nil, ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return nil, lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff: 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
