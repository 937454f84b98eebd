// Package feedclient fetches and normalizes the upstream network-wide
// snapshot and transceiver feeds (C1). It is the only package that ever
// sees the raw upstream JSON shape; everything downstream consumes
// internal/model records. Grounded on the teacher's pkg/adsb/airplaneslive.go
// (rate limiting, 429/Retry-After handling, tolerant numeric coercion)
// and pkg/adsb/retry.go (now generalized into internal/retry).
package feedclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vatpac/stats-ingestor/internal/config"
	"github.com/vatpac/stats-ingestor/internal/errs"
	"github.com/vatpac/stats-ingestor/internal/model"
	"github.com/vatpac/stats-ingestor/internal/retry"
)

// FetchTimeout is the hard per-request ceiling from §4.1: a fetch that
// takes longer is treated as FeedUnavailable, never left to hang.
const FetchTimeout = 30 * time.Second

// Client fetches the snapshot and transceiver feeds over HTTP.
type Client struct {
	cfg        config.Feed
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

func New(cfg config.Feed, log zerolog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: FetchTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		log:     log,
	}
}

// RateLimitError mirrors the teacher's upstream 429 signal, carrying the
// Retry-After delay so internal/retry.WithBackoffResult can honor it.
type RateLimitError struct {
	StatusCode int
	Delay      time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("feed returned %d, retry after %s", e.StatusCode, e.Delay)
}

func (e *RateLimitError) RetryAfter() time.Duration { return e.Delay }

// FetchSnapshot retrieves and normalizes the network-wide pilot/controller
// snapshot. A malformed top-level payload (not valid JSON, missing the
// envelope fields this service depends on) is reported as FeedCorrupt and
// is not retried; transport failures and non-2xx responses are
// FeedUnavailable and are retried by the caller via internal/retry.
func (c *Client) FetchSnapshot(ctx context.Context) (model.Snapshot, error) {
	body, err := c.get(ctx, c.cfg.SnapshotURL)
	if err != nil {
		return model.Snapshot{}, err
	}

	var raw rawSnapshot
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.Snapshot{}, errs.FeedCorrupt("feedclient.FetchSnapshot", fmt.Errorf("decode envelope: %w", err))
	}
	if raw.General.UpdateTimestamp == "" {
		return model.Snapshot{}, errs.FeedCorrupt("feedclient.FetchSnapshot", fmt.Errorf("missing general.update_timestamp"))
	}
	generatedAt, err := parseTimestamp(raw.General.UpdateTimestamp)
	if err != nil {
		return model.Snapshot{}, errs.FeedCorrupt("feedclient.FetchSnapshot", fmt.Errorf("general.update_timestamp: %w", err))
	}

	snap := model.Snapshot{GeneratedAt: generatedAt}
	for _, p := range raw.Pilots {
		obs, ok := p.toModel(generatedAt)
		if !ok {
			c.log.Warn().Str("callsign", p.Callsign).Msg("dropping pilot record with uncoercible fields")
			continue
		}
		snap.Pilots = append(snap.Pilots, obs)
	}
	for _, ctl := range raw.Controllers {
		obs, ok := ctl.toModel(generatedAt)
		if !ok {
			c.log.Warn().Str("callsign", ctl.Callsign).Msg("dropping controller record with uncoercible fields")
			continue
		}
		snap.Controllers = append(snap.Controllers, obs)
	}
	return snap, nil
}

// FetchTransceivers retrieves the flat per-callsign transceiver feed. The
// entity type (pilot vs ATC) isn't present on the wire; isController
// resolves it, and the Coordinator backs it with the controller callsigns
// of the snapshot fetched in the same cycle.
func (c *Client) FetchTransceivers(ctx context.Context, isController func(callsign string) bool) ([]model.TransceiverObs, error) {
	body, err := c.get(ctx, c.cfg.TransceiversURL)
	if err != nil {
		return nil, err
	}

	var raw []rawTransceiverGroup
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errs.FeedCorrupt("feedclient.FetchTransceivers", fmt.Errorf("decode envelope: %w", err))
	}

	now := time.Now().UTC()
	var out []model.TransceiverObs
	for _, group := range raw {
		entityType := model.EntityPilot
		if isController != nil && isController(group.Callsign) {
			entityType = model.EntityATC
		}
		for _, t := range group.Transceivers {
			freq, ok := coerceInt64(t.Frequency)
			if !ok {
				c.log.Warn().Str("callsign", group.Callsign).Msg("dropping transceiver record with uncoercible frequency")
				continue
			}
			out = append(out, model.TransceiverObs{
				EntityType:      entityType,
				Callsign:        group.Callsign,
				TransceiverIdx:  t.ID,
				ObservationTime: now,
				FrequencyHz:     freq,
				Latitude:        t.LatDeg,
				Longitude:       t.LonDeg,
				HeightMSLMeters: t.HeightMSLMeters,
				HeightAGLMeters: t.HeightAGLMeters,
			})
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.FeedUnavailable("feedclient.get", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.FeedUnavailable("feedclient.get", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.FeedUnavailable("feedclient.get", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.FeedUnavailable("feedclient.get", &RateLimitError{
			StatusCode: resp.StatusCode,
			Delay:      parseRetryAfter(resp.Header.Get("Retry-After")),
		})
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errs.FeedUnavailable("feedclient.get", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.FeedUnavailable("feedclient.get", err)
	}
	return body, nil
}

// retryable reports whether a fetch error should drive another attempt.
// FeedCorrupt is a structural defect in the payload itself — refetching
// the same upstream snapshot cannot make it valid, so it is logged and
// the cycle is skipped immediately rather than retried, per §4.1 and §7.
func retryable(err error) bool {
	return !errs.Is(err, errs.KindFeedCorrupt)
}

// FetchSnapshotWithRetry and FetchTransceiversWithRetry wrap the plain
// fetch methods in the shared backoff helper, used by the Coordinator
// (C6) per §4.6.
func (c *Client) FetchSnapshotWithRetry(ctx context.Context, cfg retry.Config) (model.Snapshot, error) {
	cfg.Retryable = retryable
	return retry.WithBackoffResult(ctx, cfg, func() (model.Snapshot, error) {
		return c.FetchSnapshot(ctx)
	})
}

func (c *Client) FetchTransceiversWithRetry(ctx context.Context, cfg retry.Config, isController func(string) bool) ([]model.TransceiverObs, error) {
	cfg.Retryable = retryable
	return retry.WithBackoffResult(ctx, cfg, func() ([]model.TransceiverObs, error) {
		return c.FetchTransceivers(ctx, isController)
	})
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

func parseTimestamp(v string) (time.Time, error) {
	layouts := []string{
		"2006-01-02T15:04:05.000Z",
		time.RFC3339,
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
