package codis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/couchcryptid/codis-weather-etl/internal/config"
	"github.com/couchcryptid/codis-weather-etl/internal/domain"
	"github.com/couchcryptid/codis-weather-etl/internal/observability"
	"github.com/sony/gobreaker"
)

// Backoff controls the bounded exponential retry of one day request.
type Backoff struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var (
	errRateLimited      = errors.New("rate limited")
	errServerError      = errors.New("server error")
	errUnexpectedStatus = errors.New("unexpected status code")
)

// Client fetches day tables from the CODiS portal. It implements
// pipeline.TableSource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	backoff    Backoff
	metrics    *observability.Metrics
	logger     *slog.Logger

	// breakers is keyed by station id.
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient creates a portal client from the runtime config.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		backoff: Backoff{
			MaxRetries:      cfg.FetchMaxRetries,
			InitialInterval: cfg.FetchRetryInterval,
			MaxInterval:     30 * time.Second,
		},
		metrics: metrics,
		logger:  logger,
	}
}

func (c *Client) breakerFor(stationID string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.breakers[stationID]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "codis/" + stationID,
			MaxRequests: 1,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		})
		c.breakers[stationID] = cb
	}
	return cb
}

// DayURL builds the query for one station and day. The display name is
// escaped twice; the portal decodes it twice.
func (c *Client) DayURL(stationID, displayName string, day domain.Date) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("station", stationID)
	q.Set("stname", url.QueryEscape(displayName))
	q.Set("datepicker", day.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchDay downloads and parses the table for one station and day. A day
// without observations returns nil rows and no error. Transport failures
// wrap domain.ErrNetwork; page shape problems wrap domain.ErrRemoteSchema.
func (c *Client) FetchDay(ctx context.Context, stationID, displayName string, day domain.Date) ([]domain.RawRow, error) {
	dayURL, err := c.DayURL(stationID, displayName, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}

	resp, err := c.doRequestWithResilience(ctx, c.breakerFor(stationID), func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, dayURL, nil)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: station %s day %s: %w", domain.ErrNetwork, stationID, day, err)
	}
	defer resp.Body.Close()

	rows, err := ParseDayTable(resp.Body)
	if err != nil {
		if errors.Is(err, domain.ErrRemoteSchema) {
			return nil, fmt.Errorf("station %s day %s: %w", stationID, day, err)
		}
		return nil, fmt.Errorf("%w: read station %s day %s: %w", domain.ErrNetwork, stationID, day, err)
	}
	return rows, nil
}

// doRequestWithResilience executes the request with retries, exponential
// backoff, and a circuit breaker. Only transport errors, 429 and 5xx are
// retried.
func (c *Client) doRequestWithResilience(ctx context.Context, breaker *gobreaker.CircuitBreaker, buildRequest func() (*http.Request, error)) (*http.Response, error) {
	var attempt int
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		result, err := breaker.Execute(func() (interface{}, error) {
			resp, execErr := c.httpClient.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode == http.StatusOK {
				return resp, nil
			}

			drain(resp.Body)
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			default:
				return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
			}
		})
		if err == nil {
			c.metrics.SourceRequests.WithLabelValues("success").Inc()
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, errors.New("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.SourceRequests.WithLabelValues("circuit_open").Inc()
			return nil, fmt.Errorf("circuit breaker open: %w", err)
		}
		if ctx.Err() != nil || errors.Is(err, errUnexpectedStatus) || attempt >= c.backoff.MaxRetries {
			c.metrics.SourceRequests.WithLabelValues("error").Inc()
			return nil, err
		}
		c.metrics.SourceRequests.WithLabelValues("retry").Inc()

		delay := c.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.backoff.MaxInterval > 0 && delay > c.backoff.MaxInterval {
			delay = c.backoff.MaxInterval
		}
		c.logger.Warn("portal request failed, retrying",
			"url", req.URL.Redacted(),
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	body.Close()
}
