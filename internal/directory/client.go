package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/egov/grievance-service/internal/config"
	"github.com/egov/grievance-service/internal/observability"
)

const breakerName = "identity"

// Client is the HTTP identity directory guarded by a circuit breaker.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient builds a directory client. httpClient may be nil.
func NewClient(cfg config.IdentityConfig, httpClient *http.Client, logger *zap.Logger, metrics *observability.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.BreakerHalfOpenRequests,
		Interval:    time.Duration(cfg.BreakerIntervalSeconds) * time.Second,
		Timeout:     time.Duration(cfg.BreakerOpenSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.BreakerConsecutiveFails > 0 && counts.ConsecutiveFailures >= cfg.BreakerConsecutiveFails {
				return true
			}
			if counts.Requests < cfg.BreakerMinRequests || counts.Requests == 0 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.SetCircuitState(name, stateValue(to))
		},
	}
	metrics.SetCircuitState(breakerName, stateValue(gobreaker.StateClosed))

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		timeout: cfg.Timeout(),
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// State exposes the current breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// GetUser fetches a user by id.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	result, err := c.execute(ctx, "/users/"+url.PathEscape(id), func(body []byte) (any, error) {
		var user User
		if err := json.Unmarshal(body, &user); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		if user.ID == "" {
			user.ID = id
		}
		return &user, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*User), nil
}

// SupervisorForDepartment returns the supervisor user id of a department.
// The directory answers with either a bare id or a JSON string.
func (c *Client) SupervisorForDepartment(ctx context.Context, departmentID string) (string, error) {
	result, err := c.execute(ctx, "/users/supervisor/department/"+url.PathEscape(departmentID), func(body []byte) (any, error) {
		raw := strings.TrimSpace(string(body))
		var quoted string
		if err := json.Unmarshal([]byte(raw), &quoted); err == nil {
			raw = strings.TrimSpace(quoted)
		}
		if raw == "" {
			return nil, ErrNotFound
		}
		return raw, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// execute runs one call through the breaker. A caller that went away is reported
// as context.Canceled and does not count against the directory.
func (c *Client) execute(ctx context.Context, path string, decode func([]byte) (any, error)) (any, error) {
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return nil, err
	}
	result, err := c.breaker.Execute(func() (any, error) {
		body, err := c.get(ctx, path)
		if err != nil {
			return nil, err
		}
		return decode(body)
	})
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, context.Canceled):
		return nil, context.Canceled
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: circuit %s", ErrUnavailable, c.breaker.State())
	default:
		c.logger.Warn("identity directory call failed", zap.String("path", path), zap.Error(err))
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
