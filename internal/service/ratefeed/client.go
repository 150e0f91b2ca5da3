package ratefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vkarpenko/gpushare/internal/logger"
)

const (
	CodeRetryAfter = "retry-after"
	CodeNoContent  = "no-content"
	CodeUnknown    = "unknown"
)

type Error struct {
	Code string

	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %s, retry_after: %d, error: %v", e.Code, e.RetryAfter, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code string, retryAfter int, err error) *Error {
	return &Error{
		Code:       code,
		RetryAfter: time.Duration(retryAfter) * time.Second,
		Err:        err,
	}
}

// Rate is the market reward rate the feed publishes: profit per GH of hash
// rate per simulated hour
type Rate struct {
	Currency  string          `json:"currency"`
	PerGHHour decimal.Decimal `json:"per_gh_hour"`
	AsOf      time.Time       `json:"as_of"`
}

type Client struct {
	FeedAddr string

	client *http.Client
	logger logger.Logger
}

func NewClient(addr string, l logger.Logger) *Client {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Client{
		FeedAddr: addr,
		client:   &http.Client{},
		logger:   l,
	}
}

func (c *Client) GetRate(ctx context.Context) (Rate, error) {
	var rate Rate

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FeedAddr+"/api/rate", nil)
	if err != nil {
		return rate, NewError(CodeUnknown, 0, fmt.Errorf("failed to create request: %w", err))
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return rate, NewError(CodeUnknown, 0, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close() // nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		return c.processSuccess(resp)
	case http.StatusTooManyRequests:
		return c.processTooManyRequests(resp)
	case http.StatusNoContent:
		return rate, NewError(CodeNoContent, 0, fmt.Errorf("feed has no current rate"))
	default:
		c.logger.Warn("Failed to get rate", "status_code", resp.StatusCode)
		return rate, NewError(CodeUnknown, 0, fmt.Errorf("unknown status code %d", resp.StatusCode))
	}
}

func (c *Client) processSuccess(resp *http.Response) (Rate, error) {
	var r Rate
	err := json.NewDecoder(resp.Body).Decode(&r)
	if err != nil {
		c.logger.Warn("Failed to decode response", "error", err)
		return r, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("Rate feed response", "currency", r.Currency, "per_gh_hour", r.PerGHHour, "as_of", r.AsOf)
	return r, nil
}

func (c *Client) processTooManyRequests(resp *http.Response) (Rate, error) {
	header := resp.Header.Get("Retry-After")
	retryAfter, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil {
		retryAfter = 60 // default to 60 seconds if parsing fails
	}

	c.logger.Warn("Rate feed throttled", "retry_after", retryAfter)
	return Rate{}, NewError(CodeRetryAfter, retryAfter, fmt.Errorf("retry after %d seconds", retryAfter))
}
