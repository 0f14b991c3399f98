// Package speedlimit resolves posted speed limits from a TomTom-style traffic API.
package speedlimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"backend-steersafe/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrInvalidCoordinates = errors.New("speedlimit: invalid coordinates")
	ErrNoSpeedLimit       = errors.New("speedlimit: response has no speed limit")
)

type Provider interface {
	SpeedLimit(ctx context.Context, lat, lng float64) (float64, error)
}

type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
	}
}

type speedLimitResponse struct {
	SpeedLimit *struct {
		SpeedLimit *float64 `json:"speedLimit"`
	} `json:"speedLimit"`
}

// SpeedLimit returns the posted limit in km/h at the given position.
func (c *Client) SpeedLimit(ctx context.Context, lat, lng float64) (float64, error) {
	if !geo.ValidCoordinates(lat, lng) {
		return 0, ErrInvalidCoordinates
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, context.DeadlineExceeded
		}
		if timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Get(c.endpoint(lat, lng))
	if timeout > 0 {
		agent.Timeout(timeout)
	}
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return 0, fmt.Errorf("speedlimit: request: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return 0, fmt.Errorf("speedlimit: unexpected status %d", code)
	}

	var resp speedLimitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("speedlimit: decode: %w", err)
	}
	if resp.SpeedLimit == nil || resp.SpeedLimit.SpeedLimit == nil {
		return 0, ErrNoSpeedLimit
	}
	return *resp.SpeedLimit.SpeedLimit, nil
}

func (c *Client) endpoint(lat, lng float64) string {
	return fmt.Sprintf("%s/traffic/services/5/traffic/speedLimit/%s/%s.json?key=%s",
		c.baseURL,
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lng, 'f', -1, 64),
		url.QueryEscape(c.apiKey),
	)
}
