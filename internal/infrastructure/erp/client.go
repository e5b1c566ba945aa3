package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/wms-platform/stockcount-service/internal/domain"
	"github.com/wms-platform/stockcount-service/pkg/logging"
	"github.com/wms-platform/stockcount-service/pkg/resilience"
)

const adjustmentsPath = "/api/v1/stock-adjustments"

// maxErrorBody bounds how much of a failed response is kept in error messages
const maxErrorBody = 512

// errServerFailure marks responses that count against the circuit breaker
var errServerFailure = errors.New("erp server failure")

// Config holds the ERP client settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client pushes stock adjustments to the ERP over HTTP.
// Implements domain.ERPClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     *logging.Logger
}

// NewClient creates an ERP client guarded by a circuit breaker. observer may be nil.
func NewClient(config Config, logger *logging.Logger, observer resilience.StateObserver) *Client {
	breakerConfig := resilience.DefaultCircuitBreakerConfig("erp")
	// rejections are answers, not outages
	breakerConfig.IsSuccessful = func(err error) bool {
		return err == nil || !errors.Is(err, errServerFailure) && !isTimeout(err) && !isNetwork(err)
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		breaker: resilience.NewCircuitBreaker(breakerConfig, logger.Logger, observer),
		logger:  logger.WithComponent("erp-client"),
	}
}

// PushAdjustments sends one batch. A structured rejection is returned as a
// result with Success false; transport failures become ERP_* rule errors.
func (c *Client) PushAdjustments(ctx context.Context, lines []domain.ERPLine) (domain.ERPResult, error) {
	start := time.Now()
	result, err := resilience.Execute(ctx, c.breaker, func(ctx context.Context) (domain.ERPResult, error) {
		return c.post(ctx, lines)
	})
	if err != nil {
		mapped := mapError(err)
		c.logger.WithError(err).Warn("ERP push failed",
			"lines", len(lines),
			"duration", time.Since(start),
		)
		return domain.ERPResult{}, mapped
	}

	c.logger.Debug("ERP push answered",
		"lines", len(lines),
		"success", result.Success,
		"duration", time.Since(start),
	)
	return result, nil
}

func (c *Client) post(ctx context.Context, lines []domain.ERPLine) (domain.ERPResult, error) {
	// the ERP takes the bare line array as the request body
	if lines == nil {
		lines = []domain.ERPLine{}
	}
	body, err := json.Marshal(lines)
	if err != nil {
		return domain.ERPResult{}, fmt.Errorf("failed to encode adjustments: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+adjustmentsPath, bytes.NewReader(body))
	if err != nil {
		return domain.ERPResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if correlationID, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ERPResult{}, fmt.Errorf("failed to call ERP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.ERPResult{}, fmt.Errorf("%w: status %d: %s", errServerFailure, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result domain.ERPResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return domain.ERPResult{Success: false, Message: fmt.Sprintf("ERP returned status %d", resp.StatusCode)}, nil
		}
		return domain.ERPResult{}, fmt.Errorf("failed to decode ERP response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		result.Success = false
	}
	return result, nil
}

func mapError(err error) error {
	switch {
	case isTimeout(err):
		return domain.NewERPError(domain.CodeERPTimeout, "ERP did not answer in time: %v", err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return domain.NewERPError(domain.CodeERPUnavailable, "ERP calls suspended: %v", err)
	case errors.Is(err, errServerFailure), isNetwork(err):
		return domain.NewERPError(domain.CodeERPUnavailable, "ERP unavailable: %v", err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return domain.NewERPError(domain.CodeERPRejected, "ERP call failed: %v", err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetwork(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

var _ domain.ERPClient = (*Client)(nil)
