package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	PathCars       = "/batch-cars"
	PathCarsStatus = "/update-cars-status"
)

type CarGatewayConfig struct {
	BaseURL      string
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// CarGateway talks to the car service. Every failure comes back as a
// *domain.ServiceError of kind domain.ErrInternalRequest.
type CarGateway struct {
	client  *retryablehttp.Client
	baseURL string
}

func NewCarGateway(cfg CarGatewayConfig, logger *zap.Logger) *CarGateway {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.Retries
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	client.CheckRetry = retryTransportErrors
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = retryLogger{logger.Sugar().With(zap.String("component", "car_gateway"))}

	return &CarGateway{client: client, baseURL: cfg.BaseURL}
}

type noRetryKey struct{}

// retryTransportErrors retries only when no response was received and the
// request was not marked single-shot. Error statuses are final.
func retryTransportErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if ctx.Value(noRetryKey{}) != nil {
		return false, nil
	}
	return err != nil, nil
}

func (g *CarGateway) GetCarsByIDs(ctx context.Context, carIDs []int64) ([]domain.Car, error) {
	query := url.Values{}
	for _, id := range carIDs {
		query.Add("car_ids", strconv.FormatInt(id, 10))
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+PathCars+"?"+query.Encode(), nil)
	if err != nil {
		return nil, requestError(err)
	}
	return g.do(req)
}

func (g *CarGateway) UpdateCarsStatus(ctx context.Context, carIDs []int64, status domain.CarStatus) ([]domain.Car, error) {
	return g.postStatus(ctx, domain.StatusUpdateRequest{CarIDs: carIDs, Status: status})
}

// ReserveCars moves cars from free to ordered. The car service rejects the
// whole batch with 409 if any car is not free at the moment of the update.
// It is never retried: a replay of an applied reservation would fail with 409.
func (g *CarGateway) ReserveCars(ctx context.Context, carIDs []int64) ([]domain.Car, error) {
	ctx = context.WithValue(ctx, noRetryKey{}, true)
	return g.postStatus(ctx, domain.StatusUpdateRequest{
		CarIDs:         carIDs,
		Status:         domain.CarStatusOrdered,
		ExpectedStatus: domain.CarStatusFree,
	})
}

func (g *CarGateway) postStatus(ctx context.Context, body domain.StatusUpdateRequest) ([]domain.Car, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, requestError(err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+PathCarsStatus, bytes.NewReader(data))
	if err != nil {
		return nil, requestError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req)
}

func (g *CarGateway) do(req *retryablehttp.Request) ([]domain.Car, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, requestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var cars []domain.Car
	if err := json.NewDecoder(resp.Body).Decode(&cars); err != nil {
		return nil, requestError(fmt.Errorf("decode response: %w", err))
	}
	return cars, nil
}

func requestError(err error) *domain.ServiceError {
	se := domain.NewError(domain.ErrInternalRequest, http.StatusBadGateway,
		"Error internal service request; error: %v", err)
	se.Err = err
	return se
}

// statusError keeps the upstream status code and the upstream error message
// when the body carries one.
func statusError(resp *http.Response) *domain.ServiceError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body struct {
		Error string `json:"error"`
	}
	message := string(bytes.TrimSpace(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		message = body.Error
	}
	return domain.NewError(domain.ErrInternalRequest, resp.StatusCode,
		"Car service responded %d: %s", resp.StatusCode, message)
}

// retryLogger adapts zap to retryablehttp.LeveledLogger.
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) { l.s.Errorw(msg, keysAndValues...) }
func (l retryLogger) Info(msg string, keysAndValues ...interface{})  { l.s.Debugw(msg, keysAndValues...) }
func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) { l.s.Debugw(msg, keysAndValues...) }
func (l retryLogger) Warn(msg string, keysAndValues ...interface{})  { l.s.Warnw(msg, keysAndValues...) }
