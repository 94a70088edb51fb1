package matrix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"routeopt/pkg/apperror"
	"routeopt/pkg/config"
	"routeopt/pkg/domain"
)

// Provider возвращает пару матриц (расстояния в км, время в минутах)
// для набора локаций в порядке их следования.
type Provider interface {
	FetchMatrices(ctx context.Context, locations []domain.Location) (dist, dur [][]float64, err error)
}

// GoogleProvider клиент Google Distance Matrix API. Большие наборы локаций
// запрашиваются батчами origins x destinations; ответы провайдера приходят
// в метрах и секундах и конвертируются в км и минуты.
type GoogleProvider struct {
	apiKey     string
	baseURL    string
	batchSize  int
	maxRetries int
	backoff    int
	retryDelay time.Duration
	httpClient *http.Client
}

// NewGoogleProvider создаёт клиент из конфигурации maps
func NewGoogleProvider(cfg config.MapsConfig) *GoogleProvider {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 10
	}
	backoff := cfg.BackoffFactor
	if backoff <= 0 {
		backoff = 2
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GoogleProvider{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.APIURL,
		batchSize:  batch,
		maxRetries: cfg.MaxRetries,
		backoff:    backoff,
		retryDelay: cfg.RetryDelay(),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type googleElement struct {
	Status   string `json:"status"`
	Distance struct {
		Value float64 `json:"value"` // метры
	} `json:"distance"`
	Duration struct {
		Value float64 `json:"value"` // секунды
	} `json:"duration"`
}

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Rows         []struct {
		Elements []googleElement `json:"elements"`
	} `json:"rows"`
}

// FetchMatrices реализует Provider
func (p *GoogleProvider) FetchMatrices(ctx context.Context, locations []domain.Location) ([][]float64, [][]float64, error) {
	n := len(locations)
	dist := make([][]float64, n)
	dur := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		dur[i] = make([]float64, n)
	}

	for oi := 0; oi < n; oi += p.batchSize {
		oEnd := min(oi+p.batchSize, n)
		for di := 0; di < n; di += p.batchSize {
			dEnd := min(di+p.batchSize, n)

			resp, err := p.fetchBatch(ctx, locations[oi:oEnd], locations[di:dEnd])
			if err != nil {
				return nil, nil, err
			}

			for r, row := range resp.Rows {
				for c, el := range row.Elements {
					i, j := oi+r, di+c
					if i >= n || j >= n {
						continue
					}
					if el.Status != "OK" {
						// Недостижимая пара; санитизация заменит на сентинел
						dist[i][j] = math.NaN()
						dur[i][j] = math.NaN()
						continue
					}
					dist[i][j] = el.Distance.Value / 1000.0
					dur[i][j] = el.Duration.Value / 60.0
				}
			}
		}
	}

	return dist, dur, nil
}

// fetchBatch запрашивает один блок origins x destinations с повторами
func (p *GoogleProvider) fetchBatch(ctx context.Context, origins, destinations []domain.Location) (*googleResponse, error) {
	query := url.Values{}
	query.Set("origins", joinCoordinates(origins))
	query.Set("destinations", joinCoordinates(destinations))
	query.Set("key", p.apiKey)
	query.Set("units", "metric")
	endpoint := p.baseURL + "?" + query.Encode()

	body, err := p.doWithRetry(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeProviderResponse, "failed to decode provider response")
	}
	if resp.Status != "OK" {
		return nil, apperror.New(apperror.CodeProviderResponse,
			fmt.Sprintf("provider returned status %s", resp.Status)).
			WithDetails("error_message", resp.ErrorMessage)
	}
	if len(resp.Rows) != len(origins) {
		return nil, apperror.New(apperror.CodeProviderResponse,
			fmt.Sprintf("provider returned %d rows for %d origins", len(resp.Rows), len(origins)))
	}

	return &resp, nil
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("provider http %d: %s", e.Code, e.Body)
}

// doWithRetry повторяет временные сбои (сетевые ошибки, 429, 5xx) с
// экспоненциальным backoff, уважая отмену контекста.
func (p *GoogleProvider) doWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	attempts := p.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	delay := p.retryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := p.doOnce(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay *= time.Duration(p.backoff)
	}

	return nil, apperror.Wrap(lastErr, apperror.CodeProviderUnavailable,
		"distance matrix provider retries exhausted")
}

func (p *GoogleProvider) doOnce(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}

func isRetryable(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func joinCoordinates(locations []domain.Location) string {
	parts := make([]string, len(locations))
	for i, loc := range locations {
		parts[i] = fmt.Sprintf("%.6f,%.6f", loc.Latitude, loc.Longitude)
	}
	return strings.Join(parts, "|")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
