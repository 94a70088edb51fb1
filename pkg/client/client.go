// Package client предоставляет типизированный HTTP-клиент для API оптимизатора.
//
// Клиент повторяет неудачные запросы с экспоненциальной задержкой: сетевые
// ошибки и ответы 429/5xx считаются временными, всё остальное возвращается
// вызывающему сразу.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"routeopt/pkg/domain"
)

// Config задаёт параметры подключения к API.
type Config struct {
	// BaseURL — адрес сервиса, например "http://localhost:8080".
	BaseURL string
	// Timeout — таймаут одного HTTP-запроса.
	Timeout time.Duration
	// MaxRetries — число повторов поверх первой попытки.
	MaxRetries int
	// APIKey передаётся в заголовке X-API-Key, если задан.
	APIKey string
	// Token передаётся как Bearer-токен, если задан. Имеет приоритет над APIKey.
	Token string
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8080",
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// Client — HTTP-клиент API оптимизатора.
type Client struct {
	cfg  *Config
	http *http.Client
}

// New создаёт клиент. При nil-конфигурации используются значения по умолчанию.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Close освобождает неиспользуемые соединения пула.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// APIError — ошибка, возвращённая сервером в теле ответа.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Field      string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound сообщает, что сервер ответил 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// SolveSummary — краткая запись истории решений.
type SolveSummary struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name,omitempty"`
	Kind                 string    `json:"kind"`
	Status               string    `json:"status"`
	TotalDistance        float64   `json:"total_distance"`
	TotalCost            float64   `json:"total_cost"`
	VehiclesUsed         int       `json:"vehicles_used"`
	DeliveriesAssigned   int       `json:"deliveries_assigned"`
	DeliveriesUnassigned int       `json:"deliveries_unassigned"`
	ComputationTimeMs    float64   `json:"computation_time_ms"`
	Tags                 []string  `json:"tags,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// Solve — полная запись истории с исходным запросом и решением.
type Solve struct {
	SolveSummary
	Request  json.RawMessage `json:"request"`
	Solution json.RawMessage `json:"solution"`
}

// SolveList — страница истории решений.
type SolveList struct {
	Solves []SolveSummary `json:"solves"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListSolvesOptions — фильтры и пагинация для ListSolves.
// Нулевые значения не передаются.
type ListSolvesOptions struct {
	Limit  int
	Offset int
	Kind   string
	Status string
	Sort   string
}

// Optimize решает задачу маршрутизации.
func (c *Client) Optimize(ctx context.Context, req *domain.OptimizeRequest) (*domain.Solution, error) {
	var sol domain.Solution
	if err := c.postJSON(ctx, "/api/v1/optimize", req, &sol); err != nil {
		return nil, err
	}
	return &sol, nil
}

// Reroute перестраивает маршруты с учётом изменившихся условий.
func (c *Client) Reroute(ctx context.Context, req *domain.RerouteRequest) (*domain.Solution, error) {
	var sol domain.Solution
	if err := c.postJSON(ctx, "/api/v1/reroute", req, &sol); err != nil {
		return nil, err
	}
	return &sol, nil
}

// ListSolves возвращает страницу истории решений.
func (c *Client) ListSolves(ctx context.Context, opts *ListSolvesOptions) (*SolveList, error) {
	path := "/api/v1/solves"
	if opts != nil {
		q := url.Values{}
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			q.Set("offset", strconv.Itoa(opts.Offset))
		}
		if opts.Kind != "" {
			q.Set("kind", opts.Kind)
		}
		if opts.Status != "" {
			q.Set("status", opts.Status)
		}
		if opts.Sort != "" {
			q.Set("sort", opts.Sort)
		}
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
	}

	var list SolveList
	if err := c.getJSON(ctx, path, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetSolve возвращает запись истории по идентификатору.
func (c *Client) GetSolve(ctx context.Context, id string) (*Solve, error) {
	var solve Solve
	if err := c.getJSON(ctx, "/api/v1/solves/"+url.PathEscape(id), &solve); err != nil {
		return nil, err
	}
	return &solve, nil
}

// DeleteSolve удаляет запись истории.
func (c *Client) DeleteSolve(ctx context.Context, id string) error {
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodDelete, "/api/v1/solves/"+url.PathEscape(id), nil)
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DownloadManifest скачивает путевой лист в заданном формате (xlsx, pdf, csv).
// Возвращает содержимое файла и Content-Type ответа.
func (c *Client) DownloadManifest(ctx context.Context, id, format string) ([]byte, string, error) {
	path := "/api/v1/solves/" + url.PathEscape(id) + "/manifest"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, path, nil)
	})
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read manifest body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Health проверяет доступность сервиса.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, "/health", nil)
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, path, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.cfg.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	case c.cfg.APIKey != "":
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}
	return req, nil
}

// do выполняет запрос и превращает статусы >= 400 в *APIError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
			Field string `json:"field"`
		}
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); decodeErr == nil {
			apiErr.Message = payload.Error
			apiErr.Code = payload.Code
			apiErr.Field = payload.Field
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, apiErr
	}
	return resp, nil
}

// doWithRetry повторяет запрос при временных сбоях. makeReq вызывается на
// каждой попытке, чтобы тело запроса читалось заново.
func (c *Client) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	attempts := c.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	backoff := 200 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := makeReq()
		if err != nil {
			return nil, err
		}

		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) || attempt == attempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
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
