package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/reqview/internal/domain"
	"github.com/xela07ax/reqview/internal/infra"
)

const (
	restPath        = "/rest/v1/"
	maxBodyBytes    = 32 << 20
	defaultThrottle = time.Second
)

// PostgRESTClient — дескриптор подключения к REST API проекта Supabase.
type PostgRESTClient struct {
	baseURL *url.URL
	key     string
	schema  string
	timeout time.Duration
	http    *http.Client
}

type Option func(*PostgRESTClient)

func WithHTTPClient(c *http.Client) Option {
	return func(p *PostgRESTClient) { p.http = c }
}

// WithTimeout — предел на одну попытку запроса.
func WithTimeout(d time.Duration) Option {
	return func(p *PostgRESTClient) { p.timeout = d }
}

// WithSchema выбирает схему Postgres через Accept-Profile (по умолчанию public).
func WithSchema(schema string) Option {
	return func(p *PostgRESTClient) { p.schema = schema }
}

// NewPostgRESTClient создает экземпляр клиента из URL проекта и ключа.
func NewPostgRESTClient(rawURL, key string, opts ...Option) (*PostgRESTClient, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(rawURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyKey
	}

	c := &PostgRESTClient{
		baseURL: u,
		key:     key,
		timeout: 15 * time.Second,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint возвращает полный URL запроса.
func (c *PostgRESTClient) Endpoint(q domain.Query) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + restPath + q.Table
	u.RawQuery = url.Values{"select": {q.CleanSelect()}}.Encode()
	return u.String()
}

// Fetch выполняет одно чтение. Ошибки API (4xx) возвращаются внутри Response,
// сетевые сбои, троттлинг и 5xx — как error, чтобы их мог повторить ReliabilityWrapper.
func (c *PostgRESTClient) Fetch(ctx context.Context, q domain.Query) (*domain.Response, error) {
	if q.Table == "" {
		return nil, &PermanentError{Cause: errors.New("postgrest: empty table name")}
	}

	// Даже если ReliabilityWrapper имеет свой таймаут, у адаптера должен быть свой предел
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint(q), nil)
	if err != nil {
		return nil, &PermanentError{Cause: fmt.Errorf("postgrest: build request: %w", err)}
	}

	traceID := infra.TraceID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client-Info", "reqview")
	req.Header.Set("X-Request-Id", traceID)
	if c.schema != "" {
		req.Header.Set("Accept-Profile", c.schema)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("postgrest: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("postgrest: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusServiceUnavailable && resp.Header.Get("Retry-After") != "":
		return nil, &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause:      &ServerError{Status: resp.StatusCode, Body: string(body)},
		}
	case resp.StatusCode >= 500:
		return nil, &ServerError{Status: resp.StatusCode, Body: string(body)}
	case resp.StatusCode >= 400:
		return &domain.Response{Status: resp.StatusCode, Error: decodeAPIError(body)}, nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &PermanentError{Cause: fmt.Errorf("postgrest: decode rows: %w", err)}
	}
	if rows == nil {
		rows = make([]json.RawMessage, 0) // JSON null -> пустой список
	}

	return &domain.Response{
		Data:   rows,
		Status: resp.StatusCode,
		Count:  parseContentRange(resp.Header.Get("Content-Range")),
	}, nil
}

func decodeAPIError(body []byte) *domain.APIError {
	var apiErr domain.APIError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		return &domain.APIError{Message: strings.TrimSpace(string(body))}
	}
	return &apiErr
}

// parseRetryAfter понимает только секунды; HTTP-дату превращаем в разницу со временем сейчас.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return defaultThrottle
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
		return 0
	}
	return defaultThrottle
}

// parseContentRange: "0-24/3573" -> 3573, "0-24/*" -> nil
func parseContentRange(v string) *int64 {
	_, total, found := strings.Cut(v, "/")
	if !found || total == "*" {
		return nil
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
