package eliza

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
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"tg-digester/internal/domain"
	"tg-digester/internal/infra/metrics"
)

const (
	defaultTimeout    = 180 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 5 * time.Second
	retryMultiplier   = 1.5
	errorBodyLimit    = 2048
)

// Message представляет сообщение в диалоге.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RoleUser сообщение пользователя.
const RoleUser = "user"

// Config задаёт параметры клиента.
type Config struct {
	BaseURL    string
	Token      string
	AuthScheme string
	Verify     Verify
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client отправляет chat-промпты в сервис инференса Eliza.
type Client struct {
	buffered   *http.Client
	streaming  *http.Client
	baseURL    string
	token      string
	authScheme string
	backends   map[string]Backend
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewClient создаёт клиента. Ошибка TLS-конфигурации возвращается сразу.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	tlsCfg, err := cfg.Verify.TLSConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "OAuth"
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg
	transport.ResponseHeaderTimeout = cfg.Timeout
	return &Client{
		buffered:   &http.Client{Transport: transport, Timeout: cfg.Timeout},
		streaming:  &http.Client{Transport: transport},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		authScheme: cfg.AuthScheme,
		backends:   defaultBackends,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		log:        logger,
	}, nil
}

// Response хранит буферизованный ответ сервиса.
type Response struct {
	Response struct {
		Responses []struct {
			Response string `json:"Response"`
		} `json:"Responses"`
	} `json:"response"`
	Raw json.RawMessage `json:"-"`
}

// Text возвращает response.Responses[0].Response.
func (r Response) Text() (string, error) {
	if len(r.Response.Responses) == 0 {
		return "", &domain.MalformedResponseError{Raw: string(r.Raw), Err: errors.New("пустой список Responses")}
	}
	return r.Response.Responses[0].Response, nil
}

// Complete отправляет промпт и возвращает текст первого ответа модели.
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	resp, err := c.Chat(ctx, model, messages, nil)
	if err != nil {
		return "", err
	}
	return resp.Text()
}

// Chat отправляет промпт и возвращает полностью декодированное тело ответа.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, extra map[string]any) (Response, error) {
	req, err := c.prepare(model, messages, extra)
	if err != nil {
		return Response{}, err
	}
	var out Response
	err = c.retry(ctx, model, func(attempt int) error {
		httpResp, err := c.send(ctx, c.buffered, req)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()
		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return c.classify(ctx, err)
		}
		var decoded Response
		if err := json.Unmarshal(body, &decoded); err != nil {
			return backoff.Permanent(&domain.MalformedResponseError{Raw: string(body), Err: err})
		}
		decoded.Raw = body
		out = decoded
		return nil
	})
	return out, err
}

// Stream отправляет промпт в потоковом режиме. Повторяется только установка соединения.
func (c *Client) Stream(ctx context.Context, model string, messages []Message, extra map[string]any) (*Stream, error) {
	req, err := c.prepare(model, messages, extra)
	if err != nil {
		return nil, err
	}
	var stream *Stream
	err = c.retry(ctx, model, func(attempt int) error {
		httpResp, err := c.send(ctx, c.streaming, req)
		if err != nil {
			return err
		}
		stream = newStream(httpResp.Body)
		return nil
	})
	return stream, err
}

type preparedRequest struct {
	endpoint string
	body     []byte
}

func (c *Client) prepare(model string, messages []Message, extra map[string]any) (preparedRequest, error) {
	backend, ok := c.backends[model]
	if !ok {
		return preparedRequest{}, fmt.Errorf("%w: модель должна быть одной из %v, получили %q", domain.ErrConfiguration, Models(), model)
	}
	if c.token == "" {
		return preparedRequest{}, fmt.Errorf("%w: токен Eliza не задан", domain.ErrAuthentication)
	}
	payload := map[string]any{"messages": messages}
	if backend.IncludeModel {
		payload["model"] = backend.ModelValue
	}
	for k, v := range extra {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return preparedRequest{}, fmt.Errorf("eliza: marshal request: %w", err)
	}
	return preparedRequest{endpoint: c.baseURL + backend.Path, body: body}, nil
}

func (c *Client) send(ctx context.Context, client *http.Client, req preparedRequest) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.endpoint, bytes.NewReader(req.body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("eliza: build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.authScheme+" "+c.token)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		return nil, backoff.Permanent(&domain.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))})
	}
	return resp, nil
}

// classify отделяет таймауты и ошибки соединения от остальных ошибок.
func (c *Client) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}
	if isTransient(err) {
		return &domain.TransientError{Err: err}
	}
	return backoff.Permanent(err)
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func (c *Client) retry(ctx context.Context, model string, op func(attempt int) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.Multiplier = retryMultiplier
	policy.RandomizationFactor = 0
	policy.MaxInterval = 24 * time.Hour
	policy.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		start := time.Now()
		err := op(attempt)
		metrics.ObserveNetworkRequest("eliza", "chat", model, start, err)
		event := c.log.Info()
		outcome := "ok"
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrTransient):
			outcome = "transient"
			event = c.log.Warn().Err(err)
		default:
			outcome = "error"
			event = c.log.Error().Err(err)
		}
		metrics.ObserveLLMAttempt(model, outcome)
		event.Str("model", model).Int("attempt", attempt).Int("max_attempts", c.maxRetries).
			Str("outcome", outcome).Dur("elapsed", time.Since(start)).Msg("eliza: попытка запроса")
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries-1)), ctx)
	return backoff.RetryNotify(operation, b, func(err error, wait time.Duration) {
		c.log.Warn().Str("model", model).Int("attempt", attempt).Dur("wait", wait).Msg("eliza: повтор после временной ошибки")
	})
}
