// Package transport is the net/http-backed implementation of
// queryengine.Fetcher, with optional JWT bearer injection, client-side
// rate limiting via pkg/auth, and X-Ray tracing via
// pkg/observability.Tracer. The bearer injection mirrors an inbound
// JWT-validating middleware inverted for outgoing requests.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"querycache/errors"
	"querycache/pkg/auth"
	"querycache/pkg/observability"
	"querycache/queryengine"
)

// TokenSource mints the bearer token attached to every outgoing
// request. Implementations may cache and refresh; SigningTokenSource
// below signs a fresh HS256 token per call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SigningTokenSource signs a short-lived HS256 bearer token per
// request, standing in for a client holding its own service-account
// credentials.
type SigningTokenSource struct {
	Secret   []byte
	Issuer   string
	Subject  string
	Audience string
	TTL      time.Duration
}

// Token signs and returns a fresh bearer token.
func (s *SigningTokenSource) Token(ctx context.Context) (string, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	claims := jwt.RegisteredClaims{
		Issuer:    s.Issuer,
		Subject:   s.Subject,
		Audience:  jwt.ClaimStrings{s.Audience},
		ExpiresAt: jwt.NewNumericDate(timeNow().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(timeNow()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.Secret)
}

// timeNow is overridable in tests; production always uses time.Now.
var timeNow = time.Now

// Config configures an HTTPFetcher.
type Config struct {
	Client      *http.Client
	BaseURL     string
	Tokens      TokenSource // nil disables bearer injection
	RateLimiter auth.RateLimiter // nil disables client-side throttling
	RateLimitKey string
	Tracer      *observability.Tracer // nil disables X-Ray spans
	Logger      *zap.Logger
}

// HTTPFetcher is the production queryengine.Fetcher: it prefixes
// BaseURL, optionally injects a bearer token, optionally throttles
// through a RateLimiter, and maps transport failures to
// errors.AppError. A non-2xx response is not an error: it is returned
// with OK false and its status and body intact.
type HTTPFetcher struct {
	client  *http.Client
	baseURL string
	tokens  TokenSource
	limiter auth.RateLimiter
	limitKey string
	tracer  *observability.Tracer
	logger  *zap.Logger
}

// New builds an HTTPFetcher from cfg.
func New(cfg Config) *HTTPFetcher {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limitKey := cfg.RateLimitKey
	if limitKey == "" {
		limitKey = "default"
	}
	return &HTTPFetcher{
		client:   client,
		baseURL:  cfg.BaseURL,
		tokens:   cfg.Tokens,
		limiter:  cfg.RateLimiter,
		limitKey: limitKey,
		tracer:   cfg.Tracer,
		logger:   logger,
	}
}

// Do implements queryengine.Fetcher, wrapping the call in an X-Ray
// subsegment when a Tracer is configured.
func (f *HTTPFetcher) Do(ctx context.Context, req queryengine.Request) (*queryengine.Response, error) {
	if f.tracer == nil {
		return f.do(ctx, req)
	}
	ctx, seg := f.tracer.StartSubsegment(ctx, "fetch:"+req.URL)
	resp, err := f.do(ctx, req)
	seg.Close(err)
	return resp, err
}

func (f *HTTPFetcher) do(ctx context.Context, req queryengine.Request) (*queryengine.Response, error) {
	if f.limiter != nil {
		allowed, err := f.limiter.Allow(ctx, f.limitKey)
		if err != nil {
			return nil, errors.NewTransportError(0, "rate limiter unavailable").WithCause(err)
		}
		if !allowed {
			return nil, errors.NewTransportError(http.StatusTooManyRequests, "client-side rate limit exceeded")
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, f.baseURL+req.URL, req.Body)
	if err != nil {
		return nil, errors.NewTransportError(0, "failed to build request").WithCause(err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if f.tokens != nil {
		token, err := f.tokens.Token(ctx)
		if err != nil {
			return nil, errors.NewTransportError(0, "failed to mint bearer token").WithCause(err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, errors.NewTransportError(0, fmt.Sprintf("request to %s failed", req.URL)).WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError(resp.StatusCode, "failed to read response body").WithCause(err)
	}

	return &queryengine.Response{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		Body:   body,
	}, nil
}
