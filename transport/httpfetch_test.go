package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycache/queryengine"
	"querycache/transport"
)

func TestHTTPFetcherInjectsBearerTokenAndReturnsBody(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	f := transport.New(transport.Config{
		BaseURL: server.URL,
		Tokens:  &transport.SigningTokenSource{Secret: []byte("secret"), Issuer: "test", Subject: "sub", Audience: "aud"},
	})

	resp, err := f.Do(context.Background(), queryengine.Request{Method: "GET", URL: "/posts/1"})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, 200, resp.Status)
	assert.Contains(t, string(resp.Body), "ok")
	assert.Regexp(t, `^Bearer .+`, gotAuth)
}

func TestHTTPFetcherMapsNon2xxToNotOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := transport.New(transport.Config{BaseURL: server.URL})
	resp, err := f.Do(context.Background(), queryengine.Request{Method: "GET", URL: "/missing"})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, 404, resp.Status)
}

func TestHTTPFetcherRejectsWhenRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := transport.New(transport.Config{BaseURL: server.URL, RateLimiter: alwaysDeny{}})
	_, err := f.Do(context.Background(), queryengine.Request{Method: "GET", URL: "/posts/1"})
	require.Error(t, err)
}

type alwaysDeny struct{}

func (alwaysDeny) Allow(ctx context.Context, key string) (bool, error) { return false, nil }
func (alwaysDeny) Reset(ctx context.Context, key string) error         { return nil }
