// Command demo runs a tiny posts REST API alongside a Query Client
// wired against it over loopback HTTP, driving a fetch-backed query, a
// mutation with an optimistic patch, and a push-driven stream query end
// to end against one resource.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"querycache/config"
	"querycache/domain/typedef"
	"querycache/mutationengine"
	"querycache/parser"
	"querycache/queryclient"
	"querycache/querystore/memkv"
	"querycache/queryengine"
	"querycache/streaming/local"
	"querycache/transport"
)

var postDef = typedef.Entity(map[string]*typedef.TypeDef{
	"id":    typedef.ID(),
	"title": typedef.String(),
}, typedef.EntityOptions{TypenameValue: "Post", IDField: "id"})

type postParams struct{ id string }

func (p postParams) PathParams() map[string]string { return map[string]string{"id": p.id} }
func (p postParams) SearchParams() url.Values       { return nil }

func main() {
	cfg := config.Load()
	logger, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	liveUpdates := local.New()
	api := newPostAPI(logger)
	api.onEdit = func(id string, p *post) {
		liveUpdates.Publish(id, map[string]interface{}{"id": p.ID, "title": p.Title})
	}

	server := &http.Server{Addr: cfg.ServerAddress, Handler: api.router()}
	go func() {
		logger.Info("starting demo posts API", zap.String("address", cfg.ServerAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("demo posts API failed", zap.Error(err))
		}
	}()
	defer server.Close()

	time.Sleep(100 * time.Millisecond) // let the listener come up before the client dials it

	baseURL := "http://" + cfg.ServerAddress
	if strings.HasPrefix(cfg.ServerAddress, ":") {
		baseURL = "http://localhost" + cfg.ServerAddress
	}
	fetcher := transport.New(transport.Config{BaseURL: baseURL, Logger: logger})
	client := queryclient.New(queryclient.Config{
		Logger:  logger,
		Cache:   cfg,
		KV:      memkv.New(),
		Fetcher: fetcher,
	})
	defer client.Close()

	runQuery(logger, client)
	runMutation(logger, client, fetcher)
	runStreamQuery(logger, client, liveUpdates)

	logger.Info("demo run complete")
}

func runQuery(logger *zap.Logger, client *queryclient.Client) {
	ctx := context.Background()
	getPost := &queryengine.Definition[postParams, *parser.Proxy]{
		ID:           "getPost",
		PathTemplate: "/posts/[id]",
		ResponseDef:  postDef,
	}

	result, release, err := queryclient.UseQuery(ctx, client, getPost, postParams{id: "1"})
	if err != nil {
		logger.Fatal("UseQuery failed", zap.Error(err))
	}
	defer release()

	waitUntil(result.IsSettled, 2*time.Second)
	if result.IsResolved() {
		title, _ := result.Value().Get("title")
		logger.Info("query resolved", zap.String("id", "1"), zap.Any("title", title))
		return
	}
	logger.Error("query did not resolve", zap.Error(result.Error()))
}

func runMutation(logger *zap.Logger, client *queryclient.Client, fetcher queryengine.Fetcher) {
	ctx := context.Background()
	editPost := &mutationengine.Definition[map[string]interface{}, *parser.Proxy]{
		ID:                "editPost",
		RequestDef:        postDef,
		ResponseDef:       postDef,
		OptimisticUpdates: true,
		MutateFn: func(ctx context.Context, request map[string]interface{}) (interface{}, error) {
			body, err := json.Marshal(request)
			if err != nil {
				return nil, err
			}
			resp, err := fetcher.Do(ctx, queryengine.Request{
				Method: http.MethodPut,
				URL:    "/posts/1",
				Body:   bytes.NewReader(body),
			})
			if err != nil {
				return nil, err
			}
			var raw interface{}
			if err := resp.JSON(&raw); err != nil {
				return nil, err
			}
			return raw, nil
		},
	}

	task, err := queryclient.UseMutation(client, editPost)
	if err != nil {
		logger.Fatal("UseMutation failed", zap.Error(err))
	}

	proxy, err := task.Run(ctx, map[string]interface{}{"id": "1", "title": "Updated from demo"})
	if err != nil {
		logger.Error("mutation failed", zap.Error(err))
		return
	}
	title, _ := proxy.Get("title")
	logger.Info("mutation resolved", zap.Any("title", title))
}

func runStreamQuery(logger *zap.Logger, client *queryclient.Client, liveUpdates *local.Source) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	streamDef := &queryengine.Definition[postParams, *parser.Proxy]{
		ID:          "postLive",
		ResponseDef: postDef,
		Stream: &queryengine.StreamSource{
			Subscribe: func(ctx context.Context, onUpdate func(raw interface{})) (cancel func()) {
				return liveUpdates.Subscribe(ctx, "1", func(patch map[string]interface{}) {
					onUpdate(patch)
				})
			},
		},
	}

	result, release, err := queryclient.UseQuery(ctx, client, streamDef, postParams{id: "1"})
	if err != nil {
		logger.Fatal("UseQuery (stream) failed", zap.Error(err))
	}
	defer release()

	liveUpdates.Publish("1", map[string]interface{}{"id": "1", "title": "Pushed live"})
	waitUntil(result.IsResolved, time.Second)

	if result.IsResolved() {
		title, _ := result.Value().Get("title")
		logger.Info("stream query resolved", zap.Any("title", title))
		return
	}
	logger.Error("stream query did not resolve in time")
}

func waitUntil(cond func() bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}
