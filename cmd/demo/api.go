package main

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// post is the backing record this demo's REST API serves, standing in
// for the real backend a production Fetcher would call.
type post struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// postAPI is an in-memory posts resource, trimmed to the one field the
// demo's query/mutation definitions exercise.
type postAPI struct {
	mu     sync.Mutex
	posts  map[string]*post
	logger *zap.Logger
	onEdit func(id string, p *post)
}

func newPostAPI(logger *zap.Logger) *postAPI {
	return &postAPI{
		posts: map[string]*post{
			"1": {ID: "1", Title: "Hello, query cache"},
			"2": {ID: "2", Title: "Normalized entities"},
		},
		logger: logger,
	}
}

func (a *postAPI) router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT"},
	}))

	r.Get("/posts/{id}", a.getPost)
	r.Put("/posts/{id}", a.editPost)
	return r
}

func (a *postAPI) getPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a.mu.Lock()
	p, ok := a.posts[id]
	a.mu.Unlock()

	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, p)
}

func (a *postAPI) editPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body post
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	body.ID = id

	a.mu.Lock()
	a.posts[id] = &body
	a.mu.Unlock()

	if a.onEdit != nil {
		a.onEdit(id, &body)
	}
	writeJSON(w, &body)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
