// Package local is the in-process streaming.Source: a plain fan-out
// broadcaster with no transport, used by cmd/demo and tests in place
// of a real push backend.
package local

import (
	"context"
	"sync"

	"querycache/streaming"
)

// Source fans out locally published patches to current subscribers of
// an entity id. There is no buffering: a patch published with no
// subscribers is dropped, matching a live push feed rather than a
// durable log.
type Source struct {
	mu   sync.Mutex
	subs map[string]map[int]func(patch map[string]interface{})
	next int
}

// New builds an empty Source.
func New() *Source {
	return &Source{subs: make(map[string]map[int]func(patch map[string]interface{}))}
}

// Subscribe implements streaming.Source.
func (s *Source) Subscribe(ctx context.Context, id string, onUpdate func(patch map[string]interface{})) (unsubscribe func()) {
	s.mu.Lock()
	if s.subs[id] == nil {
		s.subs[id] = make(map[int]func(patch map[string]interface{}))
	}
	subID := s.next
	s.next++
	s.subs[id][subID] = onUpdate
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[id], subID)
		if len(s.subs[id]) == 0 {
			delete(s.subs, id)
		}
	}
}

// Publish delivers patch to every current subscriber of id.
func (s *Source) Publish(id string, patch map[string]interface{}) {
	s.mu.Lock()
	handlers := make([]func(map[string]interface{}), 0, len(s.subs[id]))
	for _, h := range s.subs[id] {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(patch)
	}
}

var _ streaming.Source = (*Source)(nil)
