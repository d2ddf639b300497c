package eventbridge

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"querycache/streaming"
)

// entityEvent is the detail payload for one entity's push update,
// published by whatever write path owns that entity server-side.
type entityEvent struct {
	EntityID string                 `json:"entityId"`
	Patch    map[string]interface{} `json:"patch"`
}

// Source implements streaming.Source by fanning out EventBridge-
// delivered entity patches to per-entity subscriber sets. Like Channel,
// the receive side is driven by Dispatch from an inbound Lambda
// handler; EventBridge has no client-side long-poll to subscribe
// through directly.
type Source struct {
	mu   sync.Mutex
	subs map[string]map[int]func(patch map[string]interface{})
	next int
	log  *zap.Logger
}

// NewSource builds an empty Source.
func NewSource(logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{subs: make(map[string]map[int]func(patch map[string]interface{})), log: logger}
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

// Dispatch decodes a raw EventBridge detail payload for an entity patch
// and fans it out to every current subscriber of that entity.
func (s *Source) Dispatch(raw []byte) error {
	var evt entityEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return err
	}
	s.mu.Lock()
	handlers := make([]func(map[string]interface{}), 0, len(s.subs[evt.EntityID]))
	for _, h := range s.subs[evt.EntityID] {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(evt.Patch)
	}
	return nil
}

var _ streaming.Source = (*Source)(nil)
