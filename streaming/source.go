// Package streaming pins the push-subscription interface entity
// streams and stream-backed queries are built against, plus an adapter
// turning it into the typedef.StreamDescriptor shape the entity store
// consumes.
package streaming

import (
	"context"

	"querycache/domain/typedef"
)

// Source is a push subscription provider for one entity's updates.
// streaming/local and streaming/eventbridge both implement it.
type Source interface {
	Subscribe(ctx context.Context, id string, onUpdate func(patch map[string]interface{})) (unsubscribe func())
}

// Descriptor adapts a Source into a typedef.StreamDescriptor, recovering
// a context.Context from the entity store's untyped ctx parameter
// (falling back to context.Background if the caller passed something
// else, which the store never actually does — kept defensive since this
// is a package boundary).
func Descriptor(src Source) *typedef.StreamDescriptor {
	return &typedef.StreamDescriptor{
		Subscribe: func(ctx interface{}, id string, onUpdate func(patch map[string]interface{})) (unsubscribe func()) {
			c, ok := ctx.(context.Context)
			if !ok {
				c = context.Background()
			}
			return src.Subscribe(c, id, onUpdate)
		},
	}
}
