package parser

import (
	"go.uber.org/zap"

	"querycache/entitystore"
)

// Context carries the collaborators every parse operation needs: the
// Entity Store entities get registered against, and a logger for the
// warn-and-continue posture on array element failures: a bad array
// element is logged and skipped rather than aborting the whole batch.
type Context struct {
	Store  *entitystore.Store
	Logger *zap.Logger

	// OptimisticSnapshot, when true, makes WalkEntities snapshot each
	// discovered entity's prior value before merging in the new one,
	// giving the mutation engine's optimistic patch step and the normal
	// response-parsing path one shared traversal (discoverEntity) rather
	// than two.
	OptimisticSnapshot bool
}

func (c *Context) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
