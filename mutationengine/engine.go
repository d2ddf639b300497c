package mutationengine

import (
	"querycache/domain/reactive"
	"querycache/entitystore"
	"querycache/parser"
	"querycache/querystore"
)

// Config bundles an Engine's shared dependencies.
type Config struct {
	Scheduler     *reactive.Scheduler
	Store         *entitystore.Store
	ParserContext *parser.Context
	Persist       querystore.Store
}

// Engine is the shared collaborator set every mutation Task is built
// against. Unlike queryengine.Engine it holds no instance registry of
// its own — a mutation task is owned by whichever caller built it, not
// shared/keyed across callers the way a query instance is.
type Engine struct {
	sched     *reactive.Scheduler
	store     *entitystore.Store
	parserCtx *parser.Context
	persist   querystore.Store
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		sched:     cfg.Scheduler,
		store:     cfg.Store,
		parserCtx: cfg.ParserContext,
		persist:   cfg.Persist,
	}
}
