package queryengine

import "context"

// fetchNextPage evaluates doNextPage against the last page and appends
// the result if the definition's GetNextPageParams reported another
// page exists. Re-evaluating this after the result's derived search
// params change is idempotent: doNextPage is only ever called with the
// current last page, never replayed against stale state.
func (i *instance) fetchNextPage(ctx context.Context) {
	if !i.isInfinite || i.doNextPage == nil {
		return
	}

	i.mu.Lock()
	if i.isFetchingMore || !i.hasNextPage || len(i.pages) == 0 {
		i.mu.Unlock()
		return
	}
	last := i.pages[len(i.pages)-1]
	i.isFetchingMore = true
	i.mu.Unlock()
	i.notifier.Notify()

	raw, refs, hasNext, err := i.doNextPage(ctx, last)

	i.mu.Lock()
	i.isFetchingMore = false
	if err != nil {
		i.err = err
	} else {
		i.pages = append(i.pages, raw)
		i.rootRefs = append(i.rootRefs, refs...)
		i.value = i.pages
		i.hasNextPage = hasNext
		i.reconcileOrphansLocked(refs)
		i.persistLocked()
	}
	i.mu.Unlock()
	i.notifier.Notify()
}

func (i *instance) hasNextPageValue() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.hasNextPage
}
