package queryengine

import (
	"hash/fnv"
	"net/url"
	"sort"
)

// Key identifies a query instance: hash(queryDefID, resolved path,
// sorted search params). Two requesters yielding the same key share one
// instance. Grounded on typedef.computeShapeKey's canonical-encoding-
// then-fnv approach, which is this module's established convention for
// deriving stable identity hashes without an ecosystem hashing library.
type Key uint64

func computeKey(defID, path string, search url.Values) Key {
	h := fnv.New64a()
	h.Write([]byte(defID))
	h.Write([]byte{0})
	h.Write([]byte(path))

	keys := make([]string, 0, len(search))
	for k := range search {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vals := append([]string(nil), search[k]...)
		sort.Strings(vals)
		h.Write([]byte{0})
		h.Write([]byte(k))
		for _, v := range vals {
			h.Write([]byte{0})
			h.Write([]byte(v))
		}
	}
	return Key(h.Sum64())
}
