package queryengine

import (
	"net/url"
	"sort"
	"strings"
)

// resolvePath substitutes bracketed path parameters in template with
// values from params. "[name]" consumes a single segment; "[...name]"
// consumes the remainder of params[name] split on "/" as a list of
// segments. Entries of params not referenced by the template are
// appended to extra, sorted by key for determinism (the template's own
// declared order isn't observable from a Go map, so lexicographic order
// stands in for "declared-schema order").
func resolvePath(template string, params map[string]string) (path string, extra url.Values) {
	used := make(map[string]bool, len(params))
	segments := strings.Split(template, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, "[") || !strings.HasSuffix(seg, "]") {
			continue
		}
		name := seg[1 : len(seg)-1]
		if strings.HasPrefix(name, "...") {
			name = strings.TrimPrefix(name, "...")
			used[name] = true
			segments[i] = params[name]
			continue
		}
		used[name] = true
		segments[i] = params[name]
	}

	extra = url.Values{}
	keys := make([]string, 0, len(params))
	for k := range params {
		if !used[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		extra.Set(k, params[k])
	}

	return strings.Join(segments, "/"), extra
}

// buildURL joins a resolved path with search params (request-supplied
// plus any path-template leftovers), sorted by key, matching the query
// key's own canonicalization.
func buildURL(path string, search url.Values, extra url.Values) string {
	merged := url.Values{}
	for k, vs := range search {
		for _, v := range vs {
			merged.Add(k, v)
		}
	}
	for k, vs := range extra {
		for _, v := range vs {
			merged.Add(k, v)
		}
	}
	if len(merged) == 0 {
		return path
	}
	return path + "?" + merged.Encode()
}
