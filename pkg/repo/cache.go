package repo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// CacheKey hashes an ordered list of arbitrary primitive values into a
// stable hex digest. Order is significant (CacheKey("a","b") and
// CacheKey("b","a") differ), which is correct for positional call sites
// but wrong for a map-shaped filter set, where map iteration order is
// undefined; query-engine callers must go through StableCacheKey instead.
func CacheKey(values ...any) string {
	h := sha256.New()
	for _, v := range values {
		fmt.Fprintf(h, "%T:%v|", v, normalizeForHash(v))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeForHash(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

// StableCacheKey hashes a named parameter set after sorting by key, so that
// two logically identical filter sets built in different construction
// order (e.g. JSON-unmarshaled maps) always hash the same. Used for the
// logs-query cache key and the stats/aggregation cache keys.
func StableCacheKey(prefix string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "%s|", prefix)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v|", k, normalizeForHash(params[k]))
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}
