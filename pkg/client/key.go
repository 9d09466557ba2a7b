package client

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// keyPrefix marks keys derived from a descriptor, keeping them
// distinguishable from caller-chosen override keys. Invalidating the
// prefix clears every derived entry.
const keyPrefix = "rc:"

// DeriveKey computes the cache key for a descriptor: the override when
// set, otherwise a 64-bit hash over method, URL, sorted params and
// body. The hash is deterministic across processes, so keys can be
// targeted by invalidation patterns.
func DeriveKey(d Descriptor) string {
	if d.CacheKeyOverride != "" {
		return d.CacheKeyOverride
	}

	method := strings.ToUpper(d.Method)
	if method == "" {
		method = http.MethodGet
	}

	h := xxhash.New()
	_, _ = h.WriteString(method)
	_, _ = h.WriteString("\n")
	_, _ = h.WriteString(d.URL)
	_, _ = h.WriteString("\n")

	if len(d.Params) > 0 {
		keys := make([]string, 0, len(d.Params))
		for k := range d.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = h.WriteString(k)
			_, _ = h.WriteString("=")
			_, _ = h.WriteString(fmt.Sprint(d.Params[k]))
			_, _ = h.WriteString("&")
		}
	}
	_, _ = h.WriteString("\n")

	if len(d.Body) > 0 {
		_, _ = h.Write(d.Body)
	}

	return fmt.Sprintf("%s%016x", keyPrefix, h.Sum64())
}
