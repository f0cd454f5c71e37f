package sites

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// CacheKey names one generated page in the store. It is safe to use as a
// file name and as a URL path segment.
type CacheKey string

const cacheKeyPrefix = "_F_"

// EncodeCacheKey maps a request path and query to a CacheKey.
//
// ASCII lowercase letters are kept; every other code point becomes
// "_<hex>_". A byte that is not part of valid UTF-8 becomes "_z<hex>_".
// Because "_" is always escaped the mapping is injective.
func EncodeCacheKey(fullPath string) CacheKey {
	var b strings.Builder
	b.Grow(len(cacheKeyPrefix) + len(fullPath)*2)
	b.WriteString(cacheKeyPrefix)
	for i := 0; i < len(fullPath); {
		r, size := utf8.DecodeRuneInString(fullPath[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			b.WriteString("_z")
			b.WriteString(strconv.FormatUint(uint64(fullPath[i]), 16))
			b.WriteByte('_')
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
			b.WriteString(strconv.FormatUint(uint64(r), 16))
			b.WriteByte('_')
		}
		i += size
	}
	return CacheKey(b.String())
}
