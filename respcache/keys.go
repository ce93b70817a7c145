package respcache

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// keyDigestLen is the number of hex characters kept from the digest.
// 64 bits of a one-way hash: plenty against accidental collision, short
// enough to keep backend keys readable.
const keyDigestLen = 16

// DeriveKey builds the deterministic cache key for (operation, args,
// principal). Arguments are canonicalized first (object keys sorted,
// null entries dropped) so two serializations of the same logical
// arguments map to the same key regardless of field order. The
// operation name stays in clear text as a prefix for debuggability; the
// rest is hashed to bound key length. A non-empty principal is folded
// into the digest so principal-scoped responses never collide across
// callers.
func DeriveKey(operation string, args map[string]any, principal string) string {
	var material bytes.Buffer
	material.WriteString(operation)
	material.WriteByte(':')
	writeCanonical(&material, args)
	if principal != "" {
		material.WriteByte(':')
		material.WriteString(principal)
	}

	sum := md5.Sum(material.Bytes())
	digest := hex.EncodeToString(sum[:])[:keyDigestLen]

	return operation + ":" + digest
}

// writeCanonical appends a canonical JSON rendering of v: map keys
// sorted alphabetically, nil map entries dropped, arrays preserved in
// order. Values are assumed to come from a JSON decode (maps, slices,
// strings, numbers, booleans), which is what the query layer hands us
// as operation variables.
func writeCanonical(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")

	case map[string]any:
		keys := make([]string, 0, len(val))
		for k, elem := range val {
			if elem == nil {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encoded, _ := json.Marshal(k)
			buf.Write(encoded)
			buf.WriteByte(':')
			writeCanonical(buf, val[k])
		}
		buf.WriteByte('}')

	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, elem)
		}
		buf.WriteByte(']')

	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			// Unencodable argument values still need a stable
			// rendering; fall back to the empty object.
			buf.WriteString("{}")
			return
		}
		buf.Write(encoded)
	}
}
