package store

import (
	"fmt"
	"strings"
)

// Characters that may not appear in a path segment. '%' is escaped too so
// decoding is unambiguous.
const unsafeKeyChars = ".#$[]/%"

// EncodeKey reversibly escapes an arbitrary external string so it can be
// used as a single path segment.
func EncodeKey(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(unsafeKeyChars, c) >= 0 {
			fmt.Fprintf(&b, "%%%02X", c)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// DecodeKey reverses EncodeKey.
func DecodeKey(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated escape in key %q", s)
		}
		var v byte
		if _, err := fmt.Sscanf(s[i+1:i+3], "%02X", &v); err != nil {
			return "", fmt.Errorf("invalid escape in key %q: %w", s, err)
		}
		b.WriteByte(v)
		i += 2
	}
	return b.String(), nil
}
