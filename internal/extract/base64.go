package extract

import (
	"encoding/base64"
	"errors"
	"strings"
)

var errNotBase64 = errors.New("not base64")

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeBase64 decodes s like the browser's atob, also accepting unpadded
// and URL-safe input. Whitespace is ignored.
func DecodeBase64(s string) (string, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "", errNotBase64
	}

	for _, enc := range base64Encodings {
		in := s
		if enc == base64.RawStdEncoding || enc == base64.RawURLEncoding {
			in = strings.TrimRight(s, "=")
		}
		if b, err := enc.DecodeString(in); err == nil {
			return string(b), nil
		}
	}
	return "", errNotBase64
}
