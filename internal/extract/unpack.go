package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// errNotPacked is returned by unpack when no packer payload is present.
var errNotPacked = errors.New("no packed script found")

var (
	packedSignature = regexp.MustCompile(`eval\(function\(p,a,c,k,e,(?:r|d)?`)

	// }('payload',radix,count,'sym|tab'.split('|')
	packedArgs = regexp.MustCompile(`(?s)\}\s*\(\s*'((?:[^'\\]|\\.)*)'\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*'((?:[^'\\]|\\.)*)'\.split\(\s*'\|'\s*\)`)

	packedWord = regexp.MustCompile(`\b\w+\b`)

	jsUnescaper = strings.NewReplacer(`\\`, `\`, `\'`, `'`)
)

const packerAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// IsPacked reports whether text contains a P.A.C.K.E.R. signature.
func IsPacked(text string) bool {
	return packedSignature.MatchString(text)
}

// unpack decodes the first packed payload in script.
func unpack(script string) (string, error) {
	m := packedArgs.FindStringSubmatch(script)
	if m == nil {
		return "", errNotPacked
	}
	return unpackMatch(m)
}

// UnpackAll decodes every packed payload in text, skipping broken ones.
func UnpackAll(text string) []string {
	if !IsPacked(text) {
		return nil
	}
	var out []string
	for _, m := range packedArgs.FindAllStringSubmatch(text, -1) {
		if s, err := unpackMatch(m); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func unpackMatch(m []string) (string, error) {
	payload := jsUnescaper.Replace(m[1])
	radix, err := strconv.Atoi(m[2])
	if err != nil || radix < 2 || radix > len(packerAlphabet) {
		return "", fmt.Errorf("unsupported packer radix %q", m[2])
	}
	symtab := strings.Split(m[4], "|")

	return packedWord.ReplaceAllStringFunc(payload, func(word string) string {
		idx, ok := unbase(word, radix)
		if !ok || idx >= len(symtab) || symtab[idx] == "" {
			return word
		}
		return symtab[idx]
	}), nil
}

// unbase parses word in the packer's base. Bases up to 36 are
// case-insensitive; larger bases use the 62-symbol alphabet.
func unbase(word string, radix int) (int, bool) {
	if len(word) > 8 {
		return 0, false
	}
	if radix <= 36 {
		n, err := strconv.ParseInt(word, radix, 64)
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	n := 0
	for _, c := range word {
		d := strings.IndexRune(packerAlphabet[:radix], c)
		if d < 0 {
			return 0, false
		}
		n = n*radix + d
	}
	return n, true
}
