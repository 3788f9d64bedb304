// Package form decodes application/x-www-form-urlencoded request bodies.
//
// Decoding is lenient: a '%' that is not followed by a usable hex escape is
// kept literally instead of failing the request.
package form

import (
	"errors"
	"slices"
	"strings"
	"unicode/utf8"
)

// ImageDataMarker precedes the hex bitmap in a POST body.
const ImageDataMarker = "image_data="

var (
	ErrMarkerNotFound = errors.New("form: marker not found")
	ErrDecodeUTF8     = errors.New("form: invalid utf-8")
)

// escapeKind tags how one '%'-introduced segment was decoded.
type escapeKind int

const (
	// escapeDecoded: the leading characters formed a byte value.
	escapeDecoded escapeKind = iota
	// escapePassThrough: the segment is copied with its '%' intact.
	escapePassThrough
)

// escape is the result of decoding the characters that follow one '%'.
type escape struct {
	kind escapeKind
	b    byte // value when kind is escapeDecoded
	n    int  // bytes of the segment consumed by the escape
}

// decodeEscape inspects the first two characters of seg (fewer if seg is
// shorter). They decode when, after trimming ASCII whitespace and an optional
// sign, one or two hex digits remain and the value fits a byte. A minus sign
// is accepted only for zero. Two characters are consumed even when trimming
// left a single digit, so "% 1x" yields 0x01 followed by "x".
func decodeEscape(seg string) escape {
	n := min(2, len(seg))
	head := seg[:n]
	for i := 0; i < len(head); i++ {
		if head[i] >= utf8.RuneSelf {
			return escape{kind: escapePassThrough}
		}
	}

	digits := strings.Trim(head, asciiSpace)
	negative := false
	if digits != "" && (digits[0] == '+' || digits[0] == '-') {
		negative = digits[0] == '-'
		digits = digits[1:]
	}
	if digits == "" {
		return escape{kind: escapePassThrough}
	}

	var v byte
	for i := 0; i < len(digits); i++ {
		d, ok := unhex(digits[i])
		if !ok {
			return escape{kind: escapePassThrough}
		}
		v = v<<4 | d
	}
	if negative && v != 0 {
		return escape{kind: escapePassThrough}
	}
	return escape{kind: escapeDecoded, b: v, n: n}
}

// asciiSpace is the whitespace trimmed around an escape's digits.
const asciiSpace = " \t\n\v\f\r\x1c\x1d\x1e\x1f"

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Unquote decodes a form value: '+' becomes a space and %XX escapes become
// raw bytes. The decoded bytes must form valid UTF-8.
func Unquote(s string) (string, error) {
	s = strings.ReplaceAll(s, "+", " ")
	head, rest, found := strings.Cut(s, "%")
	if !found {
		return s, nil
	}

	buf := make([]byte, 0, len(s))
	buf = append(buf, head...)
	for _, seg := range strings.Split(rest, "%") {
		e := decodeEscape(seg)
		switch e.kind {
		case escapeDecoded:
			buf = append(buf, e.b)
			buf = append(buf, seg[e.n:]...)
		case escapePassThrough:
			buf = append(buf, '%')
			buf = append(buf, seg...)
		}
	}
	if !utf8.Valid(buf) {
		return "", ErrDecodeUTF8
	}
	return string(buf), nil
}

// Quote is the encoding counterpart of Unquote, matching what the browser
// sends for a form field: spaces become '+', unreserved characters are kept
// and every other byte becomes an upper-case %XX escape.
func Quote(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ':
			b.WriteByte('+')
		case isUnreserved(c):
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0F])
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '*'
}

// DecodeBody validates a raw request body as UTF-8 text.
func DecodeBody(body []byte) (string, error) {
	if !utf8.Valid(body) {
		return "", ErrDecodeUTF8
	}
	return string(body), nil
}

// Extract returns the decoded value following marker in body. The value ends
// at the next '&', the next occurrence of marker, or the end of the body.
// Extract returns ErrMarkerNotFound when marker does not occur.
func Extract(body, marker string) (string, error) {
	_, after, found := strings.Cut(body, marker)
	if !found {
		return "", ErrMarkerNotFound
	}
	if i := strings.Index(after, marker); i >= 0 {
		after = after[:i]
	}
	value, _, _ := strings.Cut(after, "&")
	return Unquote(value)
}

// Fields maps decoded keys to decoded values.
type Fields map[string]string

// Parse decodes every key=value pair of body. Duplicate keys resolve to the
// last value. A pair without '=' yields an empty value.
func Parse(body string) (Fields, error) {
	return Select(body)
}

// Select is like Parse but only decodes the values of the named keys, which
// keeps large unrelated fields (such as image data) from being copied. A pair
// whose key cannot be decoded is not one of the named keys and is skipped.
// With no keys every pair is decoded.
func Select(body string, keys ...string) (Fields, error) {
	fields := make(Fields)
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := Unquote(rawKey)
		if err != nil {
			if len(keys) > 0 {
				continue
			}
			return nil, err
		}
		if len(keys) > 0 && !slices.Contains(keys, key) {
			continue
		}
		value, err := Unquote(rawValue)
		if err != nil {
			return nil, err
		}
		fields[key] = value
	}
	return fields, nil
}

// Get returns the value for key and whether it was present.
func (f Fields) Get(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}
