package protocol

import (
	"io"
	"strings"
)

const upperhex = "0123456789ABCDEF"

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// EncodeText percent-encodes every UTF-8 byte of s except RFC 3986 unreserved
// characters.
func EncodeText(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// Result builds a RES response carrying text.
func Result(text string) Response {
	return Response(resultPrefix + EncodeText(text))
}

// Bytes returns the CRLF-terminated wire form.
func (r Response) Bytes() []byte {
	out := make([]byte, 0, len(r)+2)
	out = append(out, r...)
	return append(out, '\r', '\n')
}

// WriteResponse writes one response line to w.
func WriteResponse(w io.Writer, r Response) error {
	_, err := w.Write(r.Bytes())
	return err
}
