package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ParseCommand splits one trimmed line into verb and argument. FIN takes no
// argument; every other verb requires the ':' separator.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == string(VerbFin) {
		return Command{Verb: VerbFin}, nil
	}
	verb, arg, ok := strings.Cut(line, ":")
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrNotRecognized, truncate(line))
	}
	switch Verb(verb) {
	case VerbInit, VerbDir, VerbTR:
		return Command{Verb: Verb(verb), Arg: arg}, nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrNotRecognized, truncate(line))
	}
}

// DecodeText percent-decodes a TR payload and trims surrounding whitespace.
// '+' is literal. Invalid escapes, invalid UTF-8 and empty results are ErrDecode.
func DecodeText(payload string) (string, error) {
	s, err := url.PathUnescape(strings.TrimSpace(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: invalid utf-8", ErrDecode)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrDecode
	}
	return s, nil
}

// ReadLine reads one '\n'-terminated line, without its CR/LF, buffering partial
// input until the terminator arrives. Lines longer than max bytes are
// ErrLineTooLong.
func ReadLine(r *bufio.Reader, max int) (string, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(buf)+len(chunk) > max+2 {
			return "", ErrLineTooLong
		}
		buf = append(buf, chunk...)
		switch err {
		case nil:
			return string(bytes.TrimRight(buf, "\r\n")), nil
		case bufio.ErrBufferFull:
			continue
		default:
			return "", err
		}
	}
}

func truncate(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
