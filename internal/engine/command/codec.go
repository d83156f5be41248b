package command

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

var ErrUnknownEncoding = errors.New("command: unknown encoding")

// Codec converts between UTF-8 strings and the program's byte encoding.
type Codec struct {
	name string
	enc  encoding.Encoding
}

// CodecFor resolves an encoding name. Empty means shift_jis.
func CodecFor(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "shift_jis", "shift-jis", "sjis":
		return Codec{name: "shift_jis", enc: japanese.ShiftJIS}, nil
	case "euc-jp", "eucjp", "euc_jp":
		return Codec{name: "euc-jp", enc: japanese.EUCJP}, nil
	case "utf-8", "utf8":
		return Codec{name: "utf-8", enc: unicode.UTF8}, nil
	default:
		return Codec{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

func (c Codec) Name() string {
	return c.name
}

// Encode fails on characters the target encoding cannot represent.
func (c Codec) Encode(s string) ([]byte, error) {
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("command: encode %s: %w", c.name, err)
	}
	return out, nil
}

func (c Codec) Decode(b []byte) (string, error) {
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("command: decode %s: %w", c.name, err)
	}
	return string(out), nil
}
