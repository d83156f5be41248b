package protocol

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/atlasgate/internal/engine"
)

func TestEncodeTextUnreservedOnly(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "abcXYZ019-._~", want: "abcXYZ019-._~"},
		{in: "a b", want: "a%20b"},
		{in: "あ", want: "%E3%81%82"},
		{in: "1+1=2", want: "1%2B1%3D2"},
		{in: "", want: ""},
	}
	for _, tc := range tests {
		if got := EncodeText(tc.in); got != tc.want {
			t.Fatalf("EncodeText(%q) = %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestDecodeText(t *testing.T) {
	got, err := DecodeText("%E3%81%82")
	if err != nil || got != "あ" {
		t.Fatalf("unexpected decode: %q %v", got, err)
	}
	got, err = DecodeText("%20%20hello+world%0A")
	if err != nil || got != "hello+world" {
		t.Fatalf("expected trimmed literal plus, got %q %v", got, err)
	}
	for _, bad := range []string{"", "   ", "%20%09", "%zz", "%E3%81", "%FF"} {
		if _, err := DecodeText(bad); !errors.Is(err, ErrDecode) {
			t.Fatalf("DecodeText(%q) expected ErrDecode, got %v", bad, err)
		}
	}
}

func TestPercentRoundTrip(t *testing.T) {
	for _, text := range []string{"こんにちは、世界", "Hello, world!", "a/b?c=d&e#f", "漢字 and ASCII ~"} {
		got, err := DecodeText(EncodeText(text))
		if err != nil {
			t.Fatalf("round trip %q: %v", text, err)
		}
		if got != text {
			t.Fatalf("round trip mismatch: %q != %q", got, text)
		}
		if again := EncodeText(got); again != EncodeText(text) {
			t.Fatalf("re-encode mismatch: %q", again)
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{line: "INIT:secret", want: Command{Verb: VerbInit, Arg: "secret"}},
		{line: "  DIR:ej \r", want: Command{Verb: VerbDir, Arg: "ej"}},
		{line: "TR:", want: Command{Verb: VerbTR, Arg: ""}},
		{line: "TR:a:b", want: Command{Verb: VerbTR, Arg: "a:b"}},
		{line: "FIN", want: Command{Verb: VerbFin}},
	}
	for _, tc := range tests {
		got, err := ParseCommand(tc.line)
		if err != nil {
			t.Fatalf("ParseCommand(%q): %v", tc.line, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCommand(%q) = %+v want %+v", tc.line, got, tc.want)
		}
	}
	for _, bad := range []string{"", "fin", "FIN:", "init:x", "HELLO", "TRX:abc", "FINISH"} {
		if _, err := ParseCommand(bad); !errors.Is(err, ErrNotRecognized) {
			t.Fatalf("ParseCommand(%q) expected ErrNotRecognized, got %v", bad, err)
		}
	}
}

func TestResponseBytes(t *testing.T) {
	if got := string(RespOK.Bytes()); got != "OK\r\n" {
		t.Fatalf("unexpected bytes %q", got)
	}
	if got := string(Result("あ").Bytes()); got != "RES:%E3%81%82\r\n" {
		t.Fatalf("unexpected result bytes %q", got)
	}
}

func TestResponseFor(t *testing.T) {
	tests := []struct {
		err  error
		want Response
	}{
		{err: nil, want: RespOK},
		{err: ErrNotAuthorized, want: RespNotAuthorized},
		{err: ErrDecode, want: RespNullStrDecoded},
		{err: engine.ErrUnavailable, want: RespTransFailed},
		{err: engine.ErrTranslationFailed, want: RespTransFailed},
		{err: ErrNotRecognized, want: RespNotRecognized},
	}
	for _, tc := range tests {
		if got := ResponseFor(tc.err); got != tc.want {
			t.Fatalf("ResponseFor(%v) = %q want %q", tc.err, got, tc.want)
		}
	}
}

func TestReadLineBuffersAndLimits(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader("INIT:abc\r\nTR:%E3%81%82\nFIN"), 16)
	line, err := ReadLine(r, 64)
	if err != nil || line != "INIT:abc" {
		t.Fatalf("first line: %q %v", line, err)
	}
	line, err = ReadLine(r, 64)
	if err != nil || line != "TR:%E3%81%82" {
		t.Fatalf("second line: %q %v", line, err)
	}
	if _, err := ReadLine(r, 64); err == nil {
		t.Fatalf("expected EOF on unterminated line")
	}

	long := bufio.NewReaderSize(strings.NewReader(strings.Repeat("a", 100)+"\n"), 16)
	if _, err := ReadLine(long, 32); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}
}
