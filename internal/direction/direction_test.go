package direction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsSourceScript(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "empty", in: "", want: false},
		{name: "ascii", in: "hello, world", want: false},
		{name: "latin accents", in: "café déjà vu", want: false},
		{name: "hiragana", in: "あ", want: true},
		{name: "katakana", in: "カタカナ", want: true},
		{name: "kanji", in: "漢字", want: true},
		{name: "mixed", in: "price: 100円", want: true},
		{name: "range low edge", in: string(rune(0x3040)), want: true},
		{name: "range high edge", in: string(rune(0x9fff)), want: true},
		{name: "just outside cjk", in: string(rune(0xa000)), want: false},
		{name: "fullwidth punctuation", in: "。、", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ContainsSourceScript(tc.in))
		})
	}
}

func TestParse(t *testing.T) {
	assert.Equal(t, JE, Parse("JE"))
	assert.Equal(t, JE, Parse("je"))
	assert.Equal(t, EJ, Parse("EJ"))
	assert.Equal(t, EJ, Parse(" ej-extra"))
	assert.Equal(t, Auto, Parse("AUTO"))
	assert.Equal(t, Auto, Parse(""))
	assert.Equal(t, Auto, Parse("xx"))
}

func TestResolveExplicitIgnoresText(t *testing.T) {
	assert.Equal(t, JE, Resolve(PolicyEvidence, JE, EJ, "plain english"))
	assert.Equal(t, EJ, Resolve(PolicyStrict, EJ, JE, "日本語"))
}

func TestResolveEvidenceHysteresis(t *testing.T) {
	// EJ stays EJ on text without source script.
	assert.Equal(t, EJ, Resolve(PolicyEvidence, Auto, EJ, "good morning"))
	assert.Equal(t, EJ, Resolve(PolicyEvidence, Auto, EJ, "12345 !?"))
	// EJ flips to JE on source script.
	assert.Equal(t, JE, Resolve(PolicyEvidence, Auto, EJ, "おはよう"))
	// Opt-in: JE stays JE on source script and on text with no letters.
	assert.Equal(t, JE, Resolve(PolicyEvidence, Auto, JE, "おはよう"))
	assert.Equal(t, JE, Resolve(PolicyEvidence, Auto, JE, "42."))
	// JE flips to EJ on Latin letters.
	assert.Equal(t, EJ, Resolve(PolicyEvidence, Auto, JE, "good morning"))
}

func TestResolveStrictDecidesPerRequest(t *testing.T) {
	assert.Equal(t, EJ, Resolve(PolicyStrict, Auto, JE, "42."))
	assert.Equal(t, EJ, Resolve(PolicyStrict, Auto, EJ, "good morning"))
	assert.Equal(t, JE, Resolve(PolicyStrict, Auto, EJ, "おはよう"))
}

func TestResolveDefaultPolicyFlipsWithoutSourceScript(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	var zero Policy

	tests := []struct {
		name string
		last Direction
		text string
		want Direction
	}{
		{name: "je digits flip", last: JE, text: "123", want: EJ},
		{name: "je punctuation flip", last: JE, text: "42.", want: EJ},
		{name: "je latin flip", last: JE, text: "good morning", want: EJ},
		{name: "je stays on kana", last: JE, text: "おはよう", want: JE},
		{name: "ej stays on digits", last: EJ, text: "123", want: EJ},
		{name: "ej flips on kanji", last: EJ, text: "漢字", want: JE},
		{name: "unset last", last: Auto, text: "...", want: EJ},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(p, Auto, tc.last, tc.text))
			assert.Equal(t, tc.want, Resolve(zero, Auto, tc.last, tc.text))
		})
	}
}

func TestResolveAutoLastResolvedFallsBackToJE(t *testing.T) {
	assert.Equal(t, JE, Resolve(PolicyEvidence, Auto, Auto, "..."))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)
	assert.Equal(t, "strict", p.String())

	p, err = ParsePolicy("evidence")
	require.NoError(t, err)
	assert.Equal(t, PolicyEvidence, p)

	p, err = ParsePolicy("Strict")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	_, err = ParsePolicy("sometimes")
	require.True(t, errors.Is(err, ErrInvalidPolicy))
}
