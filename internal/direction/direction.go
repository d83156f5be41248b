// Package direction owns translation direction values and the script-based
// resolution used when a client asks for automatic direction selection.
package direction

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrInvalidPolicy = errors.New("direction: invalid auto policy")

// Direction is the language ordering requested by a client or applied to the engine.
type Direction int

const (
	Auto Direction = iota
	JE
	EJ
)

func (d Direction) String() string {
	switch d {
	case JE:
		return "JE"
	case EJ:
		return "EJ"
	default:
		return "AUTO"
	}
}

// Concrete reports whether d can be applied to the engine as-is.
func (d Direction) Concrete() bool {
	return d == JE || d == EJ
}

// Parse maps a DIR argument to a Direction. Unrecognized values mean Auto.
func Parse(raw string) Direction {
	v := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(v, "JE"):
		return JE
	case strings.HasPrefix(v, "EJ"):
		return EJ
	default:
		return Auto
	}
}

// Policy selects how Auto flips between JE and EJ across requests.
type Policy int

const (
	// PolicyStrict decides every request on its own text: JE iff source script.
	// A session already on EJ stays there until source script shows up, and one
	// on JE flips as soon as a request carries none.
	PolicyStrict Policy = iota
	// PolicyEvidence additionally keeps the previous effective direction when
	// the text has no letters at all. Opt-in only.
	PolicyEvidence
)

func (p Policy) String() string {
	if p == PolicyEvidence {
		return "evidence"
	}
	return "strict"
}

// ParsePolicy maps an auto_policy value. Empty selects PolicyStrict.
func ParsePolicy(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "strict":
		return PolicyStrict, nil
	case "evidence", "hysteresis":
		return PolicyEvidence, nil
	default:
		return PolicyStrict, fmt.Errorf("%w: %q", ErrInvalidPolicy, raw)
	}
}

const (
	lowHiragana  = 0x3040
	highHiragana = 0x309f
	lowKatakana  = 0x30a0
	highKatakana = 0x30ff
	lowCJK       = 0x4e00
	highCJK      = 0x9fff
)

func isSourceRune(r rune) bool {
	return (r >= lowHiragana && r <= highHiragana) ||
		(r >= lowKatakana && r <= highKatakana) ||
		(r >= lowCJK && r <= highCJK)
}

// ContainsSourceScript reports whether text has any Hiragana, Katakana or CJK
// Unified Ideograph code point.
func ContainsSourceScript(text string) bool {
	for _, r := range text {
		if isSourceRune(r) {
			return true
		}
	}
	return false
}

// evidence classifies text: JE for source script, EJ for other letters, Auto when
// the text carries no letters at all.
func evidence(text string) Direction {
	letters := false
	for _, r := range text {
		if isSourceRune(r) {
			return JE
		}
		if unicode.IsLetter(r) {
			letters = true
		}
	}
	if letters {
		return EJ
	}
	return Auto
}

// Resolve computes the effective direction for one request. lastResolved is the
// previous effective direction of the same session and only matters for Auto.
func Resolve(policy Policy, requested, lastResolved Direction, text string) Direction {
	if requested.Concrete() {
		return requested
	}
	if !lastResolved.Concrete() {
		lastResolved = JE
	}
	if policy != PolicyEvidence {
		if ContainsSourceScript(text) {
			return JE
		}
		return EJ
	}
	switch evidence(text) {
	case JE:
		return JE
	case EJ:
		return EJ
	default:
		return lastResolved
	}
}
