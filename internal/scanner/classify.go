// Package scanner classifies keystroke streams. A keyboard-wedge barcode
// scanner emits characters far faster than a human can type; the
// classifier separates the two by inter-keystroke latency. It is a pure
// function on timestamps, independent of the verification engine.
package scanner

import (
	"strings"
	"time"
	"unicode"
)

// Keystroke is one observed character with its arrival time.
type Keystroke struct {
	Rune rune
	At   time.Time
}

const (
	// MinTokenLength is the shortest burst treated as a scan.
	MinTokenLength = 3
	// MaxMeanGap is the largest mean inter-keystroke gap a hardware
	// scanner plausibly produces.
	MaxMeanGap = 35 * time.Millisecond
)

// Classify decides whether the keystroke burst came from a hardware
// scanner, and if so returns the assembled barcode token. Non-printable
// runes terminate nothing; they are simply skipped when assembling.
func Classify(keys []Keystroke) (string, bool) {
	if len(keys) < MinTokenLength {
		return "", false
	}

	var total time.Duration
	for i := 1; i < len(keys); i++ {
		gap := keys[i].At.Sub(keys[i-1].At)
		if gap < 0 {
			return "", false
		}
		total += gap
	}
	mean := total / time.Duration(len(keys)-1)
	if mean > MaxMeanGap {
		return "", false
	}

	var b strings.Builder
	for _, k := range keys {
		if unicode.IsPrint(k.Rune) && !unicode.IsSpace(k.Rune) {
			b.WriteRune(k.Rune)
		}
	}
	token := b.String()
	if len(token) < MinTokenLength {
		return "", false
	}
	return token, true
}
