// File: internal/copilot/confirm.go
package copilot

import "strings"

// Verdict is the confirmation machine's reading of a transcript while a
// risky plan is pending.
type Verdict int

const (
	VerdictUnrecognized Verdict = iota
	VerdictAffirmed
	VerdictNegated
)

// Negation is checked before affirmation so "no, don't proceed" cancels
// even though it contains "proceed".
var (
	negationKeywords    = []string{"no", "stop", "cancel", "don't"}
	affirmationKeywords = []string{"yes", "okay", "proceed", "continue", "go ahead"}
)

// ClassifyConfirmation interprets a transcript against a pending
// confirmation. In strict mode only the exact expected phrase affirms;
// the fuzzy mode accepts any affirmative keyword. Both modes honor
// negation keywords first.
func ClassifyConfirmation(transcript, expectedPhrase string, strict bool) Verdict {
	normalized := strings.ToLower(strings.TrimSpace(transcript))
	if normalized == "" {
		return VerdictUnrecognized
	}

	if containsAnyWord(normalized, negationKeywords) {
		return VerdictNegated
	}

	if strict {
		if normalized == strings.ToLower(strings.TrimSpace(expectedPhrase)) {
			return VerdictAffirmed
		}
		return VerdictUnrecognized
	}

	if containsAnyWord(normalized, affirmationKeywords) {
		return VerdictAffirmed
	}
	return VerdictUnrecognized
}

// containsAnyWord matches keywords on word boundaries so "notice" does
// not read as "no".
func containsAnyWord(text string, keywords []string) bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?' || r == ';'
	})
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(text, kw) {
				return true
			}
			continue
		}
		for _, f := range fields {
			if f == kw {
				return true
			}
		}
	}
	return false
}
