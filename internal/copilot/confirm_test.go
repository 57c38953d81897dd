// File: internal/copilot/confirm_test.go
package copilot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guidelight-ai/guidelight/internal/copilot"
)

func TestClassifyConfirmation_Fuzzy(t *testing.T) {
	const phrase = "yes, pay $142.37 to PG&E"

	tests := []struct {
		name       string
		transcript string
		want       copilot.Verdict
	}{
		{"exact phrase", "yes, pay $142.37 to PG&E", copilot.VerdictAffirmed},
		{"bare yes", "yes", copilot.VerdictAffirmed},
		{"go ahead", "go ahead please", copilot.VerdictAffirmed},
		{"okay", "okay then", copilot.VerdictAffirmed},
		{"negation wins over affirmation", "no, don't proceed", copilot.VerdictNegated},
		{"stop", "stop", copilot.VerdictNegated},
		{"cancel", "cancel that", copilot.VerdictNegated},
		{"dont contraction", "don't do it", copilot.VerdictNegated},
		{"unrelated speech", "what's the weather like", copilot.VerdictUnrecognized},
		{"word boundary notice is not no", "I saw a notice on the page", copilot.VerdictUnrecognized},
		{"empty", "   ", copilot.VerdictUnrecognized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := copilot.ClassifyConfirmation(tc.transcript, phrase, false)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClassifyConfirmation_Strict(t *testing.T) {
	const phrase = "yes, proceed safely"

	assert.Equal(t, copilot.VerdictAffirmed,
		copilot.ClassifyConfirmation("Yes, Proceed Safely", phrase, true),
		"strict mode matches case-insensitively")
	assert.Equal(t, copilot.VerdictUnrecognized,
		copilot.ClassifyConfirmation("yes", phrase, true),
		"a bare yes must not pass in strict mode")
	assert.Equal(t, copilot.VerdictNegated,
		copilot.ClassifyConfirmation("no", phrase, true),
		"negation still works in strict mode")
}
