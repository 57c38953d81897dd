// File: internal/copilot/normalize_test.go
package copilot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/copilot"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   schemas.Plan
		want schemas.ActionKind
	}{
		{"navigate without url becomes noop",
			schemas.Plan{Kind: schemas.ActionNavigate, URL: "  "}, schemas.ActionNoop},
		{"navigate with url passes",
			schemas.Plan{Kind: schemas.ActionNavigate, URL: "https://www.pge.com"}, schemas.ActionNavigate},
		{"act without instruction becomes noop",
			schemas.Plan{Kind: schemas.ActionAct}, schemas.ActionNoop},
		{"act with instruction passes",
			schemas.Plan{Kind: schemas.ActionAct, Instruction: "click sign in"}, schemas.ActionAct},
		{"stop passes",
			schemas.Plan{Kind: schemas.ActionStop}, schemas.ActionStop},
		{"unknown kind becomes noop",
			schemas.Plan{Kind: schemas.ActionKind("teleport")}, schemas.ActionNoop},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := copilot.Normalize(tc.in)
			assert.Equal(t, tc.want, got.Kind)
			if got.Kind == schemas.ActionNoop {
				assert.NotEmpty(t, got.Reason)
			}
		})
	}
}

func TestNormalize_BlankExtractGetsDefaultInstruction(t *testing.T) {
	got := copilot.Normalize(schemas.Plan{Kind: schemas.ActionExtract})
	assert.Equal(t, schemas.ActionExtract, got.Kind)
	assert.Equal(t, copilot.DefaultExtractInstruction, got.Instruction)
}
