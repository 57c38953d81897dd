// File: internal/copilot/normalize.go
package copilot

import (
	"strings"

	"github.com/guidelight-ai/guidelight/api/schemas"
)

// DefaultExtractInstruction replaces a blank extract instruction so the
// browser still produces something useful to narrate.
const DefaultExtractInstruction = "Summarize the page and list the actionable elements."

// Normalize repairs degenerate planner output before gating. It never
// fails; the worst plan downgrades to a noop with an explanatory reason.
func Normalize(plan schemas.Plan) schemas.Plan {
	switch plan.Kind {
	case schemas.ActionNavigate:
		if strings.TrimSpace(plan.URL) == "" {
			return schemas.Plan{
				Kind:   schemas.ActionNoop,
				Reason: "Planner proposed navigation without a target URL.",
			}
		}
	case schemas.ActionAct:
		if strings.TrimSpace(plan.Instruction) == "" {
			return schemas.Plan{
				Kind:   schemas.ActionNoop,
				Reason: "Planner proposed an action without an instruction.",
			}
		}
	case schemas.ActionExtract:
		if strings.TrimSpace(plan.Instruction) == "" {
			plan.Instruction = DefaultExtractInstruction
		}
	case schemas.ActionStop, schemas.ActionNoop:
		// Valid as-is.
	default:
		return schemas.Plan{
			Kind:   schemas.ActionNoop,
			Reason: "Planner returned an unknown action kind.",
		}
	}
	return plan
}
