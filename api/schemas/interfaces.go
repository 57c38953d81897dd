// File: api/schemas/interfaces.go
package schemas

import "context"

// Planner produces the next browser action for the current goal. It
// must not fail: on any internal error it falls back to a deterministic
// heuristic plan. Plans it returns may still be degenerate and are
// repaired by the normalizer before gating.
type Planner interface {
	Plan(ctx context.Context, goal string, view SessionView) Plan
}

// RiskOracle classifies the risk of the current page against the user's
// request. Both passes share the no-throw contract of Planner; Fast is
// bounded by a short internal timeout before falling back to heuristics.
type RiskOracle interface {
	Fast(ctx context.Context, transcript string, obs PageObservation) RiskAssessment
	Deep(ctx context.Context, transcript string, obs PageObservation) RiskAssessment
}

// DomainVerifier resolves a service's known official domain and checks
// it against the page the browser is currently on. A verifier that
// cannot complete the check reports Checked=false rather than an error.
type DomainVerifier interface {
	Check(ctx context.Context, serviceName, currentURL string) DomainCheck
}

// BrowserExecutor is the remote-automation collaborator. Execution
// methods report failure inside the ExecutionResult; an error return is
// reserved for context cancellation.
type BrowserExecutor interface {
	Navigate(ctx context.Context, url string) ExecutionResult
	Act(ctx context.Context, instruction string) ExecutionResult
	Extract(ctx context.Context, instruction string) ExecutionResult
	CaptureObservation(ctx context.Context) PageObservation
	ExtractPaymentReadback(ctx context.Context) PaymentReadback
	RuntimeInfo() map[string]any
}

// ModelTier selects a large language model by capability preference
// rather than by name, so callers stay decoupled from model naming.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Faster, less capable model.
	TierPowerful ModelTier = "powerful" // Slower, more capable model.
)

// GenerationRequest encapsulates a complete request to the LLM.
type GenerationRequest struct {
	SystemPrompt    string    `json:"system_prompt"`
	UserPrompt      string    `json:"user_prompt"`
	Tier            ModelTier `json:"tier"`
	ForceJSONFormat bool      `json:"force_json_format"`
}

// LLMClient is the minimal contract for a language-model backend.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
