// File: api/schemas/schemas.go
package schemas

import "strings"

// RiskLevel is the severity tier assigned to a page or a user request.
// Tiers are strictly ordered; Severity gives the ordering used when one
// assessment is allowed to escalate, but never de-escalate, another.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "SAFE"
	RiskCaution  RiskLevel = "CAUTION"
	RiskHighRisk RiskLevel = "HIGH_RISK"
	RiskDanger   RiskLevel = "DANGER"
)

// Severity maps a risk level onto an ordinal scale for comparisons.
// Unknown levels rank below SAFE so a malformed oracle response can
// never mask a real assessment.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskSafe:
		return 1
	case RiskCaution:
		return 2
	case RiskHighRisk:
		return 3
	case RiskDanger:
		return 4
	default:
		return 0
	}
}

// ActionKind is the closed set of browser actions a plan may request.
// Every dispatch site must handle all five kinds exhaustively.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate" // Load a URL.
	ActionAct      ActionKind = "act"      // Perform an instruction on the current page.
	ActionExtract  ActionKind = "extract"  // Read information from the current page.
	ActionStop     ActionKind = "stop"     // End the turn at the user's request.
	ActionNoop     ActionKind = "noop"     // No browser action inferred.
)

// Plan is one proposed browser action together with the planner's
// reasoning and its own confirmation demand. Plans are immutable once
// produced; the safety gate derives modified copies instead of mutating.
type Plan struct {
	Kind                 ActionKind `json:"action_type"`
	Reason               string     `json:"reason"`
	URL                  string     `json:"url,omitempty"`
	Instruction          string     `json:"instruction,omitempty"`
	ServiceName          string     `json:"service_name,omitempty"`
	RequiresConfirmation bool       `json:"requires_confirmation"`
	ConfirmationPhrase   string     `json:"confirmation_phrase,omitempty"`
}

// Signature derives the repetition-detection key for a plan. It is only
// meaningful within a single turn's action history.
func (p Plan) Signature() string {
	return strings.Join([]string{string(p.Kind), p.URL, p.Instruction}, "|")
}

// WithoutConfirmation returns a copy of the plan with its confirmation
// demand cleared, suitable for storing as a pending plan.
func (p Plan) WithoutConfirmation() Plan {
	p.RequiresConfirmation = false
	p.ConfirmationPhrase = ""
	return p
}

// ExecutionResult reports the outcome of a single dispatched browser
// action. It is consumed immediately and never retained beyond the step.
type ExecutionResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	CurrentURL    string `json:"current_url,omitempty"`
	ExtractedData any    `json:"extracted_data,omitempty"`
}

// PageObservation is a snapshot of the current page captured after every
// state-changing action. The screenshot is execution-local; callers
// persisting an observation must strip it first (see WithoutScreenshot).
type PageObservation struct {
	CurrentURL         string   `json:"current_url"`
	Title              string   `json:"title,omitempty"`
	VisibleTextExcerpt string   `json:"visible_text_excerpt,omitempty"`
	FormFields         []string `json:"form_fields,omitempty"`
	PaymentAmount      string   `json:"payment_amount,omitempty"`
	PayeeEntity        string   `json:"payee_entity,omitempty"`
	UrgencySignals     []string `json:"urgency_signals,omitempty"`
	DOMExcerpt         string   `json:"dom_excerpt,omitempty"`
	ScreenshotB64      string   `json:"screenshot_b64,omitempty"`
}

// WithoutScreenshot returns a copy safe for retention in session state.
func (o PageObservation) WithoutScreenshot() PageObservation {
	o.ScreenshotB64 = ""
	return o
}

// Recommendation is the policy verdict attached to a risk assessment.
type Recommendation string

const (
	RecommendProceed Recommendation = "proceed"
	RecommendWarn    Recommendation = "warn"
	RecommendBlock   Recommendation = "block"
)

// RiskAssessment is a single oracle verdict about the current page in
// the context of the user's request. Two are produced per step (fast and
// deep); only the final merged one may update session state.
type RiskAssessment struct {
	Level                RiskLevel      `json:"risk_level"`
	Reasons              []string       `json:"risk_reasons"`
	RecommendedAction    Recommendation `json:"recommended_action"`
	VoiceMessage         string         `json:"voice_message"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	ConfirmationPhrase   string         `json:"confirmation_phrase,omitempty"`
}

// PaymentReadback carries the amount and payee extracted from a payment
// page, used to build an informed confirmation phrase.
type PaymentReadback struct {
	Amount string `json:"amount,omitempty"`
	Payee  string `json:"payee,omitempty"`
}

// DomainCheck is the result of verifying that the current page's domain
// belongs to the service the user believes they are interacting with.
type DomainCheck struct {
	Checked        bool   `json:"checked"`
	Match          bool   `json:"match"`
	ServiceName    string `json:"service_name"`
	CurrentDomain  string `json:"current_domain"`
	VerifiedDomain string `json:"verified_domain,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// SessionView is the read-only projection of session state handed to
// collaborators. Collaborators return decisions; they never mutate the
// session itself.
type SessionView struct {
	CurrentGoal     string           `json:"current_goal,omitempty"`
	ExpectedService string           `json:"expected_service,omitempty"`
	LastRiskLevel   RiskLevel        `json:"last_risk_level"`
	LastURL         string           `json:"last_url"`
	ActionHistory   []string         `json:"action_history,omitempty"`
	LastObservation *PageObservation `json:"last_page_observation,omitempty"`
}
