// File: internal/brain/risk_oracle.go
// Description: Two-tier risk oracle. The fast pass is bounded by a
// short timeout so the first risk update reaches the user promptly; the
// deep pass gets the powerful model and a generous budget. Both share
// the planner's no-throw contract and degrade to page heuristics.
package brain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/config"
)

// RiskOracle classifies the current page against the user's request.
type RiskOracle struct {
	llm    schemas.LLMClient
	cfg    config.LLMConfig
	logger *zap.Logger
}

// NewRiskOracle builds the oracle. A nil llm selects heuristic-only mode.
func NewRiskOracle(llm schemas.LLMClient, cfg config.LLMConfig, logger *zap.Logger) *RiskOracle {
	return &RiskOracle{
		llm:    llm,
		cfg:    cfg,
		logger: logger.Named("risk_oracle"),
	}
}

// Fast is the low-latency triage pass.
func (o *RiskOracle) Fast(ctx context.Context, transcript string, obs schemas.PageObservation) schemas.RiskAssessment {
	return o.assess(ctx, transcript, obs, schemas.TierFast, fastRiskSystemPrompt, o.cfg.FastRiskTimeout, false)
}

// Deep is the thorough pass run after the fast verdict is delivered.
func (o *RiskOracle) Deep(ctx context.Context, transcript string, obs schemas.PageObservation) schemas.RiskAssessment {
	return o.assess(ctx, transcript, obs, schemas.TierPowerful, deepRiskSystemPrompt, o.cfg.DeepRiskTimeout, true)
}

func (o *RiskOracle) assess(
	ctx context.Context,
	transcript string,
	obs schemas.PageObservation,
	tier schemas.ModelTier,
	systemPrompt string,
	timeout time.Duration,
	deep bool,
) schemas.RiskAssessment {
	if o.llm == nil {
		return heuristicRisk(transcript, obs, deep)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw, err := o.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt:    systemPrompt,
		UserPrompt:      riskUserPrompt(transcript, obs, deep),
		Tier:            tier,
		ForceJSONFormat: true,
	})
	if err != nil {
		o.logger.Warn("Risk model call failed, using heuristics",
			zap.String("tier", string(tier)), zap.Error(err))
		return heuristicRisk(transcript, obs, deep)
	}

	assessment, err := parseAssessment(raw)
	if err != nil {
		o.logger.Warn("Risk response unparseable, using heuristics",
			zap.String("tier", string(tier)), zap.Error(err))
		return heuristicRisk(transcript, obs, deep)
	}
	return assessment
}

func riskUserPrompt(transcript string, obs schemas.PageObservation, deep bool) string {
	snapshot := obs
	if !deep {
		// The fast pass gets a trimmed snapshot to keep latency down.
		snapshot.DOMExcerpt = ""
		snapshot.ScreenshotB64 = ""
	}
	page, _ := json.MarshalToString(snapshot)
	return fmt.Sprintf("User request: %q\n\nCurrent page:\n%s", transcript, page)
}

// parseAssessment extracts and validates a risk verdict from the model.
func parseAssessment(raw string) (schemas.RiskAssessment, error) {
	body, err := extractJSONObject(raw)
	if err != nil {
		return schemas.RiskAssessment{}, err
	}
	var a schemas.RiskAssessment
	if err := json.UnmarshalFromString(body, &a); err != nil {
		return schemas.RiskAssessment{}, fmt.Errorf("decoding assessment: %w", err)
	}
	if a.Level.Severity() == 0 {
		return schemas.RiskAssessment{}, fmt.Errorf("unknown risk_level %q", a.Level)
	}
	switch a.RecommendedAction {
	case schemas.RecommendProceed, schemas.RecommendWarn, schemas.RecommendBlock:
	case "":
		a.RecommendedAction = schemas.RecommendProceed
	default:
		return schemas.RiskAssessment{}, fmt.Errorf("unknown recommended_action %q", a.RecommendedAction)
	}
	return a, nil
}

// sensitiveFieldFragments flag form fields that collect payment or
// identity credentials.
var sensitiveFieldFragments = []string{
	"card", "cvv", "cvc", "account", "routing", "ssn", "social security",
}

// heuristicRisk is the deterministic classifier used when no model is
// available. Rules are ordered from most to least severe; the first
// match wins.
func heuristicRisk(transcript string, obs schemas.PageObservation, deep bool) schemas.RiskAssessment {
	if len(obs.UrgencySignals) > 0 {
		return schemas.RiskAssessment{
			Level:             schemas.RiskDanger,
			Reasons:           append([]string{"Pressure tactics detected on page"}, obs.UrgencySignals...),
			RecommendedAction: schemas.RecommendBlock,
			VoiceMessage: "This page is using pressure tactics like countdowns or threats. " +
				"Legitimate companies don't do that, so I'm stopping here.",
		}
	}

	if paymentSurface(obs) {
		voice := "This page is asking for payment details, so I need your explicit go-ahead before anything is entered or submitted."
		if deep && obs.PaymentAmount != "" {
			if obs.PayeeEntity != "" {
				voice = fmt.Sprintf("This page shows a payment of %s to %s. I won't touch it without your explicit go-ahead.",
					obs.PaymentAmount, obs.PayeeEntity)
			} else {
				voice = fmt.Sprintf("This page shows a payment of %s. I won't touch it without your explicit go-ahead.",
					obs.PaymentAmount)
			}
		}
		return schemas.RiskAssessment{
			Level:                schemas.RiskHighRisk,
			Reasons:              []string{"Payment surface detected on page"},
			RecommendedAction:    schemas.RecommendWarn,
			VoiceMessage:         voice,
			RequiresConfirmation: true,
		}
	}

	lowered := strings.ToLower(transcript)
	if containsAny(lowered, "pay", "payment", "bill", "card", "checkout") {
		return schemas.RiskAssessment{
			Level:             schemas.RiskCaution,
			Reasons:           []string{"Payment intent in request"},
			RecommendedAction: schemas.RecommendWarn,
			VoiceMessage:      "I'll be extra careful since this involves a payment.",
		}
	}

	if len(obs.FormFields) > 0 {
		return schemas.RiskAssessment{
			Level:             schemas.RiskCaution,
			Reasons:           []string{"Page contains input forms"},
			RecommendedAction: schemas.RecommendProceed,
			VoiceMessage:      "There's a form on this page. I won't enter anything without telling you first.",
		}
	}

	return schemas.RiskAssessment{
		Level:             schemas.RiskSafe,
		Reasons:           []string{"No risk signals detected"},
		RecommendedAction: schemas.RecommendProceed,
	}
}

// paymentSurface reports whether the page is visibly collecting payment
// or identity credentials.
func paymentSurface(obs schemas.PageObservation) bool {
	if obs.PaymentAmount != "" {
		return true
	}
	for _, field := range obs.FormFields {
		lowered := strings.ToLower(field)
		for _, frag := range sensitiveFieldFragments {
			if strings.Contains(lowered, frag) {
				return true
			}
		}
	}
	return false
}
