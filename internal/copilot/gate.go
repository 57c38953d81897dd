// File: internal/copilot/gate.go
package copilot

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/config"
)

// GateDecisionKind enumerates the safety gate's possible verdicts.
type GateDecisionKind int

const (
	GatePassThrough GateDecisionKind = iota
	GateBlock
	GateRequireConfirmation
)

// GateDecision is the gate's verdict plus everything the orchestrator
// needs to commit it: the user-facing message, the risk level to record,
// and (for confirmations) the phrase and the de-escalated pending plan.
// The gate itself never touches session state.
type GateDecision struct {
	Kind        GateDecisionKind
	Message     string
	Phrase      string
	PendingPlan schemas.Plan
	RiskLevel   schemas.RiskLevel
}

// ReadbackFunc fetches the payment amount and payee from the current
// page, used to build an informed confirmation phrase. May be nil.
type ReadbackFunc func(ctx context.Context) schemas.PaymentReadback

var (
	paymentIntentKeywords = []string{"pay", "payment", "bill", "card", "checkout"}
	submissionKeywords    = []string{
		"submit", "place order", "pay now",
		"confirm payment", "complete payment", "finish payment",
	}
)

// Gate decides whether a plan may execute, must be blocked, or requires
// explicit confirmation. Evaluate is side-effect free apart from the
// optional readback collaborator call.
type Gate struct {
	allowedDomains []string
	defaultPhrase  string
	logger         *zap.Logger
}

// NewGate builds the gate from safety configuration.
func NewGate(cfg config.SafetyConfig, logger *zap.Logger) *Gate {
	allowed := make([]string, 0, len(cfg.SafePaymentDomains))
	for _, d := range cfg.SafePaymentDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			allowed = append(allowed, d)
		}
	}
	phrase := cfg.DefaultConfirmationPhrase
	if phrase == "" {
		phrase = "yes, proceed safely"
	}
	return &Gate{
		allowedDomains: allowed,
		defaultPhrase:  phrase,
		logger:         logger.Named("gate"),
	}
}

// Evaluate applies the gate rules in order: payment-domain allowlist,
// submission-keyword detection, declared confirmation, pass-through.
func (g *Gate) Evaluate(ctx context.Context, plan schemas.Plan, transcript string, readback ReadbackFunc) GateDecision {
	paymentIntent := hasPaymentIntent(transcript)

	// Rule 1: payment-intent navigation outside the allowlist is blocked.
	if paymentIntent && plan.Kind == schemas.ActionNavigate && len(g.allowedDomains) > 0 {
		host := hostOf(plan.URL)
		if host != "" && !g.hostAllowed(host) {
			g.logger.Warn("Blocked navigation outside payment allowlist",
				zap.String("host", host), zap.Strings("allowed", g.allowedDomains))
			return GateDecision{
				Kind:      GateBlock,
				RiskLevel: schemas.RiskDanger,
				Message: fmt.Sprintf(
					"I blocked navigation to %s because it is not in the approved payment domain list. "+
						"Please name a trusted domain instead.", host),
			}
		}
	}

	// Rule 2: submission keywords force confirmation regardless of the
	// plan's own flag.
	forceConfirm := false
	if plan.Kind == schemas.ActionAct && plan.Instruction != "" {
		lowered := strings.ToLower(plan.Instruction)
		for _, kw := range submissionKeywords {
			if strings.Contains(lowered, kw) {
				forceConfirm = true
				break
			}
		}
	}

	// Rule 3: declared or forced confirmation.
	if plan.RequiresConfirmation || forceConfirm {
		phrase := plan.ConfirmationPhrase
		if phrase == "" {
			phrase = g.defaultPhrase
		}

		prefix := ""
		if readback != nil {
			if rb := readback(ctx); rb.Amount != "" {
				if rb.Payee != "" {
					prefix = fmt.Sprintf("This page shows a payment of %s to %s. ", rb.Amount, rb.Payee)
					phrase = fmt.Sprintf("yes, pay %s to %s", rb.Amount, rb.Payee)
				} else {
					prefix = fmt.Sprintf("This page shows a payment of %s. ", rb.Amount)
					phrase = fmt.Sprintf("yes, pay %s", rb.Amount)
				}
			}
		}

		return GateDecision{
			Kind:        GateRequireConfirmation,
			RiskLevel:   schemas.RiskHighRisk,
			Phrase:      phrase,
			PendingPlan: plan.WithoutConfirmation(),
			Message: prefix + fmt.Sprintf(
				"Safety check required before any risky step. Please say exactly: '%s'.", phrase),
		}
	}

	return GateDecision{Kind: GatePassThrough}
}

// hasPaymentIntent reports whether the transcript signals a payment.
func hasPaymentIntent(transcript string) bool {
	lowered := strings.ToLower(transcript)
	for _, kw := range paymentIntentKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// hostAllowed accepts an exact allowlist entry or any subdomain of one.
func (g *Gate) hostAllowed(host string) bool {
	for _, d := range g.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
