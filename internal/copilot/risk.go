// File: internal/copilot/risk.go
package copilot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/guidelight-ai/guidelight/api/schemas"
)

// RiskPipeline runs the two-phase risk assessment for one executed step:
// a fast synchronous pass whose verdict is emitted immediately, then a
// deep pass and a domain verification in parallel, merged with the
// mismatch-override rules. The fast risk update is always delivered
// before the deep one.
type RiskPipeline struct {
	oracle   schemas.RiskOracle
	verifier schemas.DomainVerifier
	logger   *zap.Logger
}

// NewRiskPipeline wires the oracle and the (optional) domain verifier.
func NewRiskPipeline(oracle schemas.RiskOracle, verifier schemas.DomainVerifier, logger *zap.Logger) *RiskPipeline {
	return &RiskPipeline{
		oracle:   oracle,
		verifier: verifier,
		logger:   logger.Named("risk"),
	}
}

// Assess produces the final merged assessment for a step, emitting the
// fast verdict and, if the merged deep verdict differs, an update.
func (p *RiskPipeline) Assess(
	ctx context.Context,
	transcript string,
	plan schemas.Plan,
	obs schemas.PageObservation,
	view schemas.SessionView,
	emit EmitFunc,
) schemas.RiskAssessment {
	fast := p.oracle.Fast(ctx, transcript, obs)
	emitSafe(emit, schemas.RiskEvent(fast.Level, map[string]any{"phase": "fast"}))
	emitSafe(emit, schemas.StatusEvent("Initial risk assessment complete.", map[string]any{
		"risk_level":         string(fast.Level),
		"risk_reasons":       fast.Reasons,
		"recommended_action": string(fast.RecommendedAction),
	}))

	var (
		deep  schemas.RiskAssessment
		check schemas.DomainCheck
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deep = p.oracle.Deep(gctx, transcript, obs)
		return nil
	})

	service := resolveServiceName(plan, view, obs, transcript)
	if p.verifier != nil && service != "" {
		g.Go(func() error {
			check = p.verifier.Check(gctx, service, obs.CurrentURL)
			return nil
		})
	}

	// Collaborators are no-throw; Wait only observes group cancellation.
	_ = g.Wait()
	if ctx.Err() != nil {
		// Superseded mid-assessment; the fast verdict stands unreported.
		return fast
	}

	merged := applyDomainOverride(deep, check)

	if merged.Level != fast.Level ||
		merged.RecommendedAction != fast.RecommendedAction ||
		merged.RequiresConfirmation != fast.RequiresConfirmation {
		emitSafe(emit, schemas.RiskEvent(merged.Level, map[string]any{"phase": "deep"}))
		emitSafe(emit, schemas.StatusEvent("Risk assessment updated.", map[string]any{
			"risk_level":         string(merged.Level),
			"risk_reasons":       merged.Reasons,
			"recommended_action": string(merged.RecommendedAction),
		}))
		if merged.Level.Severity() > fast.Level.Severity() && merged.Level == schemas.RiskDanger {
			emitSafe(emit, schemas.VoiceEvent("alert", "Hold on, I've found new warning signs on this page."))
		}
	}

	return merged
}

// applyDomainOverride forces the merged result to DANGER/block when the
// verifier found a mismatch. A successful match or a skipped check
// leaves the deep assessment unchanged; the override only ever
// escalates, never de-escalates the deep verdict's own severity.
func applyDomainOverride(deep schemas.RiskAssessment, check schemas.DomainCheck) schemas.RiskAssessment {
	if !check.Checked || check.Match {
		return deep
	}

	merged := deep
	merged.Level = schemas.RiskDanger
	merged.RecommendedAction = schemas.RecommendBlock
	merged.Reasons = append(append([]string(nil), deep.Reasons...),
		fmt.Sprintf("Domain mismatch: currently on %s but %s is verified at %s.",
			check.CurrentDomain, check.ServiceName, check.VerifiedDomain))
	merged.VoiceMessage = fmt.Sprintf(
		"Warning. This page is on %s, but the official site for %s is %s. "+
			"This looks like an impostor site, so I'm stopping here.",
		check.CurrentDomain, check.ServiceName, check.VerifiedDomain)
	// A confirmation is meaningless once blocked.
	merged.RequiresConfirmation = false
	merged.ConfirmationPhrase = ""
	return merged
}

// serviceKeywords maps transcript fragments to canonical service names,
// the heuristic of last resort for domain verification.
var serviceKeywords = []struct {
	fragment string
	service  string
}{
	{"pg&e", "PG&E"},
	{"pge", "PG&E"},
	{"pacific gas", "PG&E"},
	{"electric bill", "PG&E"},
	{"gmail", "Gmail"},
	{"google", "Google"},
	{"amazon", "Amazon"},
	{"netflix", "Netflix"},
	{"comcast", "Xfinity"},
	{"xfinity", "Xfinity"},
}

// resolveServiceName picks the service to verify: the plan's explicit
// field, then the session's remembered service, then the page's payee,
// then transcript keywords.
func resolveServiceName(plan schemas.Plan, view schemas.SessionView, obs schemas.PageObservation, transcript string) string {
	if plan.ServiceName != "" {
		return plan.ServiceName
	}
	if view.ExpectedService != "" {
		return view.ExpectedService
	}
	if obs.PayeeEntity != "" {
		return obs.PayeeEntity
	}
	lowered := strings.ToLower(transcript)
	for _, sk := range serviceKeywords {
		if strings.Contains(lowered, sk.fragment) {
			return sk.service
		}
	}
	return ""
}
