// File: internal/brain/planner.go
// Description: LLM-backed next-action planner with a deterministic
// heuristic fallback. The planner never returns an error: a failed or
// malformed model response degrades to the fallback plan so a turn can
// always make progress (or cleanly noop).
package brain

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Planner decides the next browser action for the current goal.
type Planner struct {
	llm    schemas.LLMClient
	cfg    config.LLMConfig
	logger *zap.Logger
}

// NewPlanner builds the planner. A nil llm selects heuristic-only mode.
func NewPlanner(llm schemas.LLMClient, cfg config.LLMConfig, logger *zap.Logger) *Planner {
	return &Planner{
		llm:    llm,
		cfg:    cfg,
		logger: logger.Named("planner"),
	}
}

// Plan produces the next action. It honors the no-throw contract: every
// failure path lands in the heuristic fallback.
func (p *Planner) Plan(ctx context.Context, goal string, view schemas.SessionView) schemas.Plan {
	if p.llm == nil {
		return p.fallbackPlan(goal, view)
	}

	timeout := p.cfg.PlanTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw, err := p.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt:    plannerSystemPrompt,
		UserPrompt:      planUserPrompt(goal, view),
		Tier:            schemas.TierPowerful,
		ForceJSONFormat: true,
	})
	if err != nil {
		p.logger.Warn("Planner model call failed, using fallback", zap.Error(err))
		return p.fallbackPlan(goal, view)
	}

	plan, err := parsePlan(raw)
	if err != nil {
		p.logger.Warn("Planner response unparseable, using fallback", zap.Error(err))
		return p.fallbackPlan(goal, view)
	}
	return plan
}

// planUserPrompt renders the goal and session snapshot for the model.
func planUserPrompt(goal string, view schemas.SessionView) string {
	state, _ := json.MarshalToString(view)
	return fmt.Sprintf("User request: %q\n\nSession state:\n%s\n\nDecide the single next action.", goal, state)
}

// parsePlan extracts and validates the plan object from a model reply.
func parsePlan(raw string) (schemas.Plan, error) {
	body, err := extractJSONObject(raw)
	if err != nil {
		return schemas.Plan{}, err
	}
	var plan schemas.Plan
	if err := json.UnmarshalFromString(body, &plan); err != nil {
		return schemas.Plan{}, fmt.Errorf("decoding plan: %w", err)
	}
	switch plan.Kind {
	case schemas.ActionNavigate, schemas.ActionAct, schemas.ActionExtract,
		schemas.ActionStop, schemas.ActionNoop:
	default:
		return schemas.Plan{}, fmt.Errorf("unknown action_type %q", plan.Kind)
	}
	if plan.Reason == "" {
		plan.Reason = "Planned next step."
	}
	return plan, nil
}

// fallbackPlan is the deterministic planner used when no model is
// configured or the model fails. It covers the handful of requests the
// product must never be unable to act on.
func (p *Planner) fallbackPlan(goal string, view schemas.SessionView) schemas.Plan {
	lowered := strings.ToLower(goal)

	if containsAny(lowered, "stop", "cancel that", "never mind", "nevermind") {
		return schemas.Plan{Kind: schemas.ActionStop, Reason: "User asked to stop."}
	}
	if containsAny(lowered, "done", "finished", "that's all") && len(view.ActionHistory) > 0 {
		return schemas.Plan{Kind: schemas.ActionStop, Reason: "Request appears complete."}
	}

	if containsAny(lowered, "pg&e", "pge", "pacific gas", "electric bill") {
		if strings.Contains(view.LastURL, "pge.com") {
			return schemas.Plan{
				Kind:        schemas.ActionExtract,
				Reason:      "Already on the PG&E site, reading the bill details.",
				Instruction: "Find the current bill amount and its due date.",
				ServiceName: "PG&E",
			}
		}
		return schemas.Plan{
			Kind:        schemas.ActionNavigate,
			Reason:      "Opening the official PG&E website.",
			URL:         "https://www.pge.com",
			ServiceName: "PG&E",
		}
	}

	if strings.Contains(lowered, "google") {
		return schemas.Plan{
			Kind:        schemas.ActionNavigate,
			Reason:      "Opening Google as requested.",
			URL:         "https://www.google.com",
			ServiceName: "Google",
		}
	}

	if containsAny(lowered, "pay", "payment") {
		if view.LastURL != "" && view.LastURL != "about:blank" {
			return schemas.Plan{
				Kind:                 schemas.ActionAct,
				Reason:               "Opening the bill payment section on the current site.",
				Instruction:          "Find and open the bill payment section.",
				RequiresConfirmation: true,
			}
		}
		return schemas.Plan{
			Kind:   schemas.ActionNoop,
			Reason: "A payment was requested but no biller was named.",
		}
	}

	return schemas.Plan{
		Kind:   schemas.ActionNoop,
		Reason: "Could not map the request to a browser action.",
	}
}

func containsAny(text string, fragments ...string) bool {
	for _, f := range fragments {
		if strings.Contains(text, f) {
			return true
		}
	}
	return false
}

// extractJSONObject tolerates markdown fences and surrounding prose by
// slicing from the first '{' to the last '}'.
func extractJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model response")
	}
	return raw[start : end+1], nil
}
