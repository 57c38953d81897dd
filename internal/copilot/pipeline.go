// File: internal/copilot/pipeline.go
package copilot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/guidelight-ai/guidelight/api/schemas"
)

// StepOutcome carries everything a finished step wants committed to
// session state. The pipeline emits events but never mutates the
// session; the orchestrator alone commits the outcome.
type StepOutcome struct {
	Executed        bool
	Result          schemas.ExecutionResult
	Observation     *schemas.PageObservation
	FinalAssessment *schemas.RiskAssessment
	// ArmPhrase, when non-empty, asks the orchestrator to put the session
	// into AWAITING_CONFIRMATION so the next plan is gated. It never
	// affects the step that produced it.
	ArmPhrase string
	EndTurn   bool
}

// ExecPipeline executes one gated plan against the browser collaborator
// with a non-cancelling heartbeat, captures a page observation, and runs
// the risk pipeline on it.
type ExecPipeline struct {
	browser   schemas.BrowserExecutor
	risk      *RiskPipeline
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewExecPipeline wires the browser collaborator and the risk pipeline.
func NewExecPipeline(browser schemas.BrowserExecutor, risk *RiskPipeline, heartbeat time.Duration, logger *zap.Logger) *ExecPipeline {
	if heartbeat <= 0 {
		heartbeat = 2500 * time.Millisecond
	}
	return &ExecPipeline{
		browser:   browser,
		risk:      risk,
		heartbeat: heartbeat,
		logger:    logger.Named("executor"),
	}
}

// ExecuteStep runs one plan through dispatch, observation capture, risk
// assessment and final policy. The only error it returns is context
// cancellation (turn supersede); everything else is absorbed into the
// outcome and its events.
func (p *ExecPipeline) ExecuteStep(
	ctx context.Context,
	plan schemas.Plan,
	transcript string,
	view schemas.SessionView,
	emit EmitFunc,
) (StepOutcome, error) {
	emitSafe(emit, schemas.StatusEvent(
		fmt.Sprintf("Action: %s (%s)", plan.Kind, plan.Reason),
		p.browser.RuntimeInfo(),
	))

	if plan.Kind == schemas.ActionStop {
		emitSafe(emit, schemas.ResponseEvent("Stopping now."))
		return StepOutcome{EndTurn: true}, nil
	}

	result, err := p.dispatch(ctx, plan, emit)
	if err != nil {
		return StepOutcome{}, err
	}

	outcome := StepOutcome{Executed: true, Result: result}

	if result.CurrentURL != "" {
		emitSafe(emit, schemas.BrowserEvent(result.CurrentURL))
	}

	// The observation is captured regardless of execution success so the
	// risk assessment is always grounded in the page we actually ended on.
	obs := p.browser.CaptureObservation(ctx)
	outcome.Observation = &obs
	if err := ctx.Err(); err != nil {
		return StepOutcome{}, err
	}

	assessment := p.risk.Assess(ctx, transcript, plan, obs, view, emit)
	// A block verdict always records DANGER, whatever level the oracle
	// paired with it.
	if assessment.RecommendedAction == schemas.RecommendBlock && assessment.Level != schemas.RiskDanger {
		assessment.Level = schemas.RiskDanger
		emitSafe(emit, schemas.RiskEvent(schemas.RiskDanger, nil))
	}
	outcome.FinalAssessment = &assessment
	if err := ctx.Err(); err != nil {
		return StepOutcome{}, err
	}

	if !result.Success {
		// Execution failure ends the step, not the session; risk events
		// above were already delivered independently.
		emitSafe(emit, schemas.ResponseEvent(result.Message))
		return outcome, nil
	}

	emitSafe(emit, schemas.ResponseEvent(joinVoice(assessment.VoiceMessage, result.Message)))

	if result.ExtractedData != nil {
		emitSafe(emit, schemas.StatusEvent("Extracted page data.", map[string]any{
			"extracted_data": result.ExtractedData,
		}))
	}

	// Final policy from the merged assessment.
	if assessment.RecommendedAction == schemas.RecommendBlock {
		emitSafe(emit, schemas.ResponseEvent("For your safety I'm not going any further on this page."))
		outcome.EndTurn = true
	} else if assessment.RequiresConfirmation {
		phrase := assessment.ConfirmationPhrase
		if phrase == "" {
			phrase = "yes, proceed safely"
		}
		outcome.ArmPhrase = phrase
		emitSafe(emit, schemas.ResponseEvent(fmt.Sprintf(
			"Before I take any further action here, please say exactly: '%s'.", phrase)))
	}

	return outcome, nil
}

// dispatch runs the browser call as an independent unit of work and
// waits on it with a heartbeat: each tick emits a non-terminal progress
// status (and periodically a spoken acknowledgment) without cancelling
// the underlying call. Only ctx cancellation, i.e. a turn supersede,
// stops the call itself.
func (p *ExecPipeline) dispatch(ctx context.Context, plan schemas.Plan, emit EmitFunc) (schemas.ExecutionResult, error) {
	resCh := make(chan schemas.ExecutionResult, 1)
	go func() {
		switch plan.Kind {
		case schemas.ActionNavigate:
			resCh <- p.browser.Navigate(ctx, plan.URL)
		case schemas.ActionAct:
			resCh <- p.browser.Act(ctx, plan.Instruction)
		case schemas.ActionExtract:
			resCh <- p.browser.Extract(ctx, plan.Instruction)
		default:
			// Stop and noop are handled before dispatch.
			resCh <- schemas.ExecutionResult{Success: true, Message: "No operation."}
		}
	}()

	ticker := time.NewTicker(p.heartbeat)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case result := <-resCh:
			return result, nil
		case <-ticker.C:
			tick++
			emitSafe(emit, schemas.StatusEvent("Still working on it...", map[string]any{
				"heartbeat": tick,
				"action":    string(plan.Kind),
			}))
			if tick%2 == 1 {
				emitSafe(emit, schemas.VoiceEvent("working", "Still working on it, one moment."))
			}
		case <-ctx.Done():
			return schemas.ExecutionResult{}, ctx.Err()
		}
	}
}

func joinVoice(voice, execMessage string) string {
	switch {
	case voice == "":
		return execMessage
	case execMessage == "":
		return voice
	default:
		return voice + " " + execMessage
	}
}
