// File: internal/copilot/orchestrator.go
// Description: Drives the bounded plan/gate/execute/risk loop for one
// user utterance and owns all session-state mutation. A new transcript
// supersedes any in-flight turn; the superseded turn is cancelled and
// awaited before the new one touches state, so readers only ever see
// pre- or post-turn state.
package copilot

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/config"
)

// Orchestrator coordinates the planner, safety gate, execution pipeline
// and confirmation machine for one session. It is the session's single
// writer.
type Orchestrator struct {
	cfg      config.SafetyConfig
	logger   *zap.Logger
	sess     *Session
	planner  schemas.Planner
	gate     *Gate
	pipeline *ExecPipeline
	browser  schemas.BrowserExecutor

	mu         sync.Mutex
	cancelTurn context.CancelFunc
	turnDone   chan struct{}
}

// NewOrchestrator assembles the turn orchestrator for a session.
func NewOrchestrator(
	cfg config.SafetyConfig,
	logger *zap.Logger,
	sess *Session,
	planner schemas.Planner,
	gate *Gate,
	pipeline *ExecPipeline,
	browser schemas.BrowserExecutor,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger.Named("orchestrator").With(zap.String("session_id", sess.ID())),
		sess:     sess,
		planner:  planner,
		gate:     gate,
		pipeline: pipeline,
		browser:  browser,
	}
}

// Session exposes the session for read-only inspection by the transport
// (runtime info). Mutation remains orchestrator-only.
func (o *Orchestrator) Session() *Session { return o.sess }

// TurnSummary is the end-of-turn snapshot HandleTranscript hands back to
// the transport. It is captured while the turn still owns the session,
// so callers may read it after a later turn has taken over.
type TurnSummary struct {
	View                 schemas.SessionView
	AwaitingConfirmation bool
}

// HandleTranscript processes one utterance. If a turn is already in
// flight it is cancelled and awaited to completion first, so no two
// turns ever interleave events or state mutation. The returned error is
// only ever the new turn's own cancellation.
func (o *Orchestrator) HandleTranscript(ctx context.Context, transcript string, emit EmitFunc) (TurnSummary, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return TurnSummary{}, nil
	}

	turnCtx, finish := o.beginTurn(ctx)
	defer finish()

	if err := turnCtx.Err(); err != nil {
		return o.summarize(), err
	}

	var err error
	if o.sess.PendingConfirmation() {
		err = o.resolveConfirmation(turnCtx, transcript, emit)
	} else {
		err = o.runTurn(turnCtx, transcript, emit)
	}
	// Snapshot before the deferred finish releases ownership; a
	// superseding turn may mutate the session the moment it does.
	return o.summarize(), err
}

// summarize captures the session state while the turn still owns it.
func (o *Orchestrator) summarize() TurnSummary {
	return TurnSummary{
		View:                 o.sess.View(),
		AwaitingConfirmation: o.sess.PendingConfirmation(),
	}
}

// beginTurn supersedes any in-flight turn: cancel it, wait for it to
// finish unwinding, then register this turn as the active one.
func (o *Orchestrator) beginTurn(ctx context.Context) (context.Context, func()) {
	for {
		o.mu.Lock()
		prevCancel, prevDone := o.cancelTurn, o.turnDone
		if prevDone == nil {
			break
		}
		o.mu.Unlock()
		prevCancel()
		<-prevDone
	}

	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.cancelTurn = cancel
	o.turnDone = done
	o.mu.Unlock()

	finish := func() {
		o.mu.Lock()
		if o.turnDone == done {
			o.cancelTurn = nil
			o.turnDone = nil
		}
		o.mu.Unlock()
		cancel()
		close(done)
	}
	return turnCtx, finish
}

// resolveConfirmation consumes a transcript while a risky plan is
// pending. The pending plan can only execute through a matched
// affirmation here.
func (o *Orchestrator) resolveConfirmation(ctx context.Context, transcript string, emit EmitFunc) error {
	verdict := ClassifyConfirmation(transcript, o.sess.PendingPhrase(), o.cfg.StrictConfirmation)

	switch verdict {
	case VerdictNegated:
		o.sess.ClearConfirmation()
		o.sess.SetRiskLevel(schemas.RiskSafe)
		emitSafe(emit, schemas.ResponseEvent("Okay, I've cancelled that. Nothing was submitted."))
		emitSafe(emit, schemas.RiskEvent(schemas.RiskSafe, nil))
		o.logger.Info("Pending plan cancelled by user")
		return nil

	case VerdictAffirmed:
		pending, ok := o.sess.ClearConfirmation()
		emitSafe(emit, schemas.ResponseEvent("Confirmation received. Continuing safely."))
		if !ok || pending.Kind == schemas.ActionNoop {
			// Risk-armed confirmations carry no executable plan; the user
			// has simply unlocked further automated action.
			emitSafe(emit, schemas.RiskEvent(schemas.RiskSafe, nil))
			o.sess.SetRiskLevel(schemas.RiskSafe)
			return nil
		}
		o.logger.Info("Pending plan confirmed, executing", zap.String("action", string(pending.Kind)))
		outcome, err := o.pipeline.ExecuteStep(ctx, pending, o.sess.CurrentGoal(), o.sess.View(), emit)
		if err != nil {
			return err
		}
		o.commitOutcome(outcome)
		return nil

	default:
		emitSafe(emit, schemas.ResponseEvent(
			"Please say exactly: '"+o.sess.PendingPhrase()+"'."))
		return nil
	}
}

// runTurn executes the bounded step loop for a fresh goal.
func (o *Orchestrator) runTurn(ctx context.Context, transcript string, emit EmitFunc) error {
	o.sess.BeginTurn(transcript)
	o.logger.Info("Turn started", zap.String("goal", transcript))

	for step := 0; step < o.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		plan := o.planner.Plan(ctx, o.sess.CurrentGoal(), o.sess.View())
		if err := ctx.Err(); err != nil {
			return err
		}
		plan = Normalize(plan)

		sig := plan.Signature()
		if o.sess.RepeatsRecent(sig) {
			o.logger.Warn("Repetition detected, aborting turn", zap.String("signature", sig))
			emitSafe(emit, schemas.ResponseEvent(
				"I appear to be repeating steps, so I'm stopping here. Tell me how you'd like to continue."))
			return nil
		}

		if plan.Kind == schemas.ActionNoop {
			if step == 0 {
				emitSafe(emit, schemas.ResponseEvent("How would you like me to proceed?"))
			}
			return nil
		}

		o.sess.SetExpectedService(plan.ServiceName)

		decision := o.gate.Evaluate(ctx, plan, transcript, o.paymentReadback)
		if err := ctx.Err(); err != nil {
			return err
		}

		switch decision.Kind {
		case GateBlock:
			o.sess.SetRiskLevel(decision.RiskLevel)
			emitSafe(emit, schemas.RiskEvent(decision.RiskLevel, nil))
			emitSafe(emit, schemas.ResponseEvent(decision.Message))
			o.logger.Warn("Gate blocked plan", zap.String("action", string(plan.Kind)))
			return nil

		case GateRequireConfirmation:
			o.sess.ArmConfirmation(decision.PendingPlan, decision.Phrase)
			o.sess.SetRiskLevel(decision.RiskLevel)
			emitSafe(emit, schemas.RiskEvent(decision.RiskLevel, nil))
			emitSafe(emit, schemas.ResponseEvent(decision.Message))
			o.logger.Info("Gate requires confirmation", zap.String("phrase", decision.Phrase))
			return nil
		}

		outcome, err := o.pipeline.ExecuteStep(ctx, plan, transcript, o.sess.View(), emit)
		if err != nil {
			return err
		}
		o.sess.RecordSignature(sig)
		o.commitOutcome(outcome)

		// Termination checks after each executed step.
		if o.sess.PendingConfirmation() {
			return nil
		}
		if plan.Kind == schemas.ActionStop || plan.Kind == schemas.ActionExtract {
			return nil
		}
		if o.sess.LastRiskLevel() == schemas.RiskDanger {
			// A block verdict already narrated its own refusal; any other
			// path to DANGER still owes the user a closing safety message.
			if outcome.FinalAssessment == nil || outcome.FinalAssessment.RecommendedAction != schemas.RecommendBlock {
				emitSafe(emit, schemas.ResponseEvent(
					"I've found serious warning signs here, so I'm stopping for your safety."))
			}
			return nil
		}
		if outcome.EndTurn {
			return nil
		}
	}

	// Out of steps: guaranteed termination, no explicit event required.
	o.logger.Debug("Turn exhausted max steps")
	return nil
}

// paymentReadback pulls the visible amount and payee from the current
// page so confirmation phrases can name what is actually being paid.
func (o *Orchestrator) paymentReadback(ctx context.Context) schemas.PaymentReadback {
	if o.browser == nil {
		return schemas.PaymentReadback{}
	}
	return o.browser.ExtractPaymentReadback(ctx)
}

// commitOutcome is the single place where a step's results are written
// into session state.
func (o *Orchestrator) commitOutcome(outcome StepOutcome) {
	if outcome.Result.CurrentURL != "" {
		o.sess.SetLastURL(outcome.Result.CurrentURL)
	}
	if outcome.Observation != nil {
		o.sess.SetObservation(*outcome.Observation)
	}
	if outcome.FinalAssessment != nil {
		o.sess.SetRiskLevel(outcome.FinalAssessment.Level)
	}
	if outcome.ArmPhrase != "" && !o.sess.PendingConfirmation() {
		// The deep pass asked for confirmation of further action, not of
		// the already-delivered step: arm the machine with a noop so the
		// next plan is gated without re-executing anything on "yes".
		o.sess.ArmConfirmation(schemas.Plan{
			Kind:   schemas.ActionNoop,
			Reason: "Risk assessment requested confirmation before further action.",
		}, outcome.ArmPhrase)
	}
}
