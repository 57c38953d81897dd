// File: internal/copilot/orchestrator_test.go
package copilot_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/config"
	"github.com/guidelight-ai/guidelight/internal/copilot"
)

type orchestratorFixture struct {
	orch    *copilot.Orchestrator
	sess    *copilot.Session
	planner *MockPlanner
	oracle  *MockRiskOracle
	browser *MockBrowser
	rec     *eventRecorder
}

func newFixture(t *testing.T, mutate func(*config.SafetyConfig)) *orchestratorFixture {
	cfg := config.NewDefaultConfig().Safety
	cfg.HeartbeatInterval = 10 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zaptest.NewLogger(t)
	planner := new(MockPlanner)
	oracle := new(MockRiskOracle)
	browser := new(MockBrowser)

	sess := copilot.NewSession(cfg.MaxActionHistory)
	gate := copilot.NewGate(cfg, logger)
	risk := copilot.NewRiskPipeline(oracle, nil, logger)
	pipeline := copilot.NewExecPipeline(browser, risk, cfg.HeartbeatInterval, logger)
	orch := copilot.NewOrchestrator(cfg, logger, sess, planner, gate, pipeline, browser)

	return &orchestratorFixture{
		orch: orch, sess: sess,
		planner: planner, oracle: oracle, browser: browser,
		rec: &eventRecorder{},
	}
}

// handle runs one transcript to completion and returns its summary.
func (f *orchestratorFixture) handle(t *testing.T, transcript string) copilot.TurnSummary {
	t.Helper()
	summary, err := f.orch.HandleTranscript(context.Background(), transcript, f.rec.emit)
	require.NoError(t, err)
	return summary
}

func (f *orchestratorFixture) stubSafeOracle() {
	f.oracle.On("Fast", mock.Anything, mock.Anything, mock.Anything).Return(safeAssessment())
	f.oracle.On("Deep", mock.Anything, mock.Anything, mock.Anything).Return(safeAssessment())
}

func containsSubstring(texts []string, fragment string) bool {
	for _, s := range texts {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}

func TestOrchestrator_GatedPlanNeverExecutesWithoutAffirmation(t *testing.T) {
	f := newFixture(t, nil)
	f.stubSafeOracle()

	riskyPlan := schemas.Plan{
		Kind:                 schemas.ActionAct,
		Reason:               "Submit the payment form.",
		Instruction:          "click pay now",
		RequiresConfirmation: true,
		ConfirmationPhrase:   "yes, pay my bill",
	}
	f.planner.On("Plan", mock.Anything, "pay my bill", mock.Anything).Return(riskyPlan)
	f.browser.On("ExtractPaymentReadback", mock.Anything).Return(schemas.PaymentReadback{})

	summary := f.handle(t, "pay my bill")

	assert.True(t, f.sess.PendingConfirmation())
	assert.True(t, summary.AwaitingConfirmation)
	assert.Equal(t, "yes, pay my bill", f.sess.PendingPhrase())
	assert.Equal(t, int64(0), f.browser.ActCalls.Load(), "gated plan must not execute")
	assert.Equal(t, schemas.RiskHighRisk, f.sess.LastRiskLevel())

	// Unrecognized speech re-prompts and changes nothing.
	f.handle(t, "what's the weather")
	assert.True(t, f.sess.PendingConfirmation())
	assert.Equal(t, int64(0), f.browser.ActCalls.Load())
	assert.True(t, containsSubstring(f.rec.texts(), "yes, pay my bill"))

	// The matched affirmation executes the retained plan exactly once.
	f.browser.On("Act", mock.Anything, "click pay now").
		Return(schemas.ExecutionResult{Success: true, Message: "Payment submitted.", CurrentURL: "https://www.pge.com/pay"})
	f.browser.On("CaptureObservation", mock.Anything).
		Return(schemas.PageObservation{CurrentURL: "https://www.pge.com/pay"})

	f.handle(t, "yes, pay my bill")
	assert.Equal(t, int64(1), f.browser.ActCalls.Load())
	assert.False(t, f.sess.PendingConfirmation())
}

func TestOrchestrator_NegationCancelsPendingPlan(t *testing.T) {
	f := newFixture(t, nil)
	f.stubSafeOracle()

	riskyPlan := schemas.Plan{
		Kind:                 schemas.ActionAct,
		Reason:               "Submit the form.",
		Instruction:          "click submit",
		RequiresConfirmation: true,
	}
	f.planner.On("Plan", mock.Anything, mock.Anything, mock.Anything).Return(riskyPlan)
	f.browser.On("ExtractPaymentReadback", mock.Anything).Return(schemas.PaymentReadback{})

	f.handle(t, "send the form")
	require.True(t, f.sess.PendingConfirmation())

	summary := f.handle(t, "no, stop")

	assert.False(t, f.sess.PendingConfirmation())
	assert.False(t, summary.AwaitingConfirmation)
	assert.Equal(t, schemas.RiskSafe, f.sess.LastRiskLevel())
	assert.Equal(t, int64(0), f.browser.ActCalls.Load())
	assert.True(t, containsSubstring(f.rec.texts(), "cancelled"))
}

func TestOrchestrator_AllowlistBlockMeansZeroNavigations(t *testing.T) {
	f := newFixture(t, func(cfg *config.SafetyConfig) {
		cfg.SafePaymentDomains = []string{"pge.com"}
	})

	f.planner.On("Plan", mock.Anything, mock.Anything, mock.Anything).Return(schemas.Plan{
		Kind:   schemas.ActionNavigate,
		Reason: "Open the payment site.",
		URL:    "https://pge-billpay-secure.com",
	})

	f.handle(t, "pay my electric bill")

	assert.Equal(t, int64(0), f.browser.NavigateCalls.Load(),
		"a blocked navigation must never reach the browser")
	assert.Equal(t, schemas.RiskDanger, f.sess.LastRiskLevel())

	updates := f.rec.byType(schemas.EventRiskUpdate)
	require.NotEmpty(t, updates)
	assert.Equal(t, schemas.RiskDanger, updates[0].RiskLevel)
	assert.True(t, containsSubstring(f.rec.texts(), "pge-billpay-secure.com"))
}

func TestOrchestrator_BlockRecommendationRecordsDanger(t *testing.T) {
	f := newFixture(t, nil)

	// A valid oracle may pair a block recommendation with a lower level;
	// the recorded session risk must still come out DANGER.
	blockingCaution := schemas.RiskAssessment{
		Level:             schemas.RiskCaution,
		Reasons:           []string{"Lookalike branding on page"},
		RecommendedAction: schemas.RecommendBlock,
	}
	f.oracle.On("Fast", mock.Anything, mock.Anything, mock.Anything).Return(blockingCaution)
	f.oracle.On("Deep", mock.Anything, mock.Anything, mock.Anything).Return(blockingCaution)

	f.planner.On("Plan", mock.Anything, mock.Anything, mock.Anything).Return(schemas.Plan{
		Kind: schemas.ActionNavigate, Reason: "Open the site.", URL: "https://suspicious.example",
	})
	f.browser.On("Navigate", mock.Anything, mock.Anything).
		Return(schemas.ExecutionResult{Success: true, Message: "Opened.", CurrentURL: "https://suspicious.example"})
	f.browser.On("CaptureObservation", mock.Anything).
		Return(schemas.PageObservation{CurrentURL: "https://suspicious.example"})

	summary := f.handle(t, "open that site")

	assert.Equal(t, schemas.RiskDanger, f.sess.LastRiskLevel(),
		"a block verdict must record DANGER regardless of the oracle's level")
	assert.Equal(t, schemas.RiskDanger, summary.View.LastRiskLevel)
	assert.Equal(t, int64(1), f.browser.NavigateCalls.Load(), "the blocked turn must not continue")
}

func TestOrchestrator_DangerVerdictClosesWithSafetyMessage(t *testing.T) {
	f := newFixture(t, nil)

	// DANGER without a block recommendation still ends the turn and must
	// say so out loud.
	dangerWarn := schemas.RiskAssessment{
		Level:             schemas.RiskDanger,
		Reasons:           []string{"Pressure tactics detected on page"},
		RecommendedAction: schemas.RecommendWarn,
	}
	f.oracle.On("Fast", mock.Anything, mock.Anything, mock.Anything).Return(dangerWarn)
	f.oracle.On("Deep", mock.Anything, mock.Anything, mock.Anything).Return(dangerWarn)

	f.planner.On("Plan", mock.Anything, mock.Anything, mock.Anything).Return(schemas.Plan{
		Kind: schemas.ActionNavigate, Reason: "Open the site.", URL: "https://pushy.example",
	})
	f.browser.On("Navigate", mock.Anything, mock.Anything).
		Return(schemas.ExecutionResult{Success: true, Message: "Opened.", CurrentURL: "https://pushy.example"})
	f.browser.On("CaptureObservation", mock.Anything).
		Return(schemas.PageObservation{CurrentURL: "https://pushy.example"})

	f.handle(t, "open that site")

	assert.Equal(t, int64(1), f.browser.NavigateCalls.Load())
	assert.Equal(t, schemas.RiskDanger, f.sess.LastRiskLevel())
	assert.True(t, containsSubstring(f.rec.texts(), "stopping for your safety"))
}

func TestOrchestrator_RepetitionAbortsTurn(t *testing.T) {
	f := newFixture(t, nil)
	f.stubSafeOracle()

	samePlan := schemas.Plan{
		Kind:   schemas.ActionNavigate,
		Reason: "Open the site.",
		URL:    "https://www.pge.com",
	}
	f.planner.On("Plan", mock.Anything, mock.Anything, mock.Anything).Return(samePlan)
	f.browser.On("Navigate", mock.Anything, "https://www.pge.com").
		Return(schemas.ExecutionResult{Success: true, Message: "Opened PG&E.", CurrentURL: "https://www.pge.com"})
	f.browser.On("CaptureObservation", mock.Anything).
		Return(schemas.PageObservation{CurrentURL: "https://www.pge.com"})

	f.handle(t, "open pge")

	assert.Equal(t, int64(1), f.browser.NavigateCalls.Load(),
		"the repeated plan must execute once, then abort")
	assert.True(t, containsSubstring(f.rec.texts(), "repeating"))
}

func TestOrchestrator_MaxStepsBoundsTheLoop(t *testing.T) {
	f := newFixture(t, func(cfg *config.SafetyConfig) {
		cfg.MaxSteps = 4
	})
	f.stubSafeOracle()

	// Four distinct plans so neither repetition nor any terminal condition
	// fires; only the step bound can end the turn.
	urls := []string{
		"https://a.example", "https://b.example", "https://c.example", "https://d.example",
	}
	for _, u := range urls {
		f.planner.On("Plan", mock.Anything, mock.Anything, mock.Anything).Return(schemas.Plan{
			Kind: schemas.ActionNavigate, Reason: "Next hop.", URL: u,
		}).Once()
	}
	f.browser.On("Navigate", mock.Anything, mock.Anything).
		Return(schemas.ExecutionResult{Success: true, Message: "Opened.", CurrentURL: "https://somewhere.example"})
	f.browser.On("CaptureObservation", mock.Anything).
		Return(schemas.PageObservation{CurrentURL: "https://somewhere.example"})

	f.handle(t, "keep browsing")

	assert.Equal(t, int64(4), f.browser.NavigateCalls.Load())
	f.planner.AssertNumberOfCalls(t, "Plan", 4)
}

func TestOrchestrator_NoopOnFirstStepAsksForDirection(t *testing.T) {
	f := newFixture(t, nil)

	f.planner.On("Plan", mock.Anything, mock.Anything, mock.Anything).Return(schemas.Plan{
		Kind: schemas.ActionNoop, Reason: "Nothing to do.",
	})

	f.handle(t, "hmm")
	assert.True(t, containsSubstring(f.rec.texts(), "How would you like me to proceed?"))
}

func TestOrchestrator_RiskArmedConfirmationAffirmsToAckOnly(t *testing.T) {
	f := newFixture(t, nil)

	// The executed step comes back clean from the browser but the oracle
	// demands confirmation before anything further happens.
	confirm := schemas.RiskAssessment{
		Level:                schemas.RiskHighRisk,
		RecommendedAction:    schemas.RecommendWarn,
		RequiresConfirmation: true,
		ConfirmationPhrase:   "yes, proceed safely",
	}
	f.oracle.On("Fast", mock.Anything, mock.Anything, mock.Anything).Return(confirm)
	f.oracle.On("Deep", mock.Anything, mock.Anything, mock.Anything).Return(confirm)

	f.planner.On("Plan", mock.Anything, mock.Anything, mock.Anything).Return(schemas.Plan{
		Kind: schemas.ActionNavigate, Reason: "Open the site.", URL: "https://www.pge.com",
	})
	f.browser.On("Navigate", mock.Anything, mock.Anything).
		Return(schemas.ExecutionResult{Success: true, Message: "Opened.", CurrentURL: "https://www.pge.com"})
	f.browser.On("CaptureObservation", mock.Anything).
		Return(schemas.PageObservation{CurrentURL: "https://www.pge.com", PaymentAmount: "$142.37"})

	f.handle(t, "open pge")
	require.True(t, f.sess.PendingConfirmation())
	navsBefore := f.browser.NavigateCalls.Load()

	// Affirming unlocks the session without re-executing anything.
	f.handle(t, "yes, proceed safely")

	assert.False(t, f.sess.PendingConfirmation())
	assert.Equal(t, schemas.RiskSafe, f.sess.LastRiskLevel())
	assert.Equal(t, navsBefore, f.browser.NavigateCalls.Load(),
		"affirming a risk-armed confirmation must not replay the finished step")
	assert.Equal(t, int64(0), f.browser.ActCalls.Load())
}

func TestOrchestrator_SummaryIsDetachedFromLaterTurns(t *testing.T) {
	f := newFixture(t, nil)
	f.stubSafeOracle()

	f.planner.On("Plan", mock.Anything, "open pge", mock.Anything).Return(schemas.Plan{
		Kind: schemas.ActionNavigate, Reason: "Open the site.", URL: "https://www.pge.com",
	})
	f.planner.On("Plan", mock.Anything, "open google", mock.Anything).Return(schemas.Plan{
		Kind: schemas.ActionNavigate, Reason: "Open the site.", URL: "https://www.google.com",
	})
	f.browser.On("Navigate", mock.Anything, "https://www.pge.com").
		Return(schemas.ExecutionResult{Success: true, Message: "Opened.", CurrentURL: "https://www.pge.com"})
	f.browser.On("Navigate", mock.Anything, "https://www.google.com").
		Return(schemas.ExecutionResult{Success: true, Message: "Opened.", CurrentURL: "https://www.google.com"})
	f.browser.On("CaptureObservation", mock.Anything).
		Return(schemas.PageObservation{})

	first := f.handle(t, "open pge")
	f.handle(t, "open google")

	// The later turn moved the session on, but the earlier summary still
	// describes the turn that produced it.
	assert.Equal(t, "https://www.google.com", f.sess.LastURL())
	assert.Equal(t, "https://www.pge.com", first.View.LastURL)
	assert.Equal(t, "open pge", first.View.CurrentGoal)
}

func TestOrchestrator_NewTranscriptSupersedesInFlightTurn(t *testing.T) {
	f := newFixture(t, nil)
	f.stubSafeOracle()

	f.planner.On("Plan", mock.Anything, "open pge", mock.Anything).Return(schemas.Plan{
		Kind: schemas.ActionNavigate, Reason: "Open the site.", URL: "https://www.pge.com",
	})
	f.planner.On("Plan", mock.Anything, "actually stop", mock.Anything).Return(schemas.Plan{
		Kind: schemas.ActionStop, Reason: "User changed their mind.",
	})
	f.browser.On("Navigate", mock.Anything, mock.Anything).
		After(400*time.Millisecond).
		Return(schemas.ExecutionResult{Success: true, Message: "Opened.", CurrentURL: "https://www.pge.com"})
	f.browser.On("CaptureObservation", mock.Anything).
		Return(schemas.PageObservation{CurrentURL: "https://www.pge.com"})

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.orch.HandleTranscript(context.Background(), "open pge", f.rec.emit)
		firstDone <- err
	}()

	// Let the first turn get stuck inside the slow navigation.
	time.Sleep(50 * time.Millisecond)

	f.handle(t, "actually stop")

	select {
	case err := <-firstDone:
		require.ErrorIs(t, err, context.Canceled,
			"the superseded turn must observe its own cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("superseded turn did not finish")
	}

	// The superseding turn ran to completion and left coherent state: the
	// cancelled navigation committed nothing.
	assert.True(t, containsSubstring(f.rec.texts(), "Stopping now."))
	assert.Equal(t, "about:blank", f.sess.LastURL())
	assert.False(t, f.sess.PendingConfirmation())
}
