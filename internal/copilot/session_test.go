// File: internal/copilot/session_test.go
package copilot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/copilot"
)

func TestSession_BeginTurnResetsHistoryButKeepsConfirmation(t *testing.T) {
	sess := copilot.NewSession(10)
	sess.BeginTurn("pay my electric bill")
	sess.RecordSignature("navigate|https://www.pge.com|")
	sess.ArmConfirmation(schemas.Plan{Kind: schemas.ActionAct, Instruction: "pay now"}, "yes, pay")

	sess.BeginTurn("what is on this page")

	view := sess.View()
	assert.Equal(t, "what is on this page", view.CurrentGoal)
	assert.Empty(t, view.ActionHistory)
	// Confirmation state survives across turns until explicitly resolved.
	assert.True(t, sess.PendingConfirmation())
	assert.Equal(t, "yes, pay", sess.PendingPhrase())
}

func TestSession_RepeatsRecentOnlyChecksLastTwo(t *testing.T) {
	sess := copilot.NewSession(10)
	sess.BeginTurn("goal")
	sess.RecordSignature("a")
	sess.RecordSignature("b")
	sess.RecordSignature("c")

	assert.True(t, sess.RepeatsRecent("b"))
	assert.True(t, sess.RepeatsRecent("c"))
	assert.False(t, sess.RepeatsRecent("a"), "older signatures must not trigger repetition")
	assert.False(t, sess.RepeatsRecent("d"))
}

func TestSession_HistoryIsBounded(t *testing.T) {
	sess := copilot.NewSession(3)
	sess.BeginTurn("goal")
	for _, sig := range []string{"a", "b", "c", "d", "e"} {
		sess.RecordSignature(sig)
	}
	view := sess.View()
	assert.Equal(t, []string{"c", "d", "e"}, view.ActionHistory)
}

func TestSession_ConfirmationPairInvariant(t *testing.T) {
	sess := copilot.NewSession(10)

	// Clearing with nothing pending is a harmless no-op.
	_, ok := sess.ClearConfirmation()
	assert.False(t, ok)

	plan := schemas.Plan{Kind: schemas.ActionAct, Instruction: "submit payment"}
	sess.ArmConfirmation(plan, "yes, pay $142.37 to PG&E")
	require.True(t, sess.PendingConfirmation())

	got, ok := sess.ClearConfirmation()
	require.True(t, ok)
	assert.Equal(t, plan, got)
	assert.False(t, sess.PendingConfirmation())
	assert.Empty(t, sess.PendingPhrase())
}

func TestSession_ObservationStoredWithoutScreenshot(t *testing.T) {
	sess := copilot.NewSession(10)
	sess.SetObservation(schemas.PageObservation{
		CurrentURL:    "https://www.pge.com",
		ScreenshotB64: "aGVsbG8=",
	})

	view := sess.View()
	require.NotNil(t, view.LastObservation)
	assert.Equal(t, "https://www.pge.com", view.LastObservation.CurrentURL)
	assert.Empty(t, view.LastObservation.ScreenshotB64)
}

func TestSession_ViewIsDetachedFromInternalState(t *testing.T) {
	sess := copilot.NewSession(10)
	sess.BeginTurn("goal")
	sess.RecordSignature("a")

	view := sess.View()
	view.ActionHistory[0] = "mutated"

	assert.Equal(t, []string{"a"}, sess.View().ActionHistory)
}
