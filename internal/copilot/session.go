// File: internal/copilot/session.go
package copilot

import (
	"github.com/google/uuid"

	"github.com/guidelight-ai/guidelight/api/schemas"
)

// Session is the per-conversation mutable record. It has exactly one
// writer, the Orchestrator; every other component receives a read-only
// View and returns decisions for the orchestrator to commit. No locking
// is needed because at most one turn owns the session at a time.
type Session struct {
	id                  string
	currentGoal         string
	expectedService     string
	pendingConfirmation bool
	pendingPhrase       string
	pendingPlan         *schemas.Plan
	lastRiskLevel       schemas.RiskLevel
	lastURL             string
	actionHistory       []string
	maxHistory          int
	lastObservation     *schemas.PageObservation
}

// NewSession creates the state record for one conversation. It lives
// for the duration of the connection that owns it.
func NewSession(maxHistory int) *Session {
	if maxHistory < 2 {
		maxHistory = 2
	}
	return &Session{
		id:            uuid.New().String(),
		lastRiskLevel: schemas.RiskSafe,
		lastURL:       "about:blank",
		maxHistory:    maxHistory,
	}
}

// ID returns the stable session identifier.
func (s *Session) ID() string { return s.id }

// View produces the read-only snapshot handed to collaborators.
func (s *Session) View() schemas.SessionView {
	view := schemas.SessionView{
		CurrentGoal:     s.currentGoal,
		ExpectedService: s.expectedService,
		LastRiskLevel:   s.lastRiskLevel,
		LastURL:         s.lastURL,
		LastObservation: s.lastObservation,
	}
	if len(s.actionHistory) > 0 {
		view.ActionHistory = append([]string(nil), s.actionHistory...)
	}
	return view
}

// BeginTurn resets the per-turn fields: the goal becomes the new
// transcript and the action history starts empty. Confirmation state and
// the remembered service survive across turns.
func (s *Session) BeginTurn(goal string) {
	s.currentGoal = goal
	s.actionHistory = s.actionHistory[:0]
}

// CurrentGoal returns the goal set by the current turn.
func (s *Session) CurrentGoal() string { return s.currentGoal }

// RecordSignature appends an executed plan's signature to the bounded
// action history.
func (s *Session) RecordSignature(sig string) {
	s.actionHistory = append(s.actionHistory, sig)
	if len(s.actionHistory) > s.maxHistory {
		s.actionHistory = s.actionHistory[len(s.actionHistory)-s.maxHistory:]
	}
}

// RepeatsRecent reports whether sig matches either of the two most
// recently recorded signatures.
func (s *Session) RepeatsRecent(sig string) bool {
	n := len(s.actionHistory)
	for i := n - 1; i >= 0 && i >= n-2; i-- {
		if s.actionHistory[i] == sig {
			return true
		}
	}
	return false
}

// ArmConfirmation stores the pending plan and phrase as one atomic
// commit. The pair invariant (both present or both absent) holds at
// every suspension point because this is the only setter.
func (s *Session) ArmConfirmation(plan schemas.Plan, phrase string) {
	p := plan
	s.pendingPlan = &p
	s.pendingPhrase = phrase
	s.pendingConfirmation = true
}

// ClearConfirmation clears the confirmation pair and returns the plan
// that was pending, if any.
func (s *Session) ClearConfirmation() (schemas.Plan, bool) {
	if !s.pendingConfirmation || s.pendingPlan == nil {
		s.pendingConfirmation = false
		s.pendingPlan = nil
		s.pendingPhrase = ""
		return schemas.Plan{}, false
	}
	plan := *s.pendingPlan
	s.pendingPlan = nil
	s.pendingPhrase = ""
	s.pendingConfirmation = false
	return plan, true
}

// PendingConfirmation reports whether an affirmation is awaited.
func (s *Session) PendingConfirmation() bool { return s.pendingConfirmation }

// PendingPhrase returns the phrase the user is expected to say.
func (s *Session) PendingPhrase() string { return s.pendingPhrase }

// SetRiskLevel commits the session's last observed risk tier.
func (s *Session) SetRiskLevel(level schemas.RiskLevel) { s.lastRiskLevel = level }

// LastRiskLevel returns the most recently committed risk tier.
func (s *Session) LastRiskLevel() schemas.RiskLevel { return s.lastRiskLevel }

// SetLastURL records the browser's reported location.
func (s *Session) SetLastURL(url string) {
	if url != "" {
		s.lastURL = url
	}
}

// LastURL returns the last known browser location.
func (s *Session) LastURL() string { return s.lastURL }

// SetExpectedService remembers which service the user believes they are
// interacting with, for later domain verification.
func (s *Session) SetExpectedService(name string) {
	if name != "" {
		s.expectedService = name
	}
}

// SetObservation stores a page observation with its screenshot stripped;
// screenshots are execution-local and never retained.
func (s *Session) SetObservation(obs schemas.PageObservation) {
	stripped := obs.WithoutScreenshot()
	s.lastObservation = &stripped
}
