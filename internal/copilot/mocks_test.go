// File: internal/copilot/mocks_test.go
package copilot_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/guidelight-ai/guidelight/api/schemas"
)

// MockPlanner is a mock implementation of schemas.Planner.
type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) Plan(ctx context.Context, goal string, view schemas.SessionView) schemas.Plan {
	args := m.Called(ctx, goal, view)
	return args.Get(0).(schemas.Plan)
}

// MockRiskOracle is a mock implementation of schemas.RiskOracle.
type MockRiskOracle struct {
	mock.Mock
}

func (m *MockRiskOracle) Fast(ctx context.Context, transcript string, obs schemas.PageObservation) schemas.RiskAssessment {
	args := m.Called(ctx, transcript, obs)
	return args.Get(0).(schemas.RiskAssessment)
}

func (m *MockRiskOracle) Deep(ctx context.Context, transcript string, obs schemas.PageObservation) schemas.RiskAssessment {
	args := m.Called(ctx, transcript, obs)
	return args.Get(0).(schemas.RiskAssessment)
}

// MockVerifier is a mock implementation of schemas.DomainVerifier.
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Check(ctx context.Context, serviceName, currentURL string) schemas.DomainCheck {
	args := m.Called(ctx, serviceName, currentURL)
	return args.Get(0).(schemas.DomainCheck)
}

// MockBrowser is a mock implementation of schemas.BrowserExecutor that
// also counts calls so tests can assert "zero navigations happened".
type MockBrowser struct {
	mock.Mock
	NavigateCalls atomic.Int64
	ActCalls      atomic.Int64
}

func (m *MockBrowser) Navigate(ctx context.Context, url string) schemas.ExecutionResult {
	m.NavigateCalls.Add(1)
	args := m.Called(ctx, url)
	return args.Get(0).(schemas.ExecutionResult)
}

func (m *MockBrowser) Act(ctx context.Context, instruction string) schemas.ExecutionResult {
	m.ActCalls.Add(1)
	args := m.Called(ctx, instruction)
	return args.Get(0).(schemas.ExecutionResult)
}

func (m *MockBrowser) Extract(ctx context.Context, instruction string) schemas.ExecutionResult {
	args := m.Called(ctx, instruction)
	return args.Get(0).(schemas.ExecutionResult)
}

func (m *MockBrowser) CaptureObservation(ctx context.Context) schemas.PageObservation {
	args := m.Called(ctx)
	return args.Get(0).(schemas.PageObservation)
}

func (m *MockBrowser) ExtractPaymentReadback(ctx context.Context) schemas.PaymentReadback {
	args := m.Called(ctx)
	return args.Get(0).(schemas.PaymentReadback)
}

func (m *MockBrowser) RuntimeInfo() map[string]any {
	return map[string]any{"engine": "mock"}
}

// eventRecorder collects emitted events for assertions. Safe for the
// concurrent emission the pipeline's heartbeat produces.
type eventRecorder struct {
	mu     sync.Mutex
	events []schemas.Event
}

func (r *eventRecorder) emit(ev schemas.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) snapshot() []schemas.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schemas.Event(nil), r.events...)
}

func (r *eventRecorder) byType(t schemas.EventType) []schemas.Event {
	var out []schemas.Event
	for _, ev := range r.snapshot() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *eventRecorder) texts() []string {
	var out []string
	for _, ev := range r.snapshot() {
		if ev.Text != "" {
			out = append(out, ev.Text)
		}
	}
	return out
}
