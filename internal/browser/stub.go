// File: internal/browser/stub.go
// Description: deterministic in-memory executor used when no real
// browser is configured. It serves a small catalog of canned pages so
// the full gate/risk/confirmation flow stays exercisable in demos and
// development without Chrome.
package browser

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/guidelight-ai/guidelight/api/schemas"
)

// stubPage is one canned page in the catalog.
type stubPage struct {
	title          string
	text           string
	formFields     []string
	paymentAmount  string
	payee          string
	urgencySignals []string
}

// stubCatalog maps hostname fragments to canned pages. First match wins.
var stubCatalog = []struct {
	hostFragment string
	page         stubPage
}{
	{"pge.com", stubPage{
		title:         "PG&E - Pay Your Bill",
		text:          "Pacific Gas and Electric Company. Your current balance is $142.37, due August 28. Sign in to pay your bill.",
		formFields:    []string{"username", "password"},
		paymentAmount: "$142.37",
		payee:         "PG&E",
	}},
	{"pge-billpay-secure", stubPage{
		title:          "URGENT: PG&E Payment Required",
		text:           "FINAL NOTICE: your account will be suspended within 2 hours. Pay $142.37 immediately with a gift card to avoid disconnection.",
		formFields:     []string{"card number", "cvv", "gift card code"},
		paymentAmount:  "$142.37",
		payee:          "PG&E Billing Services",
		urgencySignals: []string{"FINAL NOTICE", "within 2 hours", "gift card"},
	}},
	{"google.com", stubPage{
		title:      "Google",
		text:       "Search the web.",
		formFields: []string{"q"},
	}},
}

// defaultStubPage backs any host not in the catalog.
var defaultStubPage = stubPage{
	title: "Example Page",
	text:  "Welcome. This is a plain informational page with nothing to fill in.",
}

// StubExecutor is the no-Chrome implementation of the browser executor.
type StubExecutor struct {
	logger     *zap.Logger
	currentURL string
	current    stubPage
}

// NewStubExecutor starts the stub on a blank page.
func NewStubExecutor(logger *zap.Logger) *StubExecutor {
	return &StubExecutor{
		logger:     logger.Named("browser_stub"),
		currentURL: "about:blank",
	}
}

func lookupStubPage(url string) stubPage {
	for _, entry := range stubCatalog {
		if strings.Contains(url, entry.hostFragment) {
			return entry.page
		}
	}
	return defaultStubPage
}

// Navigate switches the stub to the canned page for the URL.
func (s *StubExecutor) Navigate(ctx context.Context, rawURL string) schemas.ExecutionResult {
	if err := ctx.Err(); err != nil {
		return schemas.ExecutionResult{Success: false, Message: "Navigation cancelled."}
	}
	target := normalizeURL(rawURL)
	s.currentURL = target
	s.current = lookupStubPage(target)
	s.logger.Debug("Stub navigation", zap.String("url", target))
	return schemas.ExecutionResult{
		Success:    true,
		Message:    fmt.Sprintf("Opened %s.", s.current.title),
		CurrentURL: target,
	}
}

// Act acknowledges the instruction without changing the page.
func (s *StubExecutor) Act(ctx context.Context, instruction string) schemas.ExecutionResult {
	if err := ctx.Err(); err != nil {
		return schemas.ExecutionResult{Success: false, Message: "Action cancelled."}
	}
	if s.currentURL == "about:blank" {
		return schemas.ExecutionResult{Success: false, Message: "There's no page open yet."}
	}
	return schemas.ExecutionResult{
		Success:    true,
		Message:    fmt.Sprintf("Done: %s", instruction),
		CurrentURL: s.currentURL,
	}
}

// Extract summarizes the canned page.
func (s *StubExecutor) Extract(ctx context.Context, instruction string) schemas.ExecutionResult {
	if err := ctx.Err(); err != nil {
		return schemas.ExecutionResult{Success: false, Message: "Extraction cancelled."}
	}
	obs := s.CaptureObservation(ctx)
	return schemas.ExecutionResult{
		Success:    true,
		Message:    summarizeExtraction(obs),
		CurrentURL: s.currentURL,
		ExtractedData: map[string]any{
			"title":   obs.Title,
			"excerpt": obs.VisibleTextExcerpt,
		},
	}
}

// CaptureObservation renders the canned page as an observation.
func (s *StubExecutor) CaptureObservation(ctx context.Context) schemas.PageObservation {
	p := s.current
	return schemas.PageObservation{
		CurrentURL:         s.currentURL,
		Title:              p.title,
		VisibleTextExcerpt: p.text,
		FormFields:         append([]string(nil), p.formFields...),
		PaymentAmount:      p.paymentAmount,
		PayeeEntity:        p.payee,
		UrgencySignals:     append([]string(nil), p.urgencySignals...),
	}
}

// ExtractPaymentReadback returns the canned page's payment details.
func (s *StubExecutor) ExtractPaymentReadback(ctx context.Context) schemas.PaymentReadback {
	return schemas.PaymentReadback{Amount: s.current.paymentAmount, Payee: s.current.payee}
}

// RuntimeInfo identifies the stub backend.
func (s *StubExecutor) RuntimeInfo() map[string]any {
	return map[string]any{"engine": "stub", "headless": true}
}
