// File: internal/browser/browser.go
// Description: chromedp-backed implementation of the browser executor.
// Execution failures are reported inside the ExecutionResult so the
// turn loop can narrate them; error returns are reserved for context
// cancellation, which chromedp surfaces through the run context.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/config"
)

// Executor drives a single headless Chrome instance. It is safe for the
// sequential use the orchestrator guarantees; it is not safe for
// concurrent calls.
type Executor struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	browserCtx  context.Context
}

// NewExecutor launches the browser process and opens its first tab.
func NewExecutor(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Executor, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	for _, arg := range cfg.Args {
		if name, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "="); found {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, ctxCancel := chromedp.NewContext(allocCtx)

	e := &Executor{
		cfg:         cfg,
		logger:      logger.Named("browser"),
		allocCancel: allocCancel,
		ctxCancel:   ctxCancel,
		browserCtx:  browserCtx,
	}

	// Start the process eagerly so a broken Chrome install fails loudly
	// at boot instead of on the first user request.
	if err := chromedp.Run(browserCtx,
		emulation.SetDeviceMetricsOverride(1280, 960, 1, false),
	); err != nil {
		e.Close()
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	e.logger.Info("Browser launched", zap.Bool("headless", cfg.Headless))
	return e, nil
}

// Close tears down the tab and the browser process.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctxCancel != nil {
		e.ctxCancel()
		e.ctxCancel = nil
	}
	if e.allocCancel != nil {
		e.allocCancel()
		e.allocCancel = nil
	}
}

// run executes chromedp actions under the caller's cancellation plus the
// given operation timeout.
func (e *Executor) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx := e.browserCtx
	if timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(opCtx, timeout)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(opCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigate loads a URL and waits for the page to settle.
func (e *Executor) Navigate(ctx context.Context, rawURL string) schemas.ExecutionResult {
	target := normalizeURL(rawURL)
	var title, location string
	err := e.run(ctx, e.cfg.NavigationTimeout,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Location(&location),
	)
	if err != nil {
		e.logger.Warn("Navigation failed", zap.String("url", target), zap.Error(err))
		return schemas.ExecutionResult{
			Success: false,
			Message: fmt.Sprintf("I couldn't open %s.", hostOrURL(target)),
		}
	}
	label := title
	if label == "" {
		label = hostOrURL(location)
	}
	return schemas.ExecutionResult{
		Success:    true,
		Message:    fmt.Sprintf("Opened %s.", label),
		CurrentURL: location,
	}
}

// Act performs a natural-language instruction on the current page by
// matching visible clickable elements against the instruction's words.
func (e *Executor) Act(ctx context.Context, instruction string) schemas.ExecutionResult {
	var outcome actOutcome
	script := fmt.Sprintf(actScript, jsString(instruction))
	err := e.run(ctx, e.cfg.ActionTimeout,
		chromedp.Evaluate(script, &outcome),
	)
	if err != nil {
		e.logger.Warn("Action failed", zap.String("instruction", instruction), zap.Error(err))
		return schemas.ExecutionResult{
			Success: false,
			Message: "I couldn't complete that action on this page.",
		}
	}
	if !outcome.Clicked {
		return schemas.ExecutionResult{
			Success: false,
			Message: "I couldn't find anything on this page matching that instruction.",
		}
	}

	var location string
	_ = e.run(ctx, e.cfg.ActionTimeout,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
	)
	return schemas.ExecutionResult{
		Success:    true,
		Message:    fmt.Sprintf("Done. I selected '%s'.", outcome.Label),
		CurrentURL: location,
	}
}

// Extract reads information from the current page per the instruction.
func (e *Executor) Extract(ctx context.Context, instruction string) schemas.ExecutionResult {
	obs := e.CaptureObservation(ctx)
	if obs.CurrentURL == "" {
		return schemas.ExecutionResult{
			Success: false,
			Message: "I couldn't read this page.",
		}
	}

	data := map[string]any{
		"title":   obs.Title,
		"excerpt": obs.VisibleTextExcerpt,
	}
	message := summarizeExtraction(obs)
	if obs.PaymentAmount != "" {
		data["payment_amount"] = obs.PaymentAmount
	}
	if obs.PayeeEntity != "" {
		data["payee"] = obs.PayeeEntity
	}
	return schemas.ExecutionResult{
		Success:       true,
		Message:       message,
		CurrentURL:    obs.CurrentURL,
		ExtractedData: data,
	}
}

// CaptureObservation snapshots the current page for risk assessment. A
// failed capture yields a zero observation rather than an error; the
// risk heuristics treat an empty page as unknown, not safe.
func (e *Executor) CaptureObservation(ctx context.Context) schemas.PageObservation {
	var raw pageSnapshot
	var location, title string
	err := e.run(ctx, e.cfg.ActionTimeout,
		chromedp.Location(&location),
		chromedp.Title(&title),
		chromedp.Evaluate(observeScript, &raw),
	)
	if err != nil {
		e.logger.Warn("Observation capture failed", zap.Error(err))
		return schemas.PageObservation{}
	}

	obs := schemas.PageObservation{
		CurrentURL:         location,
		Title:              title,
		VisibleTextExcerpt: raw.TextExcerpt,
		FormFields:         raw.FormFields,
		PaymentAmount:      raw.PaymentAmount,
		PayeeEntity:        raw.Payee,
		UrgencySignals:     raw.UrgencySignals,
		DOMExcerpt:         raw.DOMExcerpt,
	}

	if e.cfg.CaptureScreenshot {
		var shot []byte
		if err := e.run(ctx, e.cfg.ActionTimeout, chromedp.CaptureScreenshot(&shot)); err == nil {
			obs.ScreenshotB64 = encodeScreenshot(shot)
		}
	}
	return obs
}

// ExtractPaymentReadback pulls just the visible amount and payee, used
// by the gate to build an informed confirmation phrase.
func (e *Executor) ExtractPaymentReadback(ctx context.Context) schemas.PaymentReadback {
	var raw pageSnapshot
	if err := e.run(ctx, e.cfg.ActionTimeout, chromedp.Evaluate(observeScript, &raw)); err != nil {
		return schemas.PaymentReadback{}
	}
	return schemas.PaymentReadback{Amount: raw.PaymentAmount, Payee: raw.Payee}
}

// RuntimeInfo describes the execution backend for status events.
func (e *Executor) RuntimeInfo() map[string]any {
	return map[string]any{
		"engine":   "chromedp",
		"headless": e.cfg.Headless,
	}
}

// normalizeURL defaults bare hostnames to https.
func normalizeURL(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}

func hostOrURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return raw
}

func summarizeExtraction(obs schemas.PageObservation) string {
	if obs.PaymentAmount != "" {
		if obs.PayeeEntity != "" {
			return fmt.Sprintf("This page shows an amount of %s for %s.", obs.PaymentAmount, obs.PayeeEntity)
		}
		return fmt.Sprintf("This page shows an amount of %s.", obs.PaymentAmount)
	}
	if obs.Title != "" {
		return fmt.Sprintf("Here's what I found on '%s'.", obs.Title)
	}
	return "Here's what I found on this page."
}
