// File: internal/verify/verifier.go
// Description: official-domain verification via a web search API. The
// verifier asks the search service for the official website of the
// service the user believes they are on, reduces the hits to
// registrable domains, and compares the consensus against the current
// page. Any failure reports Checked=false; the caller treats an
// unchecked result as no evidence, never as a pass.
package verify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/config"
)

// Verifier checks a page's domain against a service's official site.
type Verifier struct {
	client     *resty.Client
	numResults int
	logger     *zap.Logger
}

// searchRequest is the search API's request body.
type searchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"numResults"`
	Type       string `json:"type"`
}

// searchResponse is the subset of the search API's reply we consume.
type searchResponse struct {
	Results []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"results"`
}

// NewVerifier builds the verifier from configuration.
func NewVerifier(cfg config.VerifierConfig, logger *zap.Logger) *Verifier {
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(cfg.Timeout).
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	numResults := cfg.NumResults
	if numResults <= 0 {
		numResults = 5
	}
	return &Verifier{
		client:     client,
		numResults: numResults,
		logger:     logger.Named("verifier"),
	}
}

// Check resolves the service's official registrable domain and compares
// it to the current page's.
func (v *Verifier) Check(ctx context.Context, serviceName, currentURL string) schemas.DomainCheck {
	result := schemas.DomainCheck{ServiceName: serviceName}

	currentDomain, err := registrableDomain(currentURL)
	if err != nil || serviceName == "" {
		result.Reason = "insufficient input for verification"
		return result
	}
	result.CurrentDomain = currentDomain

	var parsed searchResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetBody(searchRequest{
			Query:      fmt.Sprintf("official website for %s", serviceName),
			NumResults: v.numResults,
			Type:       "keyword",
		}).
		SetResult(&parsed).
		Post("")
	if err != nil {
		v.logger.Warn("Domain search failed", zap.String("service", serviceName), zap.Error(err))
		result.Reason = "search request failed"
		return result
	}
	if resp.IsError() {
		v.logger.Warn("Domain search returned error status",
			zap.String("service", serviceName), zap.Int("status", resp.StatusCode()))
		result.Reason = fmt.Sprintf("search returned status %d", resp.StatusCode())
		return result
	}

	verified := consensusDomain(parsed)
	if verified == "" {
		result.Reason = "no usable search results"
		return result
	}

	result.Checked = true
	result.VerifiedDomain = verified
	result.Match = currentDomain == verified
	if !result.Match {
		result.Reason = fmt.Sprintf("current domain %s does not match verified domain %s", currentDomain, verified)
	}
	return result
}

// consensusDomain reduces the search hits to registrable domains and
// returns the most frequent one. Ties break toward the earlier (higher
// ranked) hit.
func consensusDomain(resp searchResponse) string {
	counts := make(map[string]int)
	order := make([]string, 0, len(resp.Results))
	for _, hit := range resp.Results {
		domain, err := registrableDomain(hit.URL)
		if err != nil {
			continue
		}
		if counts[domain] == 0 {
			order = append(order, domain)
		}
		counts[domain]++
	}

	best, bestCount := "", 0
	for _, domain := range order {
		if counts[domain] > bestCount {
			best, bestCount = domain, counts[domain]
		}
	}
	return best
}

// registrableDomain extracts the eTLD+1 of a URL's host, so
// "www.pge.com" and "pge.com" compare equal while
// "pge.com.evil.net" does not.
func registrableDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return publicsuffix.EffectiveTLDPlusOne(host)
}
