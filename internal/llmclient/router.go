// File: internal/llmclient/router.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/guidelight-ai/guidelight/api/schemas"
)

// Router implements schemas.LLMClient and dispatches requests to the
// client registered for the requested model tier.
type Router struct {
	logger  *zap.Logger
	clients map[schemas.ModelTier]schemas.LLMClient
}

// NewRouter creates a router with the specified clients for each tier.
func NewRouter(logger *zap.Logger, fastClient, powerfulClient schemas.LLMClient) (*Router, error) {
	if fastClient == nil || powerfulClient == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}

	return &Router{
		logger: logger.Named("llm_router"),
		clients: map[schemas.ModelTier]schemas.LLMClient{
			schemas.TierFast:     fastClient,
			schemas.TierPowerful: powerfulClient,
		},
	}, nil
}

// Generate selects the appropriate client based on the request's Tier.
func (r *Router) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = schemas.TierPowerful
	}

	client, ok := r.clients[tier]
	if !ok {
		return "", fmt.Errorf("no LLM client configured for tier: %s", tier)
	}

	r.logger.Debug("Routing LLM request", zap.String("tier", string(tier)))
	return client.Generate(ctx, req)
}
