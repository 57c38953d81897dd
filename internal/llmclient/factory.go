// File: internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/config"
)

// NewClient builds the tiered LLM client from configuration. When the
// LLM subsystem is disabled it returns (nil, nil); callers must treat a
// nil client as "heuristics only".
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	fast, err := NewGeminiClient(cfg.FastModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create fast-tier client: %w", err)
	}
	powerful, err := NewGeminiClient(cfg.PowerfulModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create powerful-tier client: %w", err)
	}

	router, err := NewRouter(logger, fast, powerful)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM router: %w", err)
	}
	return router, nil
}
