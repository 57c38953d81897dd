// File: cmd/serve.go
// Description: the serve command assembles the full copilot stack from
// configuration and runs the websocket server until interrupted.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/guidelight-ai/guidelight/api/schemas"
	"github.com/guidelight-ai/guidelight/internal/audit"
	"github.com/guidelight-ai/guidelight/internal/brain"
	"github.com/guidelight-ai/guidelight/internal/browser"
	"github.com/guidelight-ai/guidelight/internal/config"
	"github.com/guidelight-ai/guidelight/internal/copilot"
	"github.com/guidelight-ai/guidelight/internal/llmclient"
	"github.com/guidelight-ai/guidelight/internal/observability"
	"github.com/guidelight-ai/guidelight/internal/server"
	"github.com/guidelight-ai/guidelight/internal/verify"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the copilot websocket server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.port", cmd.Flags().Lookup("port")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			defer observability.Sync()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			llm, err := llmclient.NewClient(cfg.LLM, logger)
			if err != nil {
				return fmt.Errorf("building llm client: %w", err)
			}
			if llm == nil {
				logger.Warn("LLM disabled; planning and risk run on heuristics only")
			}

			planner := brain.NewPlanner(llm, cfg.LLM, logger)
			oracle := brain.NewRiskOracle(llm, cfg.LLM, logger)

			var verifier schemas.DomainVerifier
			if cfg.Verifier.Enabled {
				verifier = verify.NewVerifier(cfg.Verifier, logger)
			} else {
				logger.Warn("Domain verifier disabled; impostor-site checks are off")
			}

			var auditStore *audit.Store
			if cfg.Audit.Enabled {
				pool, err := audit.NewPool(ctx, cfg.Audit.DatabaseURL)
				if err != nil {
					return fmt.Errorf("connecting audit store: %w", err)
				}
				defer pool.Close()
				auditStore = audit.NewStore(pool, logger)
				if err := auditStore.EnsureSchema(ctx); err != nil {
					return err
				}
			}

			// One browser executor per connection keeps sessions isolated.
			newBrowser := func() (schemas.BrowserExecutor, func(), error) {
				if !cfg.Browser.Enabled {
					return browser.NewStubExecutor(logger), nil, nil
				}
				exec, err := browser.NewExecutor(ctx, cfg.Browser, logger)
				if err != nil {
					return nil, nil, err
				}
				return exec, exec.Close, nil
			}

			factory := func() (*copilot.Orchestrator, func(), error) {
				b, closer, err := newBrowser()
				if err != nil {
					return nil, nil, err
				}
				sess := copilot.NewSession(cfg.Safety.MaxActionHistory)
				gate := copilot.NewGate(cfg.Safety, logger)
				risk := copilot.NewRiskPipeline(oracle, verifier, logger)
				pipeline := copilot.NewExecPipeline(b, risk, cfg.Safety.HeartbeatInterval, logger)
				orch := copilot.NewOrchestrator(cfg.Safety, logger, sess, planner, gate, pipeline, b)
				return orch, closer, nil
			}

			srv := server.NewServer(cfg.Server, factory, auditStore, logger)
			logger.Info("Copilot assembled",
				zap.Bool("llm", cfg.LLM.Enabled),
				zap.Bool("browser", cfg.Browser.Enabled),
				zap.Bool("verifier", cfg.Verifier.Enabled),
				zap.Bool("audit", cfg.Audit.Enabled))
			return srv.Run(ctx)
		},
	}

	serveCmd.Flags().Int("port", 8000, "TCP port to listen on")
	return serveCmd
}
