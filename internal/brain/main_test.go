// File: internal/brain/main_test.go
package brain_test

import (
	"os"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/guidelight-ai/guidelight/internal/config"
	"github.com/guidelight-ai/guidelight/internal/observability"
)

func TestMain(m *testing.M) {
	appConfig := config.NewDefaultConfig()
	logConfig := appConfig.Logger
	logConfig.Level = "debug"
	logConfig.ServiceName = "test-suite"
	logConfig.LogFile = ""

	observability.Initialize(logConfig, zapcore.Lock(os.Stdout))

	exitCode := m.Run()

	observability.Sync()
	observability.ResetForTest()
	os.Exit(exitCode)
}
