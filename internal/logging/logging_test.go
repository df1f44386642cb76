package logging_test

import (
	"testing"

	"github.com/andrewwphillips/libraryql/internal/logging"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	newData := map[string]struct {
		level, format string
		ok            bool
		enabled       zapcore.Level // a level that should be enabled
		disabled      zapcore.Level // a level that should not
	}{
		"Info":   {"info", "json", true, zapcore.InfoLevel, zapcore.DebugLevel},
		"Debug":  {"debug", "console", true, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		"Warn":   {"warn", "", true, zapcore.ErrorLevel, zapcore.InfoLevel},
		"BadLvl": {"loud", "json", false, 0, 0},
		"BadFmt": {"info", "xml", false, 0, 0},
	}
	for name, data := range newData {
		log, err := logging.New(data.level, data.format)
		if !data.ok {
			Assertf(t, err != nil, "%-7s: expected an error", name)
			continue
		}
		if err != nil {
			Assertf(t, false, "%-7s: expected no error, got %v", name, err)
			continue
		}
		core := log.Core()
		Assertf(t, core.Enabled(data.enabled), "%-7s: expected %v enabled", name, data.enabled)
		Assertf(t, !core.Enabled(data.disabled), "%-7s: expected %v disabled", name, data.disabled)
	}
}

func Assertf(t *testing.T, succeeded bool, format string, args ...interface{}) {
	const (
		succeed = "\u2713" // tick
		failed  = "XXXXX"  //"\u2717" // cross
	)

	t.Helper()
	if !succeeded {
		t.Errorf("%-6s"+format, append([]interface{}{failed}, args...)...)
	} else {
		t.Logf("%-6s"+format, append([]interface{}{succeed}, args...)...)
	}
}
