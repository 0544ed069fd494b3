package internal

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetVerbose(t *testing.T) {
	originalLevel := logger.GetLevel()
	defer logger.SetLevel(originalLevel)

	SetVerbose(true)
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("SetVerbose(true) level = %v, want debug", logger.GetLevel())
	}

	SetVerbose(false)
	if logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("SetVerbose(false) level = %v, want info", logger.GetLevel())
	}
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	originalLevel := logger.GetLevel()
	defer func() {
		logger.SetOutput(os.Stderr)
		logger.SetLevel(originalLevel)
	}()
	logger.SetLevel(logrus.DebugLevel)

	LogError("boom: %s", "details")
	LogWarn("careful")
	LogInfo("hello")
	LogDebug("tracing")

	out := buf.String()
	for _, want := range []string{"boom: details", "careful", "hello", "tracing"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLogLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	originalLevel := logger.GetLevel()
	defer func() {
		logger.SetOutput(os.Stderr)
		logger.SetLevel(originalLevel)
	}()
	logger.SetLevel(logrus.InfoLevel)

	LogDebug("hidden")
	LogInfo("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message logged at info level:\n%s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("info message missing:\n%s", out)
	}
}
