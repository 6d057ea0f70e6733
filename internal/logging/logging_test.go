package logging

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"tg_moderation_panel/internal/config"
)

func TestSetupUsesJSONFormatterInProduction(t *testing.T) {
	resetLogger()

	entry, err := Setup(config.Config{AppEnv: config.EnvProduction, LogLevel: "info"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jsonFormatter, ok := entry.Logger.Formatter.(*logrus.JSONFormatter)
	if !ok {
		t.Fatalf("expected JSON formatter, got %T", entry.Logger.Formatter)
	}

	if jsonFormatter.FieldMap[logrus.FieldKeyTime] != "ts" {
		t.Fatalf("expected ts field for timestamps, got %q", jsonFormatter.FieldMap[logrus.FieldKeyTime])
	}
	if entry.Data["service"] != serviceName {
		t.Fatalf("expected service field, got %v", entry.Data["service"])
	}
	if entry.Data["env"] != config.EnvProduction {
		t.Fatalf("expected env field to be %q, got %v", config.EnvProduction, entry.Data["env"])
	}
}

func TestSetupUsesTextFormatterInDevelopment(t *testing.T) {
	resetLogger()

	origTerminal := isTerminal
	t.Cleanup(func() { isTerminal = origTerminal })
	isTerminal = func(*os.File) bool { return true }

	entry, err := Setup(config.Config{AppEnv: config.EnvDevelopment, LogLevel: "debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	textFormatter, ok := entry.Logger.Formatter.(*logrus.TextFormatter)
	if !ok {
		t.Fatalf("expected Text formatter, got %T", entry.Logger.Formatter)
	}
	if !textFormatter.ForceColors {
		t.Fatalf("expected colors to be forced on a terminal")
	}
	if entry.Data["env"] != config.EnvDevelopment {
		t.Fatalf("expected env field to be %q, got %v", config.EnvDevelopment, entry.Data["env"])
	}
}

func TestSetupDisablesColorsWhenWritingToFile(t *testing.T) {
	resetLogger()

	origTerminal := isTerminal
	t.Cleanup(func() { isTerminal = origTerminal })
	isTerminal = func(*os.File) bool { return true }

	logFile := filepath.Join(t.TempDir(), "panel.log")
	entry, err := Setup(config.Config{AppEnv: config.EnvDevelopment, LogLevel: "info", LogFile: logFile})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	textFormatter, ok := entry.Logger.Formatter.(*logrus.TextFormatter)
	if !ok {
		t.Fatalf("expected Text formatter, got %T", entry.Logger.Formatter)
	}
	if textFormatter.ForceColors {
		t.Fatalf("expected colors to be disabled when logging to a file")
	}

	if entry.Logger.Out == os.Stdout {
		t.Fatalf("expected output to include the rotated file")
	}

	entry.Info("written to file")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("expected log file to be created: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file to contain the entry")
	}
}

func TestSetupRejectsInvalidLogLevel(t *testing.T) {
	resetLogger()

	if _, err := Setup(config.Config{AppEnv: config.EnvDevelopment, LogLevel: "loud"}); err == nil {
		t.Fatalf("expected error for invalid log level")
	}

	if baseLogger != nil {
		t.Fatalf("base logger should remain unset after failure")
	}
}

func TestLoggingHelpersIncludeContextAndLevels(t *testing.T) {
	resetLogger()

	logger, hook := test.NewNullLogger()
	logger.SetOutput(io.Discard)
	logger.SetFormatter(formatterForEnv(config.EnvDevelopment, false))
	baseLogger = logger.WithFields(logrus.Fields{
		"service": serviceName,
		"env":     config.EnvDevelopment,
	})

	Info("hello world", logrus.Fields{"event": "startup"})
	Warn("careful now", nil)
	Error("boom", logrus.Fields{"error": "fail"})

	entries := hook.AllEntries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(entries))
	}

	if entries[0].Level != logrus.InfoLevel || entries[0].Data["event"] != "startup" {
		t.Fatalf("expected info level with startup event, got level=%s data=%v", entries[0].Level, entries[0].Data)
	}
	if entries[1].Level != logrus.WarnLevel {
		t.Fatalf("expected warn level, got %s", entries[1].Level)
	}
	if entries[2].Level != logrus.ErrorLevel || entries[2].Data["error"] != "fail" {
		t.Fatalf("expected error level with error field, got level=%s data=%v", entries[2].Level, entries[2].Data)
	}

	ctxEntry := WithContext(Context{BotID: 7, UserID: 42, ChatID: -1001, Event: "kick", RequestID: "req-1"})
	ctxEntry.Info("ctx log")

	last := hook.LastEntry()
	if last.Data["bot_id"] != int64(7) || last.Data["user_id"] != int64(42) || last.Data["chat_id"] != int64(-1001) {
		t.Fatalf("expected id fields, got %v", last.Data)
	}
	if last.Data["event"] != "kick" || last.Data["request_id"] != "req-1" {
		t.Fatalf("expected event and request id, got %v", last.Data)
	}
	if last.Data["service"] != serviceName || last.Data["env"] != config.EnvDevelopment {
		t.Fatalf("expected base fields preserved, got %v", last.Data)
	}
}
