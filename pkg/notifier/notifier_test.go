package notifier_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/slnstrip/slnstrip/pkg/logger"
	"github.com/slnstrip/slnstrip/pkg/notifier"
)

type sent struct {
	title   string
	message string
}

func recorder(calls *[]sent, err error) notifier.NotifyFunc {
	return func(title, message, _ string) error {
		*calls = append(*calls, sent{title, message})
		return err
	}
}

func TestNotifier_Stripped(t *testing.T) {
	var calls []sent
	n := notifier.NewWithSender(notifier.Config{Enabled: true}, nil, recorder(&calls, nil))

	n.NotifyStripped("out/AdventureGamer.sln", 5)

	if len(calls) != 1 {
		t.Fatalf("expected one notification, got %d", len(calls))
	}
	if !strings.Contains(calls[0].message, "AdventureGamer.sln") || !strings.Contains(calls[0].message, "5") {
		t.Errorf("unexpected message %q", calls[0].message)
	}
}

func TestNotifier_Failed(t *testing.T) {
	var calls []sent
	n := notifier.NewWithSender(notifier.Config{Enabled: true}, nil, recorder(&calls, nil))

	n.NotifyFailed("out/Game.sln", errors.New("permission denied"))

	if len(calls) != 1 || !strings.Contains(calls[0].message, "permission denied") {
		t.Errorf("unexpected notifications %+v", calls)
	}
}

func TestNotifier_Disabled(t *testing.T) {
	var calls []sent
	n := notifier.NewWithSender(notifier.Config{Enabled: false}, nil, recorder(&calls, nil))

	n.NotifyStripped("out/Game.sln", 5)
	n.NotifyFailed("out/Game.sln", errors.New("x"))

	if len(calls) != 0 {
		t.Errorf("disabled notifier sent %d notifications", len(calls))
	}
}

func TestNotifier_FallsBackToLog(t *testing.T) {
	var buf bytes.Buffer
	var calls []sent
	log := logger.CreateLoggerWithOutput("info", &buf)
	n := notifier.NewWithSender(notifier.Config{Enabled: true}, log, recorder(&calls, errors.New("no dbus")))

	n.NotifyStripped("out/Game.sln", 5)

	if !strings.Contains(buf.String(), "Solution cleaned") {
		t.Errorf("expected fallback log line, got %q", buf.String())
	}
}

func TestNotifier_NewUsesBeeep(t *testing.T) {
	// Only checks construction; delivering a real notification is not possible in CI
	if notifier.New(notifier.Config{Enabled: false}, logger.Discard()) == nil {
		t.Fatal("expected notifier")
	}
}
