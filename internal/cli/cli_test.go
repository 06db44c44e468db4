package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/suPer8Hu/pantry-assistant/internal/backend/backendtest"
)

func setupEnv(t *testing.T) *backendtest.Server {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)

	t.Setenv("PANTRY_API_URL", srv.URL)
	t.Setenv("PANTRY_STATE_DRIVER", "sqlite")
	t.Setenv("PANTRY_STATE_DSN", filepath.Join(t.TempDir(), "state.db"))
	t.Setenv("PANTRY_SLOT_SECRET", "cli-test")
	t.Setenv("CHAT_RESPONDER", "backend")
	t.Setenv("RABBIT_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	return srv
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_FullSession(t *testing.T) {
	srv := setupEnv(t)
	soon := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	out, err := run(t, "", "signup", "--email", "cook@example.com", "--password", "pw")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if !strings.Contains(out, "Logged in as cook@example.com") {
		t.Fatalf("signup output:\n%s", out)
	}

	out, err = run(t, "", "inventory", "add", "--name", "milk", "--qty", "1", "--exp", soon)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Added milk") || !strings.Contains(out, "Heads up! These items are expiring soon: milk") {
		t.Fatalf("add output:\n%s", out)
	}

	out, err = run(t, "", "inventory", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "milk") || !strings.Contains(out, soon) {
		t.Fatalf("list output:\n%s", out)
	}

	out, err = run(t, "", "alerts")
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if !strings.Contains(out, "milk") {
		t.Fatalf("alerts output:\n%s", out)
	}

	srv.SetChatReply(func(userID, message string) string { return "echo: " + message })
	out, err = run(t, "hello\n\n/quit\n", "chat")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(out, "assistant: echo: hello") {
		t.Fatalf("chat output:\n%s", out)
	}
	if n := srv.Count(backendtest.RouteChat); n != 1 {
		t.Fatalf("chat calls = %d, want 1", n)
	}

	if _, err := run(t, "", "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	out, err = run(t, "", "whoami")
	if err != nil || !strings.Contains(out, "Not logged in") {
		t.Fatalf("whoami after logout = %q, %v", out, err)
	}
	if _, err := run(t, "", "inventory", "list"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("list after logout err = %v", err)
	}
}

func TestCLI_LoginReadsPasswordFromStdin(t *testing.T) {
	srv := setupEnv(t)
	id := srv.Register("a@example.com", "secret")

	out, err := run(t, "secret\n", "login", "--email", "a@example.com")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, id.ID) {
		t.Fatalf("login output:\n%s", out)
	}
}

func TestCLI_LoginRejected(t *testing.T) {
	srv := setupEnv(t)
	srv.Register("a@example.com", "secret")

	_, err := run(t, "", "login", "--email", "a@example.com", "--password", "nope")
	if err == nil || !strings.Contains(err.Error(), "login failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestCLI_AddInvalidQuantity(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, "", "signup", "--email", "c@example.com", "--password", "pw"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, err := run(t, "", "inventory", "add", "--name", "rice", "--qty=-2")
	if err == nil || !strings.Contains(err.Error(), "invalid item") {
		t.Fatalf("err = %v", err)
	}
}

func TestCLI_AlertsWatchNeedsRabbit(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "", "alerts", "watch")
	if err == nil || !strings.Contains(err.Error(), "RABBIT_URL") {
		t.Fatalf("err = %v", err)
	}
}
