package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/finflow/authcore/internal/authtest"
)

type cli struct {
	backend *authtest.Backend
	creds   string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	backend := authtest.NewBackend(t)
	backend.AddUser(authtest.User{
		Username:  "alice",
		Password:  "secret1",
		Email:     "alice@example.com",
		FirstName: "Alice",
	})
	return &cli{backend: backend, creds: filepath.Join(t.TempDir(), "credentials.json")}
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&logs)
	root.SetArgs(append([]string{"--api-url", c.backend.URL(), "--credentials", c.creds}, args...))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := root.ExecuteContext(ctx); err != nil {
		return out.String() + logs.String(), err
	}
	return out.String(), nil
}

func TestLoginPersistsSessionAcrossInvocations(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, "login", "-u", "alice", "-p", "secret1")
	if err != nil {
		t.Fatalf("login: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Logged in as alice") {
		t.Fatalf("unexpected login output:\n%s", out)
	}

	out, err = c.run(t, "--json", "status")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	var status statusOutput
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status %q: %v", out, err)
	}
	if status.State != "authenticated" || status.Username != "alice" || status.Subject == "" {
		t.Fatalf("unexpected status %+v", status)
	}

	out, err = c.run(t, "profile")
	if err != nil {
		t.Fatalf("profile: %v\n%s", err, out)
	}
	if !strings.Contains(out, "alice@example.com") || !strings.Contains(out, "Alice") {
		t.Fatalf("unexpected profile output:\n%s", out)
	}

	out, err = c.run(t, "logout")
	if err != nil {
		t.Fatalf("logout: %v\n%s", err, out)
	}
	if _, err := c.run(t, "status"); err == nil {
		t.Fatalf("expected status to fail after logout")
	}
}

func TestLoginReadsPasswordFromEnvironment(t *testing.T) {
	c := newCLI(t)
	t.Setenv("FINFLOW_PASSWORD", "secret1")
	if out, err := c.run(t, "login", "-u", "alice"); err != nil {
		t.Fatalf("login: %v\n%s", err, out)
	}
}

func TestEnvFileSuppliesBaseURL(t *testing.T) {
	c := newCLI(t)
	envFile := filepath.Join(t.TempDir(), "finflow.env")
	if err := os.WriteFile(envFile, []byte("FINFLOW_API_BASE_URL="+c.backend.URL()+"\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("FINFLOW_API_BASE_URL") })

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--env-file", envFile, "--credentials", c.creds, "login", "-u", "alice", "-p", "secret1"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("login via env file: %v\n%s", err, out.String())
	}
}

func TestMissingExplicitEnvFileFails(t *testing.T) {
	c := newCLI(t)
	if _, err := c.run(t, "--env-file", filepath.Join(t.TempDir(), "absent.env"), "status"); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestRefreshRotatesStoredToken(t *testing.T) {
	c := newCLI(t)
	if out, err := c.run(t, "login", "-u", "alice", "-p", "secret1"); err != nil {
		t.Fatalf("login: %v\n%s", err, out)
	}
	before, _ := os.ReadFile(c.creds)

	out, err := c.run(t, "refresh")
	if err != nil {
		t.Fatalf("refresh: %v\n%s", err, out)
	}
	after, _ := os.ReadFile(c.creds)
	if bytes.Equal(before, after) {
		t.Fatalf("expected stored credentials to change after refresh")
	}
	if c.backend.RefreshCalls() != 1 {
		t.Fatalf("expected one refresh call, got %d", c.backend.RefreshCalls())
	}
}

func TestLoadTestSharesOneRefresh(t *testing.T) {
	c := newCLI(t)
	if out, err := c.run(t, "login", "-u", "alice", "-p", "secret1"); err != nil {
		t.Fatalf("login: %v\n%s", err, out)
	}
	c.backend.SetRefreshDelay(50 * time.Millisecond)

	out, err := c.run(t, "loadtest", "--expire", "--concurrency", "8", "--ops", "8", "--metrics")
	if err != nil {
		t.Fatalf("loadtest: %v\n%s", err, out)
	}
	if !strings.Contains(out, "failures=0") {
		t.Fatalf("expected no failures:\n%s", out)
	}
	if !strings.Contains(out, "refresh: started=1 ") {
		t.Fatalf("expected exactly one refresh:\n%s", out)
	}
	if !strings.Contains(out, "finflow_refresh_started_total 1") {
		t.Fatalf("expected prometheus output:\n%s", out)
	}
	if c.backend.RefreshCalls() != 1 {
		t.Fatalf("expected one refresh call on the backend, got %d", c.backend.RefreshCalls())
	}
}

func TestPasswordResetCommands(t *testing.T) {
	c := newCLI(t)
	if out, err := c.run(t, "password-reset", "request", "--email", "alice@example.com"); err != nil {
		t.Fatalf("request: %v\n%s", err, out)
	}
	out, err := c.run(t, "password-reset", "confirm", "--email", "alice@example.com", "--code", authtest.OTPCode, "--password", "changed1")
	if err != nil {
		t.Fatalf("confirm: %v\n%s", err, out)
	}
	if out, err := c.run(t, "login", "-u", "alice", "-p", "changed1"); err != nil {
		t.Fatalf("login with new password: %v\n%s", err, out)
	}
}
