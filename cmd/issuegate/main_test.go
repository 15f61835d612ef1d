package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattjoyce/issuegate/internal/config"
	"github.com/mattjoyce/issuegate/internal/lock"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

// isolateEnv clears every variable the loader reads.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		config.EnvGitHubToken, config.EnvGitHubOwner, config.EnvGitHubRepo, config.EnvWebhookSecret,
		config.EnvPort, config.EnvGitHubAPIURL, config.EnvGitHubTimeout, config.EnvGitHubRPS,
		config.EnvDBPath, config.EnvLogLevel, config.EnvLogFormat, config.EnvPublicDir,
	} {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
}

func setRequiredEnv(t *testing.T, apiURL string) {
	t.Helper()
	t.Setenv(config.EnvGitHubToken, "ghp_test")
	t.Setenv(config.EnvGitHubOwner, "octo")
	t.Setenv(config.EnvGitHubRepo, "hello")
	t.Setenv(config.EnvWebhookSecret, "a-long-enough-secret")
	if apiURL != "" {
		t.Setenv(config.EnvGitHubAPIURL, apiURL)
	}
}

func TestRunVersion(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int { return run("version", nil) })
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "issuegate version "+version) {
		t.Fatalf("unexpected stdout %q", stdout)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int { return run("frobnicate", nil) })
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Unknown command: frobnicate") {
		t.Fatalf("unexpected stderr %q", stderr)
	}
}

func TestRunCheckMissingEnv(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCheck([]string{"--env-file", "", "--db", filepath.Join(dir, "events.db")})
	})
	if code != 2 {
		t.Fatalf("exit code = %d, want 2\n%s", code, stdout)
	}
	for _, name := range []string{"GITHUB_TOKEN", "GITHUB_OWNER", "GITHUB_REPO", "WEBHOOK_SECRET"} {
		if !strings.Contains(stdout, "missing required env var: "+name) {
			t.Fatalf("report does not mention %s:\n%s", name, stdout)
		}
	}
}

func TestRunCheckProbesUpstream(t *testing.T) {
	isolateEnv(t)
	var gotAuth string
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4999")
		_, _ = io.WriteString(w, "[]")
	}))
	defer upstreamSrv.Close()
	setRequiredEnv(t, upstreamSrv.URL)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCheck([]string{"--env-file", "", "--db", filepath.Join(t.TempDir(), "events.db")})
	})
	if code != 0 {
		t.Fatalf("exit code = %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}
	if gotAuth != "Bearer ghp_test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if !strings.Contains(stdout, "HTTP 200") || !strings.Contains(stdout, "X-RateLimit-Limit: 5000") {
		t.Fatalf("unexpected report:\n%s", stdout)
	}
}

func TestRunCheckUnauthorized(t *testing.T) {
	isolateEnv(t)
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Bad credentials"}`)
	}))
	defer upstreamSrv.Close()
	setRequiredEnv(t, upstreamSrv.URL)

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCheck([]string{"--env-file", "", "--db", filepath.Join(t.TempDir(), "events.db"), "--json"})
	})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1\n%s", code, stdout)
	}
	if !strings.Contains(stdout, `"status": 401`) || !strings.Contains(stdout, "GITHUB_TOKEN") {
		t.Fatalf("unexpected report:\n%s", stdout)
	}
}

func TestRunServeRefusesWhenLocked(t *testing.T) {
	isolateEnv(t)
	setRequiredEnv(t, "")
	dbPath := filepath.Join(t.TempDir(), "events.db")

	held, err := lock.Acquire(lock.PathFor(dbPath))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	code, _, _ := captureOutputWithExitCode(t, func() int {
		return runServe([]string{"--env-file", "", "--db", dbPath})
	})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestRunServeInvalidConfig(t *testing.T) {
	isolateEnv(t)

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runServe([]string{"--env-file", ""})
	})
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr, "missing required env var: GITHUB_TOKEN") {
		t.Fatalf("unexpected stderr %q", stderr)
	}
}
