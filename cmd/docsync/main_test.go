package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/klauern/docsync/internal/cli"
)

func TestMain(m *testing.M) {
	tempHome, err := os.MkdirTemp("", "docsync-cmd-test-")
	if err != nil {
		panic(err)
	}
	if err := os.Setenv("DOCSYNC_HOME", tempHome); err != nil {
		panic(err)
	}

	code := m.Run()

	_ = os.RemoveAll(tempHome)
	os.Exit(code)
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	runErr := fn()

	if closeErr := w.Close(); closeErr != nil {
		t.Fatalf("failed to close pipe writer: %v", closeErr)
	}
	os.Stdout = old

	var buf bytes.Buffer
	if _, copyErr := io.Copy(&buf, r); copyErr != nil {
		t.Fatalf("failed to read captured output: %v", copyErr)
	}
	return buf.String(), runErr
}

func TestCLIInitialization(t *testing.T) {
	output, err := captureStdout(t, func() error {
		return cli.Run(context.Background(), []string{"docsync", "--help"})
	})
	if err != nil {
		t.Fatalf("CLI initialization failed: %v", err)
	}

	if !strings.Contains(output, "docsync") {
		t.Errorf("expected help output to contain 'docsync', got: %q", output)
	}
	if !strings.Contains(output, "USAGE") || !strings.Contains(output, "COMMANDS") {
		t.Errorf("expected help output to contain USAGE and COMMANDS sections, got: %q", output)
	}
	for _, name := range []string{"detect", "resolve", "sync", "watch"} {
		if !strings.Contains(output, name) {
			t.Errorf("expected help output to list %q", name)
		}
	}
}

func TestVersionFlag(t *testing.T) {
	output, err := captureStdout(t, func() error {
		return cli.Run(context.Background(), []string{"docsync", "--version"})
	})
	if err != nil {
		t.Fatalf("--version flag failed: %v", err)
	}
	if !strings.Contains(output, "docsync") {
		t.Errorf("expected version output to contain 'docsync', got: %q", output)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{name: "version", args: []string{"docsync", "version"}, wantCode: 0},
		{name: "unknown strategy", args: []string{"docsync", "resolve", "--strategy", "theirs"}, wantCode: 1, wantErr: "Error: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			var code int
			_, _ = captureStdout(t, func() error {
				code = run(context.Background(), tt.args, &stderr)
				return nil
			})
			if code != tt.wantCode {
				t.Errorf("run() = %d, want %d (stderr %q)", code, tt.wantCode, stderr.String())
			}
			if !strings.Contains(stderr.String(), tt.wantErr) {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantErr)
			}
		})
	}
}

func TestRun_ContextCancellationStopsWatch(t *testing.T) {
	t.Setenv("DOCSYNC_STORE_ROOT", t.TempDir())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var stderr bytes.Buffer
	output, _ := captureStdout(t, func() error {
		if code := run(ctx, []string{"docsync", "watch"}, &stderr); code != 0 {
			t.Errorf("run() = %d, stderr %q", code, stderr.String())
		}
		return nil
	})
	if !strings.Contains(output, "Stopped watching") {
		t.Errorf("watch did not stop on a cancelled context: %q", output)
	}
}
