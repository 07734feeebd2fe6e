package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"

	"WorkflowPulse/internal/config"
	"WorkflowPulse/internal/domain"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range []string{"WORKFLOW_PULSE_CONFIG", "TRIGGER_SECRET", "DATABASE_DRIVER", "YOUTUBE_API_KEY", "COLLECT_COUNTRIES"} {
		t.Setenv(key, "")
	}
	t.Setenv("DATABASE_DSN", filepath.Join(t.TempDir(), "cli.db"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveVersion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ldflags string
		info    *debug.BuildInfo
		want    string
	}{
		{"v1.2.3", &debug.BuildInfo{Main: debug.Module{Version: "v0.0.1"}}, "v1.2.3"},
		{"dev", &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, "v1.2.3"},
		{"dev", &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, "dev"},
		{"dev", nil, "dev"},
	}
	for _, tc := range cases {
		if got := resolveVersion(tc.ldflags, tc.info); got != tc.want {
			t.Fatalf("resolveVersion(%q) = %q, want %q", tc.ldflags, got, tc.want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "workflowpulse version ") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestBuildRunRequest(t *testing.T) {
	t.Parallel()

	req, err := buildRunRequest([]string{"us", " in "}, "youtube")
	if err != nil {
		t.Fatalf("buildRunRequest: %v", err)
	}
	if len(req.Countries) != 2 || req.Countries[0] != domain.CountryUS || req.Countries[1] != domain.CountryIN {
		t.Fatalf("unexpected countries %v", req.Countries)
	}
	if len(req.Platforms) != 1 || req.Platforms[0] != domain.PlatformVideo {
		t.Fatalf("unexpected platforms %v", req.Platforms)
	}

	all, err := buildRunRequest(nil, "all")
	if err != nil || len(all.Platforms) != 0 || len(all.Countries) != 0 {
		t.Fatalf("all sources should leave the request open, got %+v, %v", all, err)
	}

	if _, err := buildRunRequest(nil, "tiktok"); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestCollectRejectsUnknownSource(t *testing.T) {
	isolateEnv(t)

	if _, err := execute(t, "collect", "--source", "tiktok"); err == nil || !strings.Contains(err.Error(), "invalid source") {
		t.Fatalf("expected invalid source error, got %v", err)
	}
}

func TestServeRequiresTriggerSecret(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "serve")
	if !errors.Is(err, config.ErrMissingTriggerSecret) {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestMigrateCreatesSchema(t *testing.T) {
	isolateEnv(t)

	out, err := execute(t, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "Schema is up to date") {
		t.Fatalf("unexpected output %q", out)
	}
}
