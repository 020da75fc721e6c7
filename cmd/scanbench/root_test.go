package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/arkilian/scanbench/internal/partition"
)

// executeCommand runs cmd with args and captures stdout.
func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Help(t *testing.T) {
	out, err := executeCommand(newRootCmd(), "--help")
	if err != nil {
		t.Fatalf("--help failed: %v", err)
	}
	for _, want := range []string{"scanbench [flags] DIR...", "--filter", "--jobs", "--devices", "--format"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestRootCmd_RequiresDirectory(t *testing.T) {
	if _, err := executeCommand(newRootCmd()); err == nil {
		t.Error("expected error without directories")
	}
}

func TestRootCmd_Run(t *testing.T) {
	dir := t.TempDir()
	info, err := partition.NewBuilder(dir).Build(context.Background(), partition.Spec{Rows: 800, Seed: 9})
	if err != nil {
		t.Fatalf("failed to build partition: %v", err)
	}

	out, err := executeCommand(newRootCmd(),
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
		"--staging-dir", t.TempDir(),
		"--filter", "0.25",
		"--jobs", "2",
		dir)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	if !strings.Contains(out, "predicate: ke > 0.25\n") {
		t.Errorf("unexpected predicate in report:\n%s", out)
	}
	if !strings.Contains(out, "workers: 2\n") {
		t.Errorf("unexpected worker count in report:\n%s", out)
	}
	if want := "total rows: " + strconv.FormatInt(info.CountAbove(0.25), 10) + "\n"; !strings.Contains(out, want) {
		t.Errorf("report missing %q:\n%s", want, out)
	}
}

func TestRootCmd_MissingDirectoryFails(t *testing.T) {
	_, err := executeCommand(newRootCmd(),
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
		"--staging-dir", t.TempDir(),
		filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected failure for a missing data directory")
	}
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("SCANBENCH_FILTER", "0.9")
	t.Setenv("SCANBENCH_JOBS", "4")
	t.Setenv("SCANBENCH_COLUMN", "ux")

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--jobs", "7", "--env-file", filepath.Join(t.TempDir(), "none.env")}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	envFile, _ := cmd.Flags().GetString("env-file")
	jobs, _ := cmd.Flags().GetInt("jobs")
	cfg, err := loadConfig(cmd, &options{envFile: envFile, jobs: jobs})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Jobs != 7 {
		t.Errorf("Jobs = %d, want 7 from flag", cfg.Jobs)
	}
	if cfg.Filter != 0.9 {
		t.Errorf("Filter = %v, want 0.9 from env", cfg.Filter)
	}
	if got := cfg.Predicate(); got != "ux > 0.9" {
		t.Errorf("Predicate() = %q", got)
	}
}
