package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Pool.BackoffBase != 5*time.Minute {
		t.Errorf("BackoffBase = %v, want 5m", cfg.Pool.BackoffBase)
	}
	if cfg.Pool.BackoffFactor != 3 {
		t.Errorf("BackoffFactor = %d, want 3", cfg.Pool.BackoffFactor)
	}
	if cfg.Pool.BackoffCap != 60*time.Minute {
		t.Errorf("BackoffCap = %v, want 60m", cfg.Pool.BackoffCap)
	}
	if !cfg.Pool.EnforceFileAffinity {
		t.Error("EnforceFileAffinity should default to true")
	}
	if cfg.Delegation.StoryPointThreshold != 8 {
		t.Errorf("StoryPointThreshold = %d, want 8", cfg.Delegation.StoryPointThreshold)
	}
	if cfg.Delegation.SkillCountThreshold != 2 {
		t.Errorf("SkillCountThreshold = %d, want 2", cfg.Delegation.SkillCountThreshold)
	}
	if cfg.Escalation.FailureCeiling != 5 {
		t.Errorf("FailureCeiling = %d, want 5", cfg.Escalation.FailureCeiling)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
pool:
  backoff_base: 1m
  backoff_cap: 10m
  enforce_file_affinity: false
delegation:
  story_point_threshold: 5
escalation:
  failure_ceiling: 3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Pool.BackoffBase != time.Minute {
		t.Errorf("BackoffBase = %v, want 1m", cfg.Pool.BackoffBase)
	}
	if cfg.Pool.BackoffCap != 10*time.Minute {
		t.Errorf("BackoffCap = %v, want 10m", cfg.Pool.BackoffCap)
	}
	if cfg.Pool.EnforceFileAffinity {
		t.Error("EnforceFileAffinity should be overridden to false")
	}
	if cfg.Delegation.StoryPointThreshold != 5 {
		t.Errorf("StoryPointThreshold = %d, want 5", cfg.Delegation.StoryPointThreshold)
	}
	if cfg.Escalation.FailureCeiling != 3 {
		t.Errorf("FailureCeiling = %d, want 3", cfg.Escalation.FailureCeiling)
	}

	// Untouched keys keep their defaults.
	if cfg.Pool.BackoffFactor != 3 {
		t.Errorf("BackoffFactor = %d, want default 3", cfg.Pool.BackoffFactor)
	}
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFromPath should fail for a missing file")
	}
}
