package main

import (
	"path/filepath"
	"testing"

	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSeedDemoOrg(t *testing.T) {
	db := openTestDB(t)

	seeded, err := seedDemoOrg(db)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !seeded {
		t.Fatal("expected empty database to be seeded")
	}

	workers, err := db.ListWorkersByOrg("demo")
	if err != nil {
		t.Fatalf("list workers: %v", err)
	}
	if len(workers) != 3 {
		t.Fatalf("workers = %d, want 3", len(workers))
	}
	for _, w := range workers {
		if w.Lifecycle != models.LifecyclePermanent || w.Depth != 0 {
			t.Errorf("worker %s: lifecycle=%s depth=%d, want permanent depth 0", w.Name, w.Lifecycle, w.Depth)
		}
	}

	teams, err := db.ListTeamsByOrg("demo")
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	if len(teams) != 1 {
		t.Fatalf("teams = %d, want 1", len(teams))
	}
	if teams[0].ManagerHollonID == "" {
		t.Error("seeded team has no manager")
	}

	// Second run is a no-op.
	seeded, err = seedDemoOrg(db)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if seeded {
		t.Error("expected populated database to be left alone")
	}
}

func TestResolveOrgID(t *testing.T) {
	db := openTestDB(t)

	if _, err := resolveOrgID(db); err == nil {
		t.Error("expected error for empty database")
	}

	if _, err := seedDemoOrg(db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	org, err := resolveOrgID(db)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if org != "demo" {
		t.Errorf("org = %q, want demo", org)
	}

	rootOrgID = "other"
	defer func() { rootOrgID = "" }()
	org, err = resolveOrgID(db)
	if err != nil {
		t.Fatalf("resolve with --org: %v", err)
	}
	if org != "other" {
		t.Errorf("org = %q, want other", org)
	}
}

func TestResolveTeamID(t *testing.T) {
	db := openTestDB(t)
	if _, err := seedDemoOrg(db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	teams, err := db.ListTeamsByOrg("demo")
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}

	t.Run("only team by default", func(t *testing.T) {
		id, err := resolveTeamID(db, "demo")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if id != teams[0].ID {
			t.Errorf("team = %q, want %q", id, teams[0].ID)
		}
	})

	t.Run("by name", func(t *testing.T) {
		runTeam = "core"
		defer func() { runTeam = "" }()
		id, err := resolveTeamID(db, "demo")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if id != teams[0].ID {
			t.Errorf("team = %q, want %q", id, teams[0].ID)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		runTeam = "missing"
		defer func() { runTeam = "" }()
		if _, err := resolveTeamID(db, "demo"); err == nil {
			t.Error("expected error for unknown team")
		}
	})
}
