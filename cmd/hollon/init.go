package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

var initNoSeed bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize Hollon in the current directory",
	Long: `Set up the project database, configuration template, and signal
directory for the current project.

This command:
  - Creates the .hollon directory and the SQLite database
  - Applies schema migrations
  - Writes a .hollon.yaml configuration template (if missing)
  - Seeds a demo organization when the database has no workers

Run it once per project before 'hollon run'.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initNoSeed, "no-seed", false, "Skip seeding the demo organization")
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	fmt.Println("Initializing Hollon...")
	fmt.Println()

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	db, err := store.OpenProject(cwd)
	if err != nil {
		printStatus("✗", fmt.Sprintf("Open database: %v", err), color.FgRed)
		return err
	}
	defer db.Close()
	printStatus("✓", fmt.Sprintf("Database ready at %s", db.Path()), color.FgGreen)

	if err := db.Migrate(); err != nil {
		printStatus("✗", fmt.Sprintf("Apply migrations: %v", err), color.FgRed)
		return err
	}
	printStatus("✓", "Schema migrations applied", color.FgGreen)

	if err := os.MkdirAll(filepath.Join(cwd, ".hollon", "signals"), 0755); err != nil {
		return fmt.Errorf("create signals directory: %w", err)
	}
	printStatus("✓", "Created .hollon directory structure", color.FgGreen)

	if created, err := writeConfigTemplate(cwd); err != nil {
		return err
	} else if created {
		printStatus("✓", "Created .hollon.yaml template", color.FgGreen)
	}

	if !initNoSeed {
		seeded, err := seedDemoOrg(db)
		if err != nil {
			return fmt.Errorf("seed demo organization: %w", err)
		}
		if seeded {
			printStatus("✓", "Seeded demo organization (team 'core': manager + 2 developers)", color.FgGreen)
		}
	}

	fmt.Printf("\n%s Hollon initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  hollon status   # inspect the pool")
	fmt.Println("  hollon run      # start worker loops")
	return nil
}

// writeConfigTemplate creates .hollon.yaml if it doesn't exist.
func writeConfigTemplate(projectRoot string) (bool, error) {
	path := filepath.Join(projectRoot, ".hollon.yaml")
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	template := `# Hollon project configuration.
# Values here override ~/.config/hollon/config.yaml.

anthropic:
  # api_key: ""          # defaults to ANTHROPIC_API_KEY
  # model: ""            # defaults to claude-sonnet-4
  # use_aws_bedrock: false
  # aws_region: us-west-2

pool:
  backoff_base: 5m
  backoff_factor: 3
  backoff_cap: 60m
  enforce_file_affinity: true

delegation:
  story_point_threshold: 8
  skill_count_threshold: 2
  max_sub_workers: 5
  # role_template_path: roles.yaml

escalation:
  failure_ceiling: 5

runner:
  idle_interval: 2s
  max_workers: 16
`
	if err := os.WriteFile(path, []byte(template), 0644); err != nil {
		return false, fmt.Errorf("write config template: %w", err)
	}
	return true, nil
}

// seedDemoOrg creates a demo organization when the database is empty,
// so 'hollon run' has a roster to drive.
func seedDemoOrg(db *store.DB) (bool, error) {
	orgs, err := db.ListOrganizationIDs()
	if err != nil {
		return false, err
	}
	if len(orgs) > 0 {
		return false, nil
	}

	now := time.Now().UTC()
	orgID := "demo"

	manager := &models.Worker{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		RoleID:         "manager",
		Name:           "core-manager",
		Status:         models.WorkerStatusIdle,
		Lifecycle:      models.LifecyclePermanent,
		Skills:         []string{"planning", "review"},
		CreatedAt:      now,
	}

	team := &models.Team{
		ID:              uuid.NewString(),
		OrganizationID:  orgID,
		Name:            "core",
		ManagerHollonID: manager.ID,
		LeaderHollonID:  manager.ID,
	}
	if err := db.CreateTeam(team); err != nil {
		return false, err
	}

	manager.TeamID = team.ID
	if err := db.CreateWorker(manager); err != nil {
		return false, err
	}

	devs := []struct {
		name   string
		skills []string
	}{
		{"backend-dev", []string{"go", "sql"}},
		{"frontend-dev", []string{"typescript", "css"}},
	}
	for _, d := range devs {
		w := &models.Worker{
			ID:             uuid.NewString(),
			OrganizationID: orgID,
			TeamID:         team.ID,
			RoleID:         "developer",
			Name:           d.name,
			Status:         models.WorkerStatusIdle,
			Lifecycle:      models.LifecyclePermanent,
			ManagerID:      manager.ID,
			Skills:         d.skills,
			CreatedAt:      now,
		}
		if err := db.CreateWorker(w); err != nil {
			return false, err
		}
	}

	return true, nil
}

// printStatus prints a status line with a colored symbol.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("  %s %s\n", c.Sprint(symbol), message)
}
