package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pbc1017/hollon-ai-sub003/internal/notify"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/internal/workspace"
)

var (
	cleanupOlderThan    time.Duration
	cleanupWorkspaceDir string
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge old completed work and stale workspaces",
	Long: `Clean up finished state from the project.

This command:
  - Deletes completed and cancelled tasks older than the cutoff
  - Removes task workspaces untouched for longer than the cutoff
  - Clears any leftover stop/pause signals

Examples:
  hollon cleanup                    # purge anything older than 30 days
  hollon cleanup --older-than 24h   # tighter cutoff`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 30*24*time.Hour, "Age cutoff for purged tasks and workspaces")
	cleanupCmd.Flags().StringVar(&cleanupWorkspaceDir, "workspace-dir", "", "Base directory for task workspaces")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := store.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No project database. Nothing to clean.")
		return nil
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	purged, err := db.PurgeCompletedTasks(cleanupOlderThan)
	if err != nil {
		return fmt.Errorf("purge tasks: %w", err)
	}
	printStatus("✓", fmt.Sprintf("Purged %d finished tasks", purged), color.FgGreen)

	workspaces, err := workspace.NewManager(cleanupWorkspaceDir)
	if err != nil {
		return fmt.Errorf("open workspaces: %w", err)
	}
	swept, err := workspaces.SweepStale(cleanupOlderThan)
	if err != nil {
		return fmt.Errorf("sweep workspaces: %w", err)
	}
	printStatus("✓", fmt.Sprintf("Removed %d stale workspaces", swept), color.FgGreen)

	signals, err := notify.NewSignalManager(cwd)
	if err == nil {
		signals.ClearSignals()
		signals.Close()
		printStatus("✓", "Cleared operator signals", color.FgGreen)
	}

	return nil
}
