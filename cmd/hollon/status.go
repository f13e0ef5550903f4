package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pool and worker state",
	Long: `Display a snapshot of the task pool and the worker roster.

Shows:
  - Task counts per status
  - Workers, their lifecycle, and current status
  - Failed tasks with their most recent errors`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := store.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No project database. Run 'hollon init' first.")
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

	orgID, err := resolveOrgID(db)
	if err != nil {
		return err
	}

	counts, err := db.CountTasksByStatus()
	if err != nil {
		return fmt.Errorf("count tasks: %w", err)
	}
	displayCounts(counts)

	workers, err := db.ListWorkersByOrg(orgID)
	if err != nil {
		return fmt.Errorf("list workers: %w", err)
	}
	displayWorkers(workers)

	failed, err := db.ListTasksByStatus(models.TaskStatusFailed)
	if err != nil {
		return fmt.Errorf("list failed tasks: %w", err)
	}
	displayFailed(db, failed)

	return nil
}

func displayCounts(counts map[models.TaskStatus]int) {
	bold := color.New(color.Bold)
	bold.Println("Tasks")

	order := []struct {
		status models.TaskStatus
		c      *color.Color
	}{
		{models.TaskStatusPending, color.New(color.FgWhite)},
		{models.TaskStatusReady, color.New(color.FgCyan)},
		{models.TaskStatusBlocked, color.New(color.FgYellow)},
		{models.TaskStatusInProgress, color.New(color.FgBlue)},
		{models.TaskStatusInReview, color.New(color.FgMagenta)},
		{models.TaskStatusCompleted, color.New(color.FgGreen)},
		{models.TaskStatusFailed, color.New(color.FgRed)},
		{models.TaskStatusCancelled, color.New(color.FgHiBlack)},
	}

	total := 0
	for _, o := range order {
		n := counts[o.status]
		total += n
		if n == 0 {
			continue
		}
		fmt.Printf("  %s %d\n", o.c.Sprintf("%-12s", string(o.status)), n)
	}
	if total == 0 {
		fmt.Println("  (empty pool)")
	}
	fmt.Println()
}

func displayWorkers(workers []*models.Worker) {
	bold := color.New(color.Bold)
	bold.Println("Workers")

	if len(workers) == 0 {
		fmt.Println("  (none)")
		fmt.Println()
		return
	}

	for _, w := range workers {
		lifecycle := ""
		if w.Lifecycle == models.LifecycleTemporary {
			lifecycle = color.YellowString(" [temp]")
		}
		statusColor := color.New(color.FgHiBlack)
		if w.Status == models.WorkerStatusWorking {
			statusColor = color.New(color.FgBlue)
		}
		active := ""
		if w.LastActiveAt != nil {
			active = fmt.Sprintf("  active %s ago", time.Since(*w.LastActiveAt).Round(time.Second))
		}
		fmt.Printf("  %-20s %s%s%s\n", w.Name, statusColor.Sprint(string(w.Status)), lifecycle, active)
	}
	fmt.Println()
}

func displayFailed(tasks store.TaskStore, failed []*models.Task) {
	if len(failed) == 0 {
		return
	}

	color.New(color.Bold, color.FgRed).Println("Failed tasks")
	for _, t := range failed {
		reason := t.Error
		if len(reason) > 80 {
			reason = reason[:80] + "..."
		}
		reason = strings.ReplaceAll(reason, "\n", " ")

		downstream := ""
		if deps, err := tasks.ListDependents(t.ID); err == nil && len(deps) > 0 {
			downstream = color.YellowString(" (blocks %d downstream)", len(deps))
		}
		fmt.Printf("  %s %s%s\n    %s\n", color.RedString(shortTaskID(t.ID)), t.Title, downstream, reason)
	}
	fmt.Println()
}

func shortTaskID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
