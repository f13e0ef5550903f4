package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pbc1017/hollon-ai-sub003/internal/depgraph"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task and its whole subtree",
	Long: `Administratively cancel a task. Every non-completed descendant is
cancelled and unassigned along with it, so delegated or distributed
children never linger as claimable work.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	db, err := store.OpenProject(cwd)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	resolver := depgraph.New(db)
	if err := resolver.CancelSubtree(args[0]); err != nil {
		return fmt.Errorf("cancel task %s: %w", args[0], err)
	}

	fmt.Printf("%s Cancelled task %s and its subtree\n", color.GreenString("✓"), args[0])
	return nil
}
