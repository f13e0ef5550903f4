package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootOrgID string

var rootCmd = &cobra.Command{
	Use:   "hollon",
	Short: "Task orchestration engine for autonomous workers",
	Long: `Hollon coordinates autonomous workers over a shared task pool.

Workers pull ready tasks atomically, execute or delegate them, and
record outcomes. Complex tasks are decomposed into subtasks handed to
temporary depth-1 workers; team epics are distributed across team
members; stuck work climbs a five-level escalation ladder that ends at
a human.

Core capabilities:
- Atomic task claiming with geometric failure backoff
- Dependency-driven readiness (blocked tasks unblock as upstreams finish)
- Bounded delegation: one level of temporary sub-workers, cleaned up
  when the parent task completes
- Team epic distribution across members
- Escalation: self, team, leader, organization, human`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootOrgID, "org", "", "Organization ID (defaults to the only org in the database)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dashCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
}
