package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pbc1017/hollon-ai-sub003/internal/brain"
	"github.com/pbc1017/hollon-ai-sub003/internal/config"
	"github.com/pbc1017/hollon-ai-sub003/internal/delegate"
	"github.com/pbc1017/hollon-ai-sub003/internal/depgraph"
	"github.com/pbc1017/hollon-ai-sub003/internal/directory"
	"github.com/pbc1017/hollon-ai-sub003/internal/distribute"
	"github.com/pbc1017/hollon-ai-sub003/internal/escalate"
	"github.com/pbc1017/hollon-ai-sub003/internal/notify"
	"github.com/pbc1017/hollon-ai-sub003/internal/orchestrator"
	"github.com/pbc1017/hollon-ai-sub003/internal/pool"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/internal/workspace"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

var (
	runOffline      bool
	runTeam         string
	runWorkspaceDir string
)

var runCmd = &cobra.Command{
	Use:   "run [epic title]",
	Short: "Start worker loops over the task pool",
	Long: `Start one control loop per registered worker and drive the pool
until interrupted or a stop signal arrives.

With a title argument, a team epic is enqueued first. The runner
distributes it across the team's members, then the worker loops pull
the resulting tasks, executing simple ones and delegating complex ones
to temporary sub-workers.

Operator signals:
  hollon run                # loops until Ctrl-C or a stop signal
  touch .hollon/signals/stop   # graceful shutdown
  touch .hollon/signals/pause  # pause pulling without exiting

Examples:
  hollon run "Add OAuth login" --team core
  hollon run --offline       # no API calls; template decomposition only`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runOffline, "offline", false, "Use the deterministic template provider instead of the Anthropic API")
	runCmd.Flags().StringVar(&runTeam, "team", "", "Team name or ID for the enqueued epic (defaults to the only team)")
	runCmd.Flags().StringVar(&runWorkspaceDir, "workspace-dir", "", "Base directory for task workspaces")
}

func runRun(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.OpenProject(cwd)
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

	provider, err := newBrainProvider(cfg, runOffline)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		if err := enqueueEpic(db, orgID, args[0]); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(cfg, db, orgID, provider, cwd)
	if err != nil {
		return err
	}
	defer eng.close()

	go logEvents(eng.emitter)

	log.Printf("[run] starting runner for org %s", orgID)
	if err := eng.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logUsage(provider)
	return nil
}

// logUsage reports API token consumption for the finished run.
func logUsage(provider brain.Provider) {
	ap, ok := provider.(*brain.AnthropicProvider)
	if !ok {
		return
	}
	tracker := ap.Tracker()
	if tracker.Calls() == 0 {
		return
	}
	in, out := tracker.Total()
	log.Printf("[run] API usage: %d calls, %d input / %d output tokens, est. cost $%.4f",
		tracker.Calls(), in, out, tracker.Cost())
}

// engine bundles the wired collaborators behind 'hollon run'.
type engine struct {
	runner  *orchestrator.Runner
	emitter *orchestrator.EventEmitter
	signals *notify.SignalManager
}

func (e *engine) close() {
	if e.signals != nil {
		e.signals.Close()
	}
	e.emitter.Close()
}

// buildEngine wires stores, pool, resolver, delegation, distribution,
// escalation, and the runner into one ready-to-run assembly.
func buildEngine(cfg *config.Config, db *store.DB, orgID string, provider brain.Provider, projectRoot string) (*engine, error) {
	dir := directory.New(db, db)
	emitter := orchestrator.NewEventEmitter(256)

	delegEngine := delegate.New(db, db, provider, cfg.Delegation)
	distributor := distribute.New(db, dir, provider)

	ladder := escalate.New(db, db, dir,
		escalate.WithDecomposer(delegateAdapter{eng: delegEngine}),
		escalate.WithDistributor(distributeAdapter{d: distributor}),
	)

	p := pool.New(db, db, cfg.Pool,
		pool.WithFailureCeiling(cfg.Escalation.FailureCeiling,
			orchestrator.CeilingHook(ladder, emitter)),
	)

	resolver := depgraph.New(db,
		depgraph.WithParentCompletedHook(orchestrator.CleanupHook(delegEngine, emitter)))

	workspaces, err := workspace.NewManager(runWorkspaceDir)
	if err != nil {
		emitter.Close()
		return nil, fmt.Errorf("create workspace manager: %w", err)
	}

	cycle := orchestrator.NewCycle(orchestrator.CycleConfig{
		Pool:       p,
		Resolver:   resolver,
		Delegator:  delegEngine,
		Provider:   provider,
		Tasks:      db,
		Workers:    db,
		Workspaces: workspaces,
		Emitter:    emitter,
	})

	signals, err := notify.NewSignalManager(projectRoot)
	if err != nil {
		log.Printf("[run] signal manager unavailable: %v", err)
		signals = nil
	}

	runner := orchestrator.NewRunner(orchestrator.RunnerConfig{
		Cycle:       cycle,
		Distributor: distributor,
		Tasks:       db,
		Workers:     db,
		OrgID:       orgID,
		Config:      cfg.Runner,
		Signals:     signals,
		Emitter:     emitter,
	})

	return &engine{runner: runner, emitter: emitter, signals: signals}, nil
}

// resolveOrgID picks the organization to operate on. With --org unset,
// the database must contain exactly one.
func resolveOrgID(db *store.DB) (string, error) {
	if rootOrgID != "" {
		return rootOrgID, nil
	}

	orgs, err := db.ListOrganizationIDs()
	if err != nil {
		return "", fmt.Errorf("list organizations: %w", err)
	}
	switch len(orgs) {
	case 0:
		return "", fmt.Errorf("no workers registered; run 'hollon init' first")
	case 1:
		return orgs[0], nil
	default:
		return "", fmt.Errorf("multiple organizations in database (%d); pass --org", len(orgs))
	}
}

// enqueueEpic creates a READY team epic for the resolved team.
func enqueueEpic(db *store.DB, orgID, title string) error {
	teamID, err := resolveTeamID(db, orgID)
	if err != nil {
		return err
	}

	epic := &models.Task{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Type:           models.TaskTypeTeamEpic,
		Title:          title,
		Status:         models.TaskStatusReady,
		Priority:       models.PriorityP2,
		AssignedTeamID: teamID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.CreateTask(epic); err != nil {
		return fmt.Errorf("enqueue epic: %w", err)
	}
	log.Printf("[run] enqueued epic %s: %s", epic.ID, title)
	return nil
}

// resolveTeamID accepts a team name or ID via --team, or picks the
// org's only team.
func resolveTeamID(db *store.DB, orgID string) (string, error) {
	teams, err := db.ListTeamsByOrg(orgID)
	if err != nil {
		return "", fmt.Errorf("list teams: %w", err)
	}
	if len(teams) == 0 {
		return "", fmt.Errorf("no teams in organization %s", orgID)
	}

	if runTeam == "" {
		if len(teams) == 1 {
			return teams[0].ID, nil
		}
		return "", fmt.Errorf("multiple teams in organization %s; pass --team", orgID)
	}

	for _, t := range teams {
		if t.ID == runTeam || t.Name == runTeam {
			return t.ID, nil
		}
	}
	return "", fmt.Errorf("team %q not found in organization %s", runTeam, orgID)
}

// logEvents drains the event stream into the process log.
func logEvents(emitter *orchestrator.EventEmitter) {
	for ev := range emitter.Events() {
		if ev.Error != nil {
			log.Printf("[event] %s task=%s worker=%s error=%v", ev.Type, ev.TaskID, ev.WorkerID, ev.Error)
			continue
		}
		log.Printf("[event] %s task=%s worker=%s %s", ev.Type, ev.TaskID, ev.WorkerID, ev.Message)
	}
}

// adapters for the escalation ladder's decompose action.

type delegateAdapter struct{ eng *delegate.Engine }

func (a delegateAdapter) Delegate(ctx context.Context, parentTaskID, delegatorID string) error {
	_, err := a.eng.Delegate(ctx, parentTaskID, delegatorID)
	return err
}

type distributeAdapter struct{ d *distribute.Distributor }

func (a distributeAdapter) DistributeToTeam(ctx context.Context, epicID string) error {
	_, err := a.d.DistributeToTeam(ctx, epicID)
	return err
}

var (
	_ escalate.Decomposer      = delegateAdapter{}
	_ escalate.EpicDistributor = distributeAdapter{}
)
