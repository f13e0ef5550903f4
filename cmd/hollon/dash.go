package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pbc1017/hollon-ai-sub003/internal/config"
	"github.com/pbc1017/hollon-ai-sub003/internal/orchestrator"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/internal/tui"
)

var dashOffline bool

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Run the engine with a live dashboard",
	Long: `Start the worker loops with a terminal dashboard on top.

The dashboard shows task counts, the worker roster (temporary workers
marked with ~), and a scrolling event log fed by the engine's event
stream. Quitting the dashboard shuts the engine down.`,
	RunE: runDash,
}

func init() {
	dashCmd.Flags().BoolVar(&dashOffline, "offline", false, "Use the deterministic template provider instead of the Anthropic API")
}

func runDash(cmd *cobra.Command, args []string) error {
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

	provider, err := newBrainProvider(cfg, dashOffline)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(cfg, db, orgID, provider, cwd)
	if err != nil {
		return err
	}
	defer eng.close()

	// Log output corrupts the alt screen while the TUI is active.
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	program := tui.NewProgram(tui.NewDash(db, db, orgID))

	go forwardEvents(program, eng.emitter)

	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- eng.runner.Run(ctx)
	}()

	_, tuiErr := program.Run()

	// Dashboard closed; bring the engine down with it.
	stop()
	runnerErr := <-runnerDone
	if errors.Is(runnerErr, context.Canceled) {
		runnerErr = nil
	}

	if tuiErr != nil {
		return fmt.Errorf("dashboard: %w", tuiErr)
	}
	return runnerErr
}

// forwardEvents bridges the engine's event stream into the TUI.
func forwardEvents(program *tea.Program, emitter *orchestrator.EventEmitter) {
	for ev := range emitter.Events() {
		program.Send(tui.EventMsg{Event: ev})
	}
}
