package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/pbc1017/hollon-ai-sub003/internal/config"
	"github.com/pbc1017/hollon-ai-sub003/internal/distribute"
	"github.com/pbc1017/hollon-ai-sub003/internal/notify"
	"github.com/pbc1017/hollon-ai-sub003/internal/pool"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// Runner drives the whole engine: it keeps one control loop per live
// worker, distributes ready team epics, and reacts to operator signals.
// There is no central scheduler; readiness is data-driven through task
// status and blockedUntil, so each loop just polls the pool.
type Runner struct {
	cycle       *Cycle
	distributor *distribute.Distributor
	tasks       store.TaskStore
	workers     store.WorkerStore
	orgID       string
	cfg         config.RunnerConfig
	signals     *notify.SignalManager
	emitter     *EventEmitter

	mu    sync.Mutex
	loops map[string]context.CancelFunc

	wg sync.WaitGroup
}

// RunnerConfig collects a Runner's collaborators.
type RunnerConfig struct {
	Cycle       *Cycle
	Distributor *distribute.Distributor
	Tasks       store.TaskStore
	Workers     store.WorkerStore
	OrgID       string
	Config      config.RunnerConfig
	Signals     *notify.SignalManager
	Emitter     *EventEmitter
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		cycle:       cfg.Cycle,
		distributor: cfg.Distributor,
		tasks:       cfg.Tasks,
		workers:     cfg.Workers,
		orgID:       cfg.OrgID,
		cfg:         cfg.Config,
		signals:     cfg.Signals,
		emitter:     cfg.Emitter,
		loops:       make(map[string]context.CancelFunc),
	}
}

// Run reconciles worker loops until the context is cancelled or a stop
// signal arrives. Temporary workers spawned mid-run get loops on the
// next reconcile tick; loops for deleted workers exit on their own.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticker := time.NewTicker(r.cfg.IdleInterval)
	defer ticker.Stop()

	for {
		if r.signals != nil && r.signals.ShouldStop() {
			log.Printf("[runner] stop signal received")
			break
		}

		paused := r.signals != nil && r.signals.ShouldPause()
		if !paused {
			if err := r.distributeReadyEpics(ctx); err != nil {
				log.Printf("[runner] distribute epics: %v", err)
			}
			if err := r.reconcileLoops(ctx); err != nil {
				log.Printf("[runner] reconcile loops: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			r.stopLoops()
			r.wg.Wait()
			r.emit(Event{Type: EventRunnerStopped})
			return ctx.Err()
		case <-ticker.C:
		}
	}

	cancel()
	r.stopLoops()
	r.wg.Wait()
	r.emit(Event{Type: EventRunnerStopped})
	return nil
}

// distributeReadyEpics fans out every READY team epic. Epics are not
// claimable, so nothing races this.
func (r *Runner) distributeReadyEpics(ctx context.Context) error {
	if r.distributor == nil {
		return nil
	}

	ready, err := r.tasks.ListTasksByStatus(models.TaskStatusReady)
	if err != nil {
		return err
	}
	for _, task := range ready {
		if task.Depth != 0 || task.Type != models.TaskTypeTeamEpic || task.AssignedTeamID == "" {
			continue
		}
		if _, err := r.distributor.DistributeToTeam(ctx, task.ID); err != nil {
			log.Printf("[runner] distribute epic %s: %v", task.ID, err)
			continue
		}
		r.emit(Event{Type: EventEpicDistributed, TaskID: task.ID, TaskTitle: task.Title})
	}
	return nil
}

// reconcileLoops starts a loop for every live worker that lacks one.
func (r *Runner) reconcileLoops(ctx context.Context) error {
	workers, err := r.workers.ListWorkersByOrg(r.orgID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range workers {
		if _, running := r.loops[w.ID]; running {
			continue
		}
		if r.cfg.MaxWorkers > 0 && len(r.loops) >= r.cfg.MaxWorkers {
			break
		}

		loopCtx, cancel := context.WithCancel(ctx)
		r.loops[w.ID] = cancel
		r.wg.Add(1)
		go r.workerLoop(loopCtx, w.ID)
	}
	return nil
}

// workerLoop is one worker's control loop. It exits when the context is
// cancelled or the worker disappears from the registry.
func (r *Runner) workerLoop(ctx context.Context, workerID string) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		delete(r.loops, workerID)
		r.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if r.signals != nil && r.signals.ShouldPause() {
			if !sleepCtx(ctx, r.cfg.IdleInterval) {
				return
			}
			continue
		}

		worked, err := r.cycle.RunOnce(ctx, workerID)
		if err != nil {
			if workerGone(err) {
				log.Printf("[runner] worker %s removed, stopping its loop", workerID)
				return
			}
			log.Printf("[runner] worker %s cycle: %v", workerID, err)
		}
		if !worked {
			if !sleepCtx(ctx, r.cfg.IdleInterval) {
				return
			}
		}
	}
}

func (r *Runner) stopLoops() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.loops {
		cancel()
	}
}

func (r *Runner) emit(e Event) {
	if r.emitter != nil {
		r.emitter.Emit(e)
	}
}

// workerGone matches errors caused by the worker row being deleted,
// which is how temporary worker loops learn they are done.
func workerGone(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pool.ErrWorkerNotFound)
}

// sleepCtx sleeps for d unless the context ends first.
// Returns false when the context ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
