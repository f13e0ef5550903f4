package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pbc1017/hollon-ai-sub003/internal/brain"
	"github.com/pbc1017/hollon-ai-sub003/internal/config"
	"github.com/pbc1017/hollon-ai-sub003/internal/delegate"
	"github.com/pbc1017/hollon-ai-sub003/internal/depgraph"
	"github.com/pbc1017/hollon-ai-sub003/internal/pool"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

// scriptedProvider executes tasks according to a per-task script.
type scriptedProvider struct {
	results map[string]*brain.ExecutionResult
	errs    map[string]error
	plan    *brain.Plan
}

func (s *scriptedProvider) Decompose(context.Context, brain.DecomposeRequest) (*brain.Plan, error) {
	if s.plan == nil {
		return nil, errors.New("no plan scripted")
	}
	return s.plan, nil
}

func (s *scriptedProvider) Execute(_ context.Context, task *models.Task, _ *models.Worker) (*brain.ExecutionResult, error) {
	if err := s.errs[task.ID]; err != nil {
		return nil, err
	}
	if res := s.results[task.ID]; res != nil {
		return res, nil
	}
	return &brain.ExecutionResult{Success: true, Summary: "done"}, nil
}

func addWorker(t *testing.T, db *store.DB, id string) {
	t.Helper()
	err := db.CreateWorker(&models.Worker{
		ID:             id,
		OrganizationID: "org",
		Name:           id,
		Status:         models.WorkerStatusIdle,
		Lifecycle:      models.LifecyclePermanent,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateWorker(%s): %v", id, err)
	}
}

func addTask(t *testing.T, db *store.DB, task *models.Task) {
	t.Helper()
	if task.OrganizationID == "" {
		task.OrganizationID = "org"
	}
	if task.Type == "" {
		task.Type = models.TaskTypeImplementation
	}
	if task.Title == "" {
		task.Title = task.ID
	}
	if task.Status == "" {
		task.Status = models.TaskStatusReady
	}
	if task.Priority == 0 {
		task.Priority = models.Priority(2)
	}
	task.CreatedAt = time.Now()
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask(%s): %v", task.ID, err)
	}
}

func newCycle(db *store.DB, provider brain.Provider, emitter *EventEmitter) *Cycle {
	cfg := config.Default()
	eng := delegate.New(db, db, provider, cfg.Delegation)
	resolver := depgraph.New(db, depgraph.WithParentCompletedHook(CleanupHook(eng, emitter)))
	return NewCycle(CycleConfig{
		Pool:      pool.New(db, db, cfg.Pool),
		Resolver:  resolver,
		Delegator: eng,
		Provider:  provider,
		Tasks:     db,
		Workers:   db,
		Emitter:   emitter,
	})
}

func TestRunOnce_NothingToDo(t *testing.T) {
	db := openTestDB(t)
	addWorker(t, db, "w1")

	c := newCycle(db, &scriptedProvider{}, nil)

	worked, err := c.RunOnce(context.Background(), "w1")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if worked {
		t.Error("worked = true with an empty pool")
	}
}

func TestRunOnce_ExecutesAndCompletes(t *testing.T) {
	db := openTestDB(t)
	addWorker(t, db, "w1")
	addTask(t, db, &models.Task{ID: "t1", AssignedHollonID: "w1"})

	c := newCycle(db, &scriptedProvider{}, nil)

	worked, err := c.RunOnce(context.Background(), "w1")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !worked {
		t.Fatal("worked = false")
	}

	task, err := db.GetTask("t1")
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != models.TaskStatusCompleted {
		t.Errorf("status = %s, want completed", task.Status)
	}

	w, err := db.GetWorker("w1")
	if err != nil {
		t.Fatal(err)
	}
	if w.Status != models.WorkerStatusIdle {
		t.Errorf("worker status = %s, want idle", w.Status)
	}
}

func TestRunOnce_PersistsAffectedFiles(t *testing.T) {
	db := openTestDB(t)
	addWorker(t, db, "w1")
	addTask(t, db, &models.Task{ID: "t1", AssignedHollonID: "w1"})

	provider := &scriptedProvider{results: map[string]*brain.ExecutionResult{
		"t1": {Success: true, Summary: "done", FilesChanged: []string{"a.go", "b.go"}},
	}}
	c := newCycle(db, provider, nil)

	if _, err := c.RunOnce(context.Background(), "w1"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	task, err := db.GetTask("t1")
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != models.TaskStatusCompleted {
		t.Fatalf("status = %s, want completed", task.Status)
	}
	if len(task.AffectedFiles) != 2 || task.AffectedFiles[0] != "a.go" || task.AffectedFiles[1] != "b.go" {
		t.Errorf("affectedFiles = %v, want [a.go b.go]", task.AffectedFiles)
	}
}

func TestRunOnce_FailureBacksOff(t *testing.T) {
	db := openTestDB(t)
	addWorker(t, db, "w1")
	addTask(t, db, &models.Task{ID: "t1", AssignedHollonID: "w1"})

	provider := &scriptedProvider{errs: map[string]error{"t1": errors.New("provider timeout")}}
	c := newCycle(db, provider, nil)

	worked, err := c.RunOnce(context.Background(), "w1")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !worked {
		t.Fatal("worked = false")
	}

	task, err := db.GetTask("t1")
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != models.TaskStatusReady {
		t.Errorf("status = %s, want ready", task.Status)
	}
	if task.ConsecutiveFailures != 1 {
		t.Errorf("consecutiveFailures = %d, want 1", task.ConsecutiveFailures)
	}
	if task.BlockedUntil == nil {
		t.Error("blockedUntil not set")
	}
}

func TestRunOnce_UnsuccessfulResultFails(t *testing.T) {
	db := openTestDB(t)
	addWorker(t, db, "w1")
	addTask(t, db, &models.Task{ID: "t1", AssignedHollonID: "w1"})

	provider := &scriptedProvider{results: map[string]*brain.ExecutionResult{
		"t1": {Success: false, FailureReason: "tests failed"},
	}}
	emitter := NewEventEmitter(16)
	c := newCycle(db, provider, emitter)

	if _, err := c.RunOnce(context.Background(), "w1"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	task, err := db.GetTask("t1")
	if err != nil {
		t.Fatal(err)
	}
	if task.ConsecutiveFailures != 1 {
		t.Errorf("consecutiveFailures = %d, want 1", task.ConsecutiveFailures)
	}

	// Claim and failure both produce events.
	var types []EventType
	for len(emitter.Events()) > 0 {
		types = append(types, (<-emitter.Events()).Type)
	}
	if len(types) != 2 || types[0] != EventTaskClaimed || types[1] != EventTaskFailed {
		t.Errorf("events = %v", types)
	}
}

func TestRunOnce_DelegatesComplexTask(t *testing.T) {
	db := openTestDB(t)
	addWorker(t, db, "root")
	addTask(t, db, &models.Task{
		ID:                  "big",
		AssignedHollonID:    "root",
		EstimatedComplexity: models.ComplexityHigh,
		StoryPoints:         13,
	})

	provider := &scriptedProvider{plan: &brain.Plan{Subtasks: []brain.SubtaskSpec{
		{Title: "part a", RoleName: "coder"},
		{Title: "part b", DependsOn: []string{"part a"}, RoleName: "coder"},
	}}}
	c := newCycle(db, provider, nil)

	worked, err := c.RunOnce(context.Background(), "root")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !worked {
		t.Fatal("worked = false")
	}

	subtasks, err := db.ListTasksByParent("big")
	if err != nil {
		t.Fatal(err)
	}
	if len(subtasks) != 2 {
		t.Fatalf("got %d subtasks, want 2", len(subtasks))
	}

	parent, err := db.GetTask("big")
	if err != nil {
		t.Fatal(err)
	}
	if parent.Status != models.TaskStatusInProgress {
		t.Errorf("parent status = %s, want in_progress", parent.Status)
	}
}

func TestRunOnce_SubtaskCompletionRollsUpAndCleansWorkers(t *testing.T) {
	db := openTestDB(t)
	addWorker(t, db, "root")
	addTask(t, db, &models.Task{
		ID:                  "big",
		AssignedHollonID:    "root",
		EstimatedComplexity: models.ComplexityHigh,
	})

	provider := &scriptedProvider{plan: &brain.Plan{Subtasks: []brain.SubtaskSpec{
		{Title: "only part", RoleName: "coder"},
	}}}
	c := newCycle(db, provider, nil)

	// Delegate, then run the temporary worker's own cycle to finish
	// the single subtask; the parent must complete and the temporary
	// worker must be reclaimed.
	if _, err := c.RunOnce(context.Background(), "root"); err != nil {
		t.Fatalf("delegation cycle: %v", err)
	}

	subtasks, err := db.ListTasksByParent("big")
	if err != nil {
		t.Fatal(err)
	}
	if len(subtasks) != 1 {
		t.Fatalf("got %d subtasks, want 1", len(subtasks))
	}
	tempWorker := subtasks[0].AssignedHollonID

	worked, err := c.RunOnce(context.Background(), tempWorker)
	if err != nil {
		t.Fatalf("subtask cycle: %v", err)
	}
	if !worked {
		t.Fatal("temporary worker found no work")
	}

	parent, err := db.GetTask("big")
	if err != nil {
		t.Fatal(err)
	}
	if parent.Status != models.TaskStatusCompleted {
		t.Errorf("parent status = %s, want completed", parent.Status)
	}

	if _, err := db.GetWorker(tempWorker); err == nil {
		t.Error("temporary worker still exists after parent completion")
	}
}

func TestRunOnce_FanInUnblocksInOrder(t *testing.T) {
	db := openTestDB(t)
	addWorker(t, db, "w1")

	addTask(t, db, &models.Task{ID: "parent", AssignedHollonID: "w1", Status: models.TaskStatusInProgress})
	addTask(t, db, &models.Task{ID: "a", ParentTaskID: "parent", Depth: 1, AssignedHollonID: "w1"})
	addTask(t, db, &models.Task{ID: "b", ParentTaskID: "parent", Depth: 1, AssignedHollonID: "w1"})
	addTask(t, db, &models.Task{
		ID: "join", ParentTaskID: "parent", Depth: 1, AssignedHollonID: "w1",
		Status: models.TaskStatusBlocked, Dependencies: []string{"a", "b"},
	})

	c := newCycle(db, &scriptedProvider{}, nil)

	// First completion: join must stay blocked.
	if _, err := c.RunOnce(context.Background(), "w1"); err != nil {
		t.Fatal(err)
	}
	join, err := db.GetTask("join")
	if err != nil {
		t.Fatal(err)
	}
	if join.Status != models.TaskStatusBlocked {
		t.Errorf("join status after one completion = %s, want blocked", join.Status)
	}

	// Second completion: join becomes ready.
	if _, err := c.RunOnce(context.Background(), "w1"); err != nil {
		t.Fatal(err)
	}
	join, err = db.GetTask("join")
	if err != nil {
		t.Fatal(err)
	}
	if join.Status != models.TaskStatusReady {
		t.Errorf("join status after both completions = %s, want ready", join.Status)
	}

	// Third cycle executes join; all children done, parent completes.
	if _, err := c.RunOnce(context.Background(), "w1"); err != nil {
		t.Fatal(err)
	}
	parent, err := db.GetTask("parent")
	if err != nil {
		t.Fatal(err)
	}
	if parent.Status != models.TaskStatusCompleted {
		t.Errorf("parent status = %s, want completed", parent.Status)
	}
}
