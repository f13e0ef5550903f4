package distribute

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pbc1017/hollon-ai-sub003/internal/brain"
	"github.com/pbc1017/hollon-ai-sub003/internal/directory"
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

type stubProvider struct {
	plan *brain.Plan
	err  error

	gotMembers []brain.Member
}

func (s *stubProvider) Decompose(_ context.Context, req brain.DecomposeRequest) (*brain.Plan, error) {
	s.gotMembers = req.Members
	return s.plan, s.err
}

func (s *stubProvider) Execute(context.Context, *models.Task, *models.Worker) (*brain.ExecutionResult, error) {
	return nil, errors.New("not implemented")
}

func setupTeam(t *testing.T, db *store.DB) {
	t.Helper()

	if err := db.CreateTeam(&models.Team{
		ID:              "team",
		OrganizationID:  "org",
		Name:            "platform",
		ManagerHollonID: "mgr",
	}); err != nil {
		t.Fatal(err)
	}
	for _, w := range []*models.Worker{
		{ID: "mgr", TeamID: "team"},
		{ID: "alice", TeamID: "team", Skills: []string{"go"}},
		{ID: "bob", TeamID: "team", Skills: []string{"sql"}},
	} {
		w.OrganizationID = "org"
		w.Name = w.ID
		w.Status = models.WorkerStatusIdle
		w.Lifecycle = models.LifecyclePermanent
		w.CreatedAt = time.Now()
		if err := db.CreateWorker(w); err != nil {
			t.Fatalf("CreateWorker(%s): %v", w.ID, err)
		}
	}
}

func addEpic(t *testing.T, db *store.DB, id string) {
	t.Helper()
	err := db.CreateTask(&models.Task{
		ID:             id,
		OrganizationID: "org",
		Type:           models.TaskTypeTeamEpic,
		Title:          id,
		Status:         models.TaskStatusReady,
		Priority:       models.Priority(2),
		AssignedTeamID: "team",
		CreatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDistributeToTeam(t *testing.T) {
	db := openTestDB(t)
	setupTeam(t, db)
	addEpic(t, db, "epic")

	provider := &stubProvider{plan: &brain.Plan{Subtasks: []brain.SubtaskSpec{
		{Title: "schema", AssigneeHollonID: "bob"},
		{Title: "handler", DependsOn: []string{"schema"}, AssigneeHollonID: "alice"},
	}}}
	d := New(db, directory.New(db, db), provider)

	res, err := d.DistributeToTeam(context.Background(), "epic")
	if err != nil {
		t.Fatalf("DistributeToTeam: %v", err)
	}
	if len(res.Tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(res.Tasks))
	}

	for _, task := range res.Tasks {
		if task.Depth != 1 {
			t.Errorf("task %s depth = %d, want 1", task.Title, task.Depth)
		}
		if task.AssignedTeamID != "" {
			t.Errorf("task %s still carries team %q", task.Title, task.AssignedTeamID)
		}
		if task.ParentTaskID != "epic" {
			t.Errorf("task %s parent = %s", task.Title, task.ParentTaskID)
		}
	}
	if res.Tasks[0].AssignedHollonID != "bob" || res.Tasks[1].AssignedHollonID != "alice" {
		t.Errorf("assignments = %s, %s", res.Tasks[0].AssignedHollonID, res.Tasks[1].AssignedHollonID)
	}
	if res.Tasks[0].Status != models.TaskStatusReady {
		t.Errorf("dependency-free task status = %s, want ready", res.Tasks[0].Status)
	}
	if res.Tasks[1].Status != models.TaskStatusBlocked {
		t.Errorf("dependent task status = %s, want blocked", res.Tasks[1].Status)
	}

	epic, err := db.GetTask("epic")
	if err != nil {
		t.Fatal(err)
	}
	if epic.Status != models.TaskStatusInProgress {
		t.Errorf("epic status = %s, want in_progress", epic.Status)
	}

	// The provider saw the member roster for skill matching.
	if len(provider.gotMembers) != 3 {
		t.Errorf("provider saw %d members, want 3", len(provider.gotMembers))
	}
}

func TestDistributeToTeam_NeverSpawnsWorkers(t *testing.T) {
	db := openTestDB(t)
	setupTeam(t, db)
	addEpic(t, db, "epic")

	provider := &stubProvider{plan: &brain.Plan{Subtasks: []brain.SubtaskSpec{
		{Title: "only", AssigneeHollonID: "alice"},
	}}}
	d := New(db, directory.New(db, db), provider)

	if _, err := d.DistributeToTeam(context.Background(), "epic"); err != nil {
		t.Fatalf("DistributeToTeam: %v", err)
	}

	workers, err := db.ListWorkersByTeam("team")
	if err != nil {
		t.Fatal(err)
	}
	if len(workers) != 3 {
		t.Errorf("got %d workers after distribution, want the original 3", len(workers))
	}
}

func TestDistributeToTeam_RejectsNonEpics(t *testing.T) {
	db := openTestDB(t)
	setupTeam(t, db)

	tests := []struct {
		name string
		task models.Task
	}{
		{"assigned to a worker", models.Task{
			ID: "t1", AssignedHollonID: "alice",
		}},
		{"no team", models.Task{
			ID: "t2",
		}},
		{"nested", models.Task{
			ID: "t3", ParentTaskID: "t1", Depth: 1, AssignedTeamID: "team",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.task.OrganizationID = "org"
			tt.task.Type = models.TaskTypeImplementation
			tt.task.Title = tt.task.ID
			tt.task.Status = models.TaskStatusReady
			tt.task.Priority = models.Priority(2)
			tt.task.CreatedAt = time.Now()
			if err := db.CreateTask(&tt.task); err != nil {
				t.Fatal(err)
			}

			d := New(db, directory.New(db, db), &stubProvider{})
			if _, err := d.DistributeToTeam(context.Background(), tt.task.ID); !errors.Is(err, ErrNotTeamEpic) {
				t.Errorf("error = %v, want ErrNotTeamEpic", err)
			}
		})
	}
}

func TestDistributeToTeam_UnknownAssigneeFails(t *testing.T) {
	db := openTestDB(t)
	setupTeam(t, db)
	addEpic(t, db, "epic")

	provider := &stubProvider{plan: &brain.Plan{Subtasks: []brain.SubtaskSpec{
		{Title: "ghost work", AssigneeHollonID: "nobody"},
	}}}
	d := New(db, directory.New(db, db), provider)

	if _, err := d.DistributeToTeam(context.Background(), "epic"); err == nil {
		t.Fatal("expected error for unknown assignee")
	}

	// Nothing was created and the epic is untouched.
	children, err := db.ListTasksByParent("epic")
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 0 {
		t.Errorf("got %d children after failed distribution, want 0", len(children))
	}
	epic, err := db.GetTask("epic")
	if err != nil {
		t.Fatal(err)
	}
	if epic.Status != models.TaskStatusReady {
		t.Errorf("epic status = %s, want ready", epic.Status)
	}
}

func TestDistributeToTeam_ProviderFailurePropagates(t *testing.T) {
	db := openTestDB(t)
	setupTeam(t, db)
	addEpic(t, db, "epic")

	d := New(db, directory.New(db, db), &stubProvider{err: errors.New("timeout")})

	if _, err := d.DistributeToTeam(context.Background(), "epic"); err == nil {
		t.Fatal("expected provider error to propagate")
	}
}
