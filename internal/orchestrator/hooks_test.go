package orchestrator

import (
	"testing"
	"time"

	"github.com/pbc1017/hollon-ai-sub003/internal/config"
	"github.com/pbc1017/hollon-ai-sub003/internal/delegate"
	"github.com/pbc1017/hollon-ai-sub003/internal/directory"
	"github.com/pbc1017/hollon-ai-sub003/internal/escalate"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

func addTempWorker(t *testing.T, db *store.DB, id, creator string) {
	t.Helper()
	err := db.CreateWorker(&models.Worker{
		ID:                id,
		OrganizationID:    "org",
		Name:              id,
		Status:            models.WorkerStatusIdle,
		Lifecycle:         models.LifecycleTemporary,
		Depth:             1,
		CreatedByHollonID: creator,
		CreatedAt:         time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateWorker(%s): %v", id, err)
	}
}

func drainEvents(emitter *EventEmitter) []Event {
	var events []Event
	for {
		select {
		case ev := <-emitter.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestCleanupHook_AnnouncesRemovedWorkers(t *testing.T) {
	db := openTestDB(t)
	addWorker(t, db, "delegator")
	addTempWorker(t, db, "tmp1", "delegator")

	now := time.Now()
	addTask(t, db, &models.Task{ID: "parent", AssignedHollonID: "delegator", Status: models.TaskStatusCompleted, CompletedAt: &now})
	addTask(t, db, &models.Task{ID: "sub", ParentTaskID: "parent", AssignedHollonID: "tmp1", Status: models.TaskStatusCompleted, CompletedAt: &now})

	emitter := NewEventEmitter(16)
	t.Cleanup(emitter.Close)

	eng := delegate.New(db, db, &scriptedProvider{}, config.Default().Delegation)
	hook := CleanupHook(eng, emitter)
	hook("parent")

	if _, err := db.GetWorker("tmp1"); err == nil {
		t.Error("temporary worker tmp1 still exists after cleanup")
	}

	events := drainEvents(emitter)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != EventWorkerRemoved {
		t.Errorf("event type = %s, want %s", events[0].Type, EventWorkerRemoved)
	}
	if events[0].WorkerID != "tmp1" {
		t.Errorf("event workerID = %s, want tmp1", events[0].WorkerID)
	}
}

func TestCeilingHook_EscalatesAndAnnounces(t *testing.T) {
	db := openTestDB(t)
	if err := db.CreateTeam(&models.Team{
		ID:             "team1",
		OrganizationID: "org",
		Name:           "core",
	}); err != nil {
		t.Fatal(err)
	}
	err := db.CreateWorker(&models.Worker{
		ID:             "dev",
		OrganizationID: "org",
		TeamID:         "team1",
		Name:           "dev",
		Status:         models.WorkerStatusIdle,
		Lifecycle:      models.LifecyclePermanent,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	// The row looks like the pool just backed it off for the last time.
	blocked := time.Now().Add(5 * time.Minute)
	task := &models.Task{
		ID:                  "hot",
		AssignedHollonID:    "dev",
		ConsecutiveFailures: 3,
		BlockedUntil:        &blocked,
		Error:               "tests keep failing",
	}
	addTask(t, db, task)

	emitter := NewEventEmitter(16)
	t.Cleanup(emitter.Close)

	ladder := escalate.New(db, db, directory.New(db, db))
	hook := CeilingHook(ladder, emitter)
	hook(task)

	got, err := db.GetTask("hot")
	if err != nil {
		t.Fatal(err)
	}
	if got.AssignedTeamID != "team1" || got.AssignedHollonID != "" {
		t.Errorf("assignment = (%q, %q), want team1 with no worker", got.AssignedHollonID, got.AssignedTeamID)
	}
	if got.Status != models.TaskStatusReady {
		t.Errorf("status = %s, want ready", got.Status)
	}
	if got.BlockedUntil != nil {
		t.Errorf("blockedUntil = %v, want nil", got.BlockedUntil)
	}

	events := drainEvents(emitter)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != EventEscalation {
		t.Errorf("event type = %s, want %s", events[0].Type, EventEscalation)
	}
	if events[0].TaskID != "hot" {
		t.Errorf("event taskID = %s, want hot", events[0].TaskID)
	}
}
