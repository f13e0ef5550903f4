package store

import (
	"errors"
	"testing"
	"time"

	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

func newWorker(id string) *models.Worker {
	return &models.Worker{
		ID:             id,
		OrganizationID: "org",
		TeamID:         "team1",
		RoleID:         "backend",
		Name:           "worker " + id,
		Status:         models.WorkerStatusIdle,
		Lifecycle:      models.LifecyclePermanent,
		CreatedAt:      time.Now(),
	}
}

func TestCreateWorker_RoundTrip(t *testing.T) {
	db := openTestDB(t)

	w := newWorker("h1")
	w.Skills = []string{"go", "postgres"}
	w.ManagerID = "h0"

	if err := db.CreateWorker(w); err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}

	got, err := db.GetWorker("h1")
	if err != nil {
		t.Fatalf("GetWorker: %v", err)
	}
	if got.Name != w.Name {
		t.Errorf("Name = %q, want %q", got.Name, w.Name)
	}
	if got.Lifecycle != models.LifecyclePermanent {
		t.Errorf("Lifecycle = %s, want permanent", got.Lifecycle)
	}
	if got.ManagerID != "h0" {
		t.Errorf("ManagerID = %q, want h0", got.ManagerID)
	}
	if len(got.Skills) != 2 {
		t.Errorf("Skills = %v, want 2 entries", got.Skills)
	}
}

func TestCreateWorker_RejectsInvalidDepth(t *testing.T) {
	db := openTestDB(t)

	w := newWorker("h1")
	w.Lifecycle = models.LifecycleTemporary
	w.Depth = 2
	w.CreatedByHollonID = "h0"

	err := db.CreateWorker(w)
	if !errors.Is(err, models.ErrDepthLimit) {
		t.Errorf("CreateWorker = %v, want ErrDepthLimit", err)
	}
}

func TestDeleteTemporaryWorker(t *testing.T) {
	db := openTestDB(t)

	temp := newWorker("h-temp")
	temp.Lifecycle = models.LifecycleTemporary
	temp.Depth = 1
	temp.CreatedByHollonID = "h1"
	if err := db.CreateWorker(temp); err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}

	if err := db.DeleteTemporaryWorker("h-temp"); err != nil {
		t.Fatalf("DeleteTemporaryWorker: %v", err)
	}
	if _, err := db.GetWorker("h-temp"); err == nil {
		t.Error("temporary worker should be gone")
	}
}

func TestDeleteTemporaryWorker_RefusesPermanent(t *testing.T) {
	db := openTestDB(t)

	perm := newWorker("h1")
	if err := db.CreateWorker(perm); err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}

	err := db.DeleteTemporaryWorker("h1")
	if !errors.Is(err, models.ErrPermanentWorker) {
		t.Errorf("DeleteTemporaryWorker = %v, want ErrPermanentWorker", err)
	}

	if _, err := db.GetWorker("h1"); err != nil {
		t.Errorf("permanent worker must survive: %v", err)
	}
}

func TestSetWorkerStatus(t *testing.T) {
	db := openTestDB(t)

	if err := db.CreateWorker(newWorker("h1")); err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}

	if err := db.SetWorkerStatus("h1", models.WorkerStatusWorking, time.Now()); err != nil {
		t.Fatalf("SetWorkerStatus: %v", err)
	}

	got, err := db.GetWorker("h1")
	if err != nil {
		t.Fatalf("GetWorker: %v", err)
	}
	if got.Status != models.WorkerStatusWorking {
		t.Errorf("Status = %s, want working", got.Status)
	}
	if got.LastActiveAt == nil {
		t.Error("LastActiveAt should be set")
	}

	if err := db.SetWorkerStatus("h1", "bogus", time.Now()); !errors.Is(err, models.ErrInvalidStatus) {
		t.Errorf("SetWorkerStatus(bogus) = %v, want ErrInvalidStatus", err)
	}
}

func TestListWorkersByCreator(t *testing.T) {
	db := openTestDB(t)

	for _, id := range []string{"tmp-a", "tmp-b"} {
		w := newWorker(id)
		w.Lifecycle = models.LifecycleTemporary
		w.Depth = 1
		w.CreatedByHollonID = "h1"
		if err := db.CreateWorker(w); err != nil {
			t.Fatalf("CreateWorker(%s): %v", id, err)
		}
	}
	if err := db.CreateWorker(newWorker("h2")); err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}

	got, err := db.ListWorkersByCreator("h1")
	if err != nil {
		t.Fatalf("ListWorkersByCreator: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d workers, want 2", len(got))
	}
}
