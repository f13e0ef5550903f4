package models

import "testing"

func TestWorkerStatus_Valid(t *testing.T) {
	valid := []WorkerStatus{
		WorkerStatusIdle, WorkerStatusWorking, WorkerStatusReviewing, WorkerStatusWaiting,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("status %q should be valid", s)
		}
	}
	if WorkerStatus("running").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestWorker_Validate(t *testing.T) {
	tests := []struct {
		name    string
		worker  Worker
		wantErr error
	}{
		{
			name:   "permanent root",
			worker: Worker{ID: "h1", Status: WorkerStatusIdle, Lifecycle: LifecyclePermanent, Depth: 0},
		},
		{
			name:    "permanent with depth",
			worker:  Worker{ID: "h1", Status: WorkerStatusIdle, Lifecycle: LifecyclePermanent, Depth: 1},
			wantErr: ErrDepthMismatch,
		},
		{
			name:   "temporary depth 1",
			worker: Worker{ID: "h2", Status: WorkerStatusIdle, Lifecycle: LifecycleTemporary, Depth: 1, CreatedByHollonID: "h1"},
		},
		{
			name:    "temporary depth 2",
			worker:  Worker{ID: "h2", Status: WorkerStatusIdle, Lifecycle: LifecycleTemporary, Depth: 2, CreatedByHollonID: "h1"},
			wantErr: ErrDepthLimit,
		},
		{
			name:    "temporary without creator",
			worker:  Worker{ID: "h2", Status: WorkerStatusIdle, Lifecycle: LifecycleTemporary, Depth: 1},
			wantErr: ErrOrphanTemporary,
		},
		{
			name:    "invalid lifecycle",
			worker:  Worker{ID: "h1", Status: WorkerStatusIdle, Lifecycle: "ephemeral"},
			wantErr: ErrInvalidLifecycle,
		},
		{
			name:    "invalid status",
			worker:  Worker{ID: "h1", Status: "busy", Lifecycle: LifecyclePermanent},
			wantErr: ErrInvalidStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.worker.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
