package models

import (
	"testing"
	"time"
)

func TestTaskStatus_Valid(t *testing.T) {
	valid := []TaskStatus{
		TaskStatusPending, TaskStatusReady, TaskStatusBlocked, TaskStatusInProgress,
		TaskStatusInReview, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("status %q should be valid", s)
		}
	}

	invalid := []TaskStatus{"", "done", "PENDING", "unknown"}
	for _, s := range invalid {
		if s.Valid() {
			t.Errorf("status %q should be invalid", s)
		}
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	if !TaskStatusCompleted.Terminal() {
		t.Error("completed should be terminal")
	}
	if !TaskStatusCancelled.Terminal() {
		t.Error("cancelled should be terminal")
	}
	if TaskStatusFailed.Terminal() {
		t.Error("failed is retryable, not terminal")
	}
	if TaskStatusReady.Terminal() {
		t.Error("ready should not be terminal")
	}
}

func TestPriority_Valid(t *testing.T) {
	for p := PriorityP1; p <= PriorityP4; p++ {
		if !p.Valid() {
			t.Errorf("priority %d should be valid", p)
		}
	}
	if Priority(0).Valid() {
		t.Error("priority 0 should be invalid")
	}
	if Priority(5).Valid() {
		t.Error("priority 5 should be invalid")
	}
}

func TestTask_Validate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr error
	}{
		{
			name: "unassigned root",
			task: Task{ID: "t1", Status: TaskStatusPending},
		},
		{
			name: "hollon assignee",
			task: Task{ID: "t1", Status: TaskStatusReady, AssignedHollonID: "h1"},
		},
		{
			name: "team assignee",
			task: Task{ID: "t1", Status: TaskStatusReady, AssignedTeamID: "team1"},
		},
		{
			name:    "both assignees",
			task:    Task{ID: "t1", Status: TaskStatusReady, AssignedHollonID: "h1", AssignedTeamID: "team1"},
			wantErr: ErrBothAssignees,
		},
		{
			name:    "invalid status",
			task:    Task{ID: "t1", Status: "bogus"},
			wantErr: ErrInvalidStatus,
		},
		{
			name:    "root with nonzero depth",
			task:    Task{ID: "t1", Status: TaskStatusPending, Depth: 2},
			wantErr: ErrDepthMismatch,
		},
		{
			name: "child with depth",
			task: Task{ID: "t1", Status: TaskStatusPending, ParentTaskID: "t0", Depth: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTask_Claimable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"ready", Task{Status: TaskStatusReady}, true},
		{"ready past backoff", Task{Status: TaskStatusReady, BlockedUntil: &past}, true},
		{"ready inside backoff", Task{Status: TaskStatusReady, BlockedUntil: &future}, false},
		{"pending", Task{Status: TaskStatusPending}, false},
		{"blocked", Task{Status: TaskStatusBlocked}, false},
		{"in progress", Task{Status: TaskStatusInProgress}, false},
		{"completed", Task{Status: TaskStatusCompleted}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.Claimable(now); got != tt.want {
				t.Errorf("Claimable() = %v, want %v", got, tt.want)
			}
		})
	}
}
