package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pbc1017/hollon-ai-sub003/internal/orchestrator"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

func TestAppendEvent(t *testing.T) {
	d := NewDash(nil, nil, "org-1")

	d.appendEvent(orchestrator.Event{
		Type:      orchestrator.EventTaskCompleted,
		TaskID:    "11111111-2222-3333-4444-555555555555",
		TaskTitle: "Implement parser",
		WorkerID:  "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		Timestamp: time.Now(),
	})

	if len(d.logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(d.logs))
	}
	entry := d.logs[0]
	if entry.Level != "INFO" {
		t.Errorf("level = %q, want INFO", entry.Level)
	}
	if !strings.Contains(entry.Message, "Implement parser") {
		t.Errorf("message missing title: %q", entry.Message)
	}
	if !strings.Contains(entry.Message, "aaaaaaaa") {
		t.Errorf("message missing short worker id: %q", entry.Message)
	}
}

func TestAppendEvent_ErrorLevel(t *testing.T) {
	d := NewDash(nil, nil, "org-1")

	d.appendEvent(orchestrator.Event{
		Type:      orchestrator.EventTaskFailed,
		TaskID:    "t1",
		Error:     errors.New("brain call timed out"),
		Timestamp: time.Now(),
	})

	if d.logs[0].Level != "ERROR" {
		t.Errorf("level = %q, want ERROR", d.logs[0].Level)
	}
	if !strings.Contains(d.logs[0].Message, "brain call timed out") {
		t.Errorf("message missing error: %q", d.logs[0].Message)
	}
}

func TestAppendEvent_CapsLog(t *testing.T) {
	d := NewDash(nil, nil, "org-1")

	for i := 0; i < maxLogEntries+50; i++ {
		d.appendEvent(orchestrator.Event{Type: orchestrator.EventTaskClaimed, TaskID: "t", Timestamp: time.Now()})
	}

	if len(d.logs) != maxLogEntries {
		t.Errorf("logs = %d, want %d", len(d.logs), maxLogEntries)
	}
}

func TestUpdate_Snapshot(t *testing.T) {
	d := NewDash(nil, nil, "org-1")

	model, _ := d.Update(snapshotMsg{
		counts: map[models.TaskStatus]int{
			models.TaskStatusReady:     3,
			models.TaskStatusCompleted: 7,
		},
		workers: []*models.Worker{
			{ID: "w1", Name: "backend-dev", Status: models.WorkerStatusIdle, Lifecycle: models.LifecyclePermanent},
		},
	})
	d = model.(*Dash)

	if d.counts[models.TaskStatusReady] != 3 {
		t.Errorf("ready count = %d, want 3", d.counts[models.TaskStatusReady])
	}
	if len(d.roster) != 1 {
		t.Errorf("roster = %d, want 1", len(d.roster))
	}

	view := d.viewCounts() + d.viewRoster()
	if !strings.Contains(view, "backend-dev") {
		t.Errorf("view missing worker name:\n%s", view)
	}
}

func TestUpdate_QuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		t.Run(key, func(t *testing.T) {
			d := NewDash(nil, nil, "org-1")
			msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			if key == "ctrl+c" {
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			}
			if key == "esc" {
				msg = tea.KeyMsg{Type: tea.KeyEsc}
			}
			_, cmd := d.Update(msg)
			if cmd == nil {
				t.Fatal("expected quit command")
			}
		})
	}
}
