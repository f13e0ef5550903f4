// Package tui provides the live terminal dashboard for the Hollon engine.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pbc1017/hollon-ai-sub003/internal/orchestrator"
	"github.com/pbc1017/hollon-ai-sub003/internal/store"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// EventMsg wraps an engine event for the dashboard.
type EventMsg struct {
	Event orchestrator.Event
}

// tickMsg triggers a store snapshot refresh.
type tickMsg time.Time

// snapshotMsg carries fresh store state into the model.
type snapshotMsg struct {
	counts  map[models.TaskStatus]int
	workers []*models.Worker
	err     error
}

// LogEntry is one rendered event in the log panel.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// Dash is the bubbletea model for `hollon dash`. It polls the store for
// task counts and the worker roster, and streams engine events into a
// scrollable log.
type Dash struct {
	tasks   store.TaskStore
	workers store.WorkerStore
	orgID   string

	counts     map[models.TaskStatus]int
	roster     []*models.Worker
	logs       []LogEntry
	viewport   viewport.Model
	width      int
	height     int
	ready      bool
	quitting   bool
	storeError string

	headerStyle lipgloss.Style
	labelStyle  lipgloss.Style
	countStyle  lipgloss.Style
	okStyle     lipgloss.Style
	warnStyle   lipgloss.Style
	errStyle    lipgloss.Style
	dimStyle    lipgloss.Style
}

// maxLogEntries bounds the in-memory event log.
const maxLogEntries = 500

// refreshInterval is how often the dashboard re-reads the store.
const refreshInterval = time.Second

// NewDash creates a dashboard model backed by the given stores.
func NewDash(tasks store.TaskStore, workers store.WorkerStore, orgID string) *Dash {
	return &Dash{
		tasks:   tasks,
		workers: workers,
		orgID:   orgID,
		counts:  make(map[models.TaskStatus]int),

		headerStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4")),
		labelStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12),
		countStyle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		okStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		warnStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		errStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		dimStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
	}
}

// NewProgram wraps the dashboard in a tea.Program with the alt screen.
func NewProgram(d *Dash) *tea.Program {
	return tea.NewProgram(d, tea.WithAltScreen())
}

// Init implements tea.Model.
func (d *Dash) Init() tea.Cmd {
	return tea.Batch(d.refresh, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh reads a fresh snapshot from the store.
func (d *Dash) refresh() tea.Msg {
	counts, err := d.tasks.CountTasksByStatus()
	if err != nil {
		return snapshotMsg{err: err}
	}
	roster, err := d.workers.ListWorkersByOrg(d.orgID)
	if err != nil {
		return snapshotMsg{err: err}
	}
	return snapshotMsg{counts: counts, workers: roster}
}

// Update implements tea.Model.
func (d *Dash) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			d.quitting = true
			return d, tea.Quit
		}
		var cmd tea.Cmd
		d.viewport, cmd = d.viewport.Update(msg)
		return d, cmd

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		logHeight := d.height - d.chromeHeight()
		if logHeight < 3 {
			logHeight = 3
		}
		if !d.ready {
			d.viewport = viewport.New(d.width, logHeight)
			d.ready = true
		} else {
			d.viewport.Width = d.width
			d.viewport.Height = logHeight
		}
		d.viewport.SetContent(d.renderLogs())

	case tickMsg:
		return d, tea.Batch(d.refresh, tick())

	case snapshotMsg:
		if msg.err != nil {
			d.storeError = msg.err.Error()
		} else {
			d.storeError = ""
			d.counts = msg.counts
			d.roster = msg.workers
		}

	case EventMsg:
		d.appendEvent(msg.Event)
		if d.ready {
			atBottom := d.viewport.AtBottom()
			d.viewport.SetContent(d.renderLogs())
			if atBottom {
				d.viewport.GotoBottom()
			}
		}
	}

	return d, nil
}

// chromeHeight is the number of lines used outside the log viewport.
func (d *Dash) chromeHeight() int {
	// header + counts + workers header + roster + footer
	return 7 + len(d.roster)
}

func (d *Dash) appendEvent(ev orchestrator.Event) {
	level := "INFO"
	if ev.Error != nil {
		level = "ERROR"
	}
	msg := string(ev.Type)
	if ev.TaskTitle != "" {
		msg += " " + ev.TaskTitle
	} else if ev.TaskID != "" {
		msg += " " + shortID(ev.TaskID)
	}
	if ev.WorkerID != "" {
		msg += " (worker " + shortID(ev.WorkerID) + ")"
	}
	if ev.Error != nil {
		msg += ": " + ev.Error.Error()
	}
	d.logs = append(d.logs, LogEntry{Timestamp: ev.Timestamp, Level: level, Message: msg})
	if len(d.logs) > maxLogEntries {
		d.logs = d.logs[len(d.logs)-maxLogEntries:]
	}
}

// View implements tea.Model.
func (d *Dash) View() string {
	if d.quitting {
		return ""
	}
	if !d.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(d.headerStyle.Render("HOLLON") + d.dimStyle.Render("  task orchestration dashboard"))
	b.WriteString("\n\n")
	b.WriteString(d.viewCounts())
	b.WriteString("\n")
	b.WriteString(d.viewRoster())
	b.WriteString("\n")
	b.WriteString(d.viewport.View())
	b.WriteString("\n")
	b.WriteString(d.viewFooter())
	return b.String()
}

var statusOrder = []models.TaskStatus{
	models.TaskStatusReady,
	models.TaskStatusBlocked,
	models.TaskStatusInProgress,
	models.TaskStatusInReview,
	models.TaskStatusCompleted,
	models.TaskStatusFailed,
	models.TaskStatusCancelled,
}

func (d *Dash) viewCounts() string {
	parts := make([]string, 0, len(statusOrder))
	for _, st := range statusOrder {
		n := d.counts[st]
		style := d.countStyle
		switch {
		case st == models.TaskStatusFailed && n > 0:
			style = d.errStyle
		case st == models.TaskStatusCompleted && n > 0:
			style = d.okStyle
		case st == models.TaskStatusInProgress && n > 0:
			style = d.warnStyle
		}
		parts = append(parts, fmt.Sprintf("%s %s", style.Render(fmt.Sprintf("%d", n)), d.dimStyle.Render(string(st))))
	}
	return strings.Join(parts, "   ") + "\n"
}

func (d *Dash) viewRoster() string {
	if len(d.roster) == 0 {
		return d.dimStyle.Render("no workers") + "\n"
	}

	roster := make([]*models.Worker, len(d.roster))
	copy(roster, d.roster)
	sort.Slice(roster, func(i, j int) bool { return roster[i].Name < roster[j].Name })

	var b strings.Builder
	b.WriteString(d.headerStyle.Render("Workers") + "\n")
	for _, w := range roster {
		mark := " "
		if w.Lifecycle == models.LifecycleTemporary {
			mark = "~"
		}
		statusStyle := d.dimStyle
		if w.Status == models.WorkerStatusWorking {
			statusStyle = d.warnStyle
		}
		b.WriteString(fmt.Sprintf("  %s%-20s %s\n", mark, w.Name, statusStyle.Render(string(w.Status))))
	}
	return b.String()
}

func (d *Dash) renderLogs() string {
	if len(d.logs) == 0 {
		return d.dimStyle.Render("waiting for events...")
	}
	var b strings.Builder
	for _, entry := range d.logs {
		style := d.dimStyle
		if entry.Level == "ERROR" {
			style = d.errStyle
		}
		b.WriteString(fmt.Sprintf("%s %s\n",
			d.dimStyle.Render(entry.Timestamp.Format("15:04:05")),
			style.Render(entry.Message)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d *Dash) viewFooter() string {
	if d.storeError != "" {
		return d.errStyle.Render("store error: "+d.storeError) + d.dimStyle.Render(" | q to quit")
	}
	return d.dimStyle.Render("↑/↓ scroll events | q to quit")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
