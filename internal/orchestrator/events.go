// Package orchestrator runs the per-worker control loops that pull,
// execute, delegate and complete tasks.
package orchestrator

import (
	"log"
	"sync/atomic"
	"time"
)

// EventType identifies a kind of engine event.
type EventType string

const (
	// EventTaskClaimed indicates a worker claimed a task.
	EventTaskClaimed EventType = "task_claimed"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed and was backed off.
	EventTaskFailed EventType = "task_failed"
	// EventTaskDelegated indicates a complex task was split into subtasks.
	EventTaskDelegated EventType = "task_delegated"
	// EventEpicDistributed indicates a team epic was fanned out.
	EventEpicDistributed EventType = "epic_distributed"
	// EventWorkerCreated indicates a temporary worker was spawned.
	EventWorkerCreated EventType = "worker_created"
	// EventWorkerRemoved indicates a temporary worker was reclaimed.
	EventWorkerRemoved EventType = "worker_removed"
	// EventEscalation indicates a worker raised an escalation.
	EventEscalation EventType = "escalation"
	// EventRunnerStopped indicates the runner has shut down.
	EventRunnerStopped EventType = "runner_stopped"
)

// Event is one engine occurrence, consumed by the dashboard and logs.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the related task, if any.
	TaskID string
	// TaskTitle is the related task's title, if any.
	TaskTitle string
	// WorkerID is the related worker, if any.
	WorkerID string
	// Message provides additional context.
	Message string
	// Error holds failure details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// EventEmitter fans events out to a single subscriber channel.
// Emission never blocks the engine for long: a full channel drops the
// event after a short grace period.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEventEmitter creates an EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event to the events channel.
// If the channel is full, it tries with a timeout before dropping the event.
func (e *EventEmitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
		// Channel full, try with timeout
	}

	select {
	case e.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[orchestrator] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events for subscribers.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Call only after all emitters stop.
func (e *EventEmitter) Close() {
	close(e.events)
}
