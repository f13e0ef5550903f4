package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/pbc1017/hollon-ai-sub003/internal/delegate"
	"github.com/pbc1017/hollon-ai-sub003/internal/escalate"
	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// CleanupHook returns a parent-completed hook that reclaims the
// parent's temporary workers and announces each removal on the event
// stream.
func CleanupHook(eng *delegate.Engine, emitter *EventEmitter) func(parentTaskID string) {
	return func(parentTaskID string) {
		removed, err := eng.CleanupForParent(parentTaskID)
		if err != nil {
			log.Printf("[orchestrator] cleanup temp workers for %s: %v", parentTaskID, err)
		}
		if emitter == nil {
			return
		}
		for _, id := range removed {
			emitter.Emit(Event{
				Type:     EventWorkerRemoved,
				TaskID:   parentTaskID,
				WorkerID: id,
				Message:  "temporary worker reclaimed",
			})
		}
	}
}

// CeilingHook returns a failure-ceiling hook that releases the task to
// the failing worker's team and announces the escalation on the event
// stream.
func CeilingHook(ladder *escalate.Ladder, emitter *EventEmitter) func(task *models.Task) {
	return func(task *models.Task) {
		reason := fmt.Sprintf("failure ceiling reached (%d consecutive): %s",
			task.ConsecutiveFailures, task.Error)
		out, err := ladder.Escalate(context.Background(), escalate.Request{
			TaskID:   task.ID,
			WorkerID: task.AssignedHollonID,
			Level:    escalate.LevelTeam,
			Reason:   reason,
		})
		if err != nil {
			log.Printf("[orchestrator] auto-escalate task %s: %v", task.ID, err)
			return
		}
		if emitter != nil {
			emitter.Emit(Event{
				Type:      EventEscalation,
				TaskID:    task.ID,
				TaskTitle: task.Title,
				WorkerID:  task.AssignedHollonID,
				Message:   fmt.Sprintf("released to team %s: %s", out.Task.AssignedTeamID, reason),
			})
		}
	}
}
