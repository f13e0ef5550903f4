package models

import "errors"

// Invariant violations are usage errors: the offending operation must abort
// with no partial state change.
var (
	// ErrBothAssignees indicates a task had both a worker and a team assignee.
	ErrBothAssignees = errors.New("task cannot be assigned to both a hollon and a team")
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidLifecycle indicates an unknown lifecycle value.
	ErrInvalidLifecycle = errors.New("invalid lifecycle")
	// ErrDepthMismatch indicates a depth inconsistent with parentage.
	ErrDepthMismatch = errors.New("depth inconsistent with parent")
	// ErrDepthLimit indicates an attempt to create a worker past the depth cap.
	ErrDepthLimit = errors.New("temporary workers must be exactly depth 1")
	// ErrNotRootWorker indicates a non-root worker tried to spawn a sub-worker.
	ErrNotRootWorker = errors.New("only depth-0 permanent workers may spawn temporary workers")
	// ErrPermanentWorker indicates a permanent worker was passed to a
	// temporary-only delete path.
	ErrPermanentWorker = errors.New("refusing to delete a permanent worker")
	// ErrOrphanTemporary indicates a temporary worker without a creator.
	ErrOrphanTemporary = errors.New("temporary worker has no creator")
)
