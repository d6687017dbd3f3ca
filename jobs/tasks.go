package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSessionCleanup prunes session keys that lost their expiry.
	TaskTypeSessionCleanup = "sessions:cleanup"
	// TaskTypeAuthzIntegrity verifies the core permission seed is intact.
	TaskTypeAuthzIntegrity = "authz:integrity"
)

// NewSessionCleanupTask constructs a session cleanup task.
func NewSessionCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionCleanup, nil)
}

// NewAuthzIntegrityTask constructs an authorization integrity task.
func NewAuthzIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskTypeAuthzIntegrity, nil)
}
