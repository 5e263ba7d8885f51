package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRegistrySync is the task type for the scheduled invoice registry pull.
	TaskRegistrySync = "invoices:registry_sync"
)

// RegistrySyncPayload parameterises a registry sync task.
type RegistrySyncPayload struct {
	Manual bool `json:"manual"`
}

// NewRegistrySyncTask constructs an Asynq task for a registry pull.
func NewRegistrySyncTask(payload RegistrySyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRegistrySync, data), nil
}
