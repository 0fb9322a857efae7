package services

import (
	"github.com/kelsos/cvat-cli/internal/async"
	"github.com/kelsos/cvat-cli/internal/client"
	"github.com/kelsos/cvat-cli/internal/config"
)

// CVATService wires the API client, the export poller and the task and bulk
// services for one CLI invocation
type CVATService struct {
	Tasks *TaskService
	Bulk  *BulkService
}

// NewCVATService creates a new service with all dependencies
func NewCVATService(cfg *config.Config) *CVATService {
	apiClient := client.NewAPIClient(cfg)
	endpoints := apiClient.Endpoints()
	exporter := async.NewExportPoller(apiClient, endpoints, cfg.Poll)
	tasks := NewTaskService(apiClient, endpoints, exporter)

	return &CVATService{
		Tasks: tasks,
		Bulk:  NewBulkService(tasks, exporter),
	}
}
