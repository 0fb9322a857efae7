package services

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/kelsos/cvat-cli/internal/apierr"
	"github.com/kelsos/cvat-cli/internal/client"
	"github.com/kelsos/cvat-cli/internal/logger"
	"github.com/kelsos/cvat-cli/internal/models"
)

// Transport is the subset of the API client used by task operations
type Transport interface {
	GetJSON(ctx context.Context, url string, result interface{}) error
	PostJSON(ctx context.Context, url string, body interface{}, result interface{}) error
	PostForm(ctx context.Context, url string, form url.Values) error
	PostStream(ctx context.Context, url, contentType string, r io.Reader) error
	Delete(ctx context.Context, url string) error
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// Exporter retrieves annotation dumps
type Exporter interface {
	Export(ctx context.Context, taskID int, taskName, format, dest string) error
}

// TaskService handles single-task operations
type TaskService struct {
	client    Transport
	endpoints client.Endpoints
	exporter  Exporter
}

// NewTaskService creates a new task service
func NewTaskService(transport Transport, endpoints client.Endpoints, exporter Exporter) *TaskService {
	return &TaskService{
		client:    transport,
		endpoints: endpoints,
		exporter:  exporter,
	}
}

// GetTask retrieves a single task
func (s *TaskService) GetTask(ctx context.Context, taskID int) (*models.Task, error) {
	var task models.Task
	if err := s.client.GetJSON(ctx, s.endpoints.Task(taskID), &task); err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}
	return &task, nil
}

// CreateTask creates a task called name and attaches resources to it
func (s *TaskService) CreateTask(ctx context.Context, name string, params models.TaskParams, resources []string) (int, error) {
	request := models.NewCreateTaskRequest(name, params)

	var created models.Task
	if err := s.client.PostJSON(ctx, s.endpoints.Tasks(), request, &created); err != nil {
		return 0, fmt.Errorf("failed to create task %s: %w", name, err)
	}
	logger.Info("Created task ID: %d NAME: %s", created.ID, created.Name)

	if err := s.Upload(ctx, created.ID, params.ResourceType, resources); err != nil {
		return created.ID, err
	}
	return created.ID, nil
}

// DeleteTasks deletes the given tasks in order. Tasks that do not exist are
// skipped; any other failure stops the run.
func (s *TaskService) DeleteTasks(ctx context.Context, taskIDs []int) error {
	for _, taskID := range taskIDs {
		err := s.client.Delete(ctx, s.endpoints.Task(taskID))
		switch {
		case err == nil:
			logger.Info("Task ID %d deleted", taskID)
		case apierr.IsNotFound(err):
			logger.Info("Task ID %d not found", taskID)
		default:
			return fmt.Errorf("failed to delete task %d: %w", taskID, err)
		}
	}
	return nil
}

// DumpTask downloads the annotations of a single task in format to filename
func (s *TaskService) DumpTask(ctx context.Context, taskID int, format, filename string) error {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	return s.exporter.Export(ctx, task.ID, task.Name, format, filename)
}
