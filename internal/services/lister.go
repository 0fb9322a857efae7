package services

import (
	"context"
	"fmt"

	"github.com/kelsos/cvat-cli/internal/logger"
	"github.com/kelsos/cvat-cli/internal/models"
)

// ListTasks follows the listing's next links and returns every task, in page order
func (s *TaskService) ListTasks(ctx context.Context) ([]models.Task, error) {
	url := s.endpoints.Tasks()
	page := 1
	tasks := make([]models.Task, 0)

	for {
		var response models.TaskPage
		if err := s.client.GetJSON(ctx, url, &response); err != nil {
			return nil, fmt.Errorf("failed to fetch tasks page %d: %w", page, err)
		}

		tasks = append(tasks, response.Results...)
		logger.Debug("Fetched %d tasks from page %d", len(response.Results), page)

		if !response.HasNext() {
			return tasks, nil
		}

		page++
		url = s.endpoints.TasksPage(page)
	}
}

// TaskNames returns the set of names of all existing tasks
func (s *TaskService) TaskNames(ctx context.Context) (map[string]bool, error) {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		names[task.Name] = true
	}
	return names, nil
}
