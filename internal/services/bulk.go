package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kelsos/cvat-cli/internal/logger"
	"github.com/kelsos/cvat-cli/internal/models"
)

// TaskAPI is what the bulk workflows need from the task operations
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	TaskNames(ctx context.Context) (map[string]bool, error)
	CreateTask(ctx context.Context, name string, params models.TaskParams, resources []string) (int, error)
}

// BatchObserver is notified while a batch runs
type BatchObserver interface {
	BatchStarted(operation string, items []string)
	ItemStarted(item string)
	ItemFinished(result models.ItemResult)
}

type noopObserver struct{}

func (noopObserver) BatchStarted(string, []string) {}
func (noopObserver) ItemStarted(string) {}
func (noopObserver) ItemFinished(models.ItemResult) {}

// BulkService runs the mass-create and mass-dump workflows
type BulkService struct {
	tasks           TaskAPI
	exporter        Exporter
	observer        BatchObserver
	continueOnError bool
}

// NewBulkService creates a bulk service. By default the first unexpected
// failure aborts the batch.
func NewBulkService(tasks TaskAPI, exporter Exporter) *BulkService {
	return &BulkService{
		tasks:    tasks,
		exporter: exporter,
		observer: noopObserver{},
	}
}

// SetObserver registers an observer for batch progress; nil removes it
func (s *BulkService) SetObserver(observer BatchObserver) {
	if observer == nil {
		observer = noopObserver{}
	}
	s.observer = observer
}

// SetContinueOnError makes failed items get recorded instead of aborting the batch
func (s *BulkService) SetContinueOnError(enabled bool) {
	s.continueOnError = enabled
}

// MassDumpOptions configures a mass dump
type MassDumpOptions struct {
	Format    string
	Template  string
	Force     bool
	Separator string
}

// MassCreate creates one task per video resource, named after the file stem.
// With skipExisting, resources whose name already belongs to a task are skipped.
func (s *BulkService) MassCreate(ctx context.Context, params models.TaskParams, resources []string, skipExisting bool) (*models.BatchReport, error) {
	report := models.NewBatchReport("mass_create")

	existing := map[string]bool{}
	if skipExisting {
		names, err := s.tasks.TaskNames(ctx)
		if err != nil {
			report.Finish(true)
			return report, fmt.Errorf("failed to list existing tasks: %w", err)
		}
		existing = names
	}

	s.observer.BatchStarted(report.Operation, resources)

	for _, resource := range resources {
		name := ResourceStem(resource)
		s.observer.ItemStarted(resource)

		result := models.ItemResult{Item: resource, TaskName: name}
		switch {
		case !IsVideoResource(resource):
			logger.Warn("Not mp4 or MOV file in resources (%s). Skipping", name)
			result.Status = models.ItemSkipped
			result.Reason = "not a video container"
		case existing[name]:
			logger.Info("Task %s already exists. Skipping.", name)
			result.Status = models.ItemSkipped
			result.Reason = "task already exists"
		default:
			taskID, err := s.tasks.CreateTask(ctx, name, params, []string{resource})
			result.TaskID = taskID
			if err != nil {
				result.Status = models.ItemFailed
				result.Error = err.Error()
				if abortErr := s.recordFailure(report, result, err); abortErr != nil {
					return report, abortErr
				}
				continue
			}
			result.Status = models.ItemCreated
			if skipExisting {
				existing[name] = true
			}
		}

		report.Add(result)
		s.observer.ItemFinished(result)
	}

	return s.finish(report)
}

// MassDump dumps the annotations of the given tasks to paths built from a template
func (s *BulkService) MassDump(ctx context.Context, taskIDs []int, opts MassDumpOptions) (*models.BatchReport, error) {
	report := models.NewBatchReport("mass_dump")

	template, err := ParseDumpTemplate(opts.Template)
	if err != nil {
		report.Finish(true)
		return report, err
	}

	logger.Info("Fetching tasks data...")
	tasks, err := s.tasks.ListTasks(ctx)
	if err != nil {
		report.Finish(true)
		return report, fmt.Errorf("failed to list tasks: %w", err)
	}

	names := make(map[int]string, len(tasks))
	for _, task := range tasks {
		names[task.ID] = task.Name
	}

	items := make([]string, len(taskIDs))
	for i, taskID := range taskIDs {
		items[i] = strconv.Itoa(taskID)
	}
	s.observer.BatchStarted(report.Operation, items)

	for i, taskID := range taskIDs {
		s.observer.ItemStarted(items[i])
		result, err := s.dumpOne(ctx, taskID, items[i], names, template, opts)
		if err != nil {
			if abortErr := s.recordFailure(report, result, err); abortErr != nil {
				return report, abortErr
			}
			continue
		}
		report.Add(result)
		s.observer.ItemFinished(result)
	}

	return s.finish(report)
}

func (s *BulkService) dumpOne(ctx context.Context, taskID int, item string, names map[int]string, template DumpTemplate, opts MassDumpOptions) (models.ItemResult, error) {
	result := models.ItemResult{Item: item, TaskID: taskID}

	name, ok := names[taskID]
	if !ok {
		logger.Warn("No task with id %d. Skipping.", taskID)
		result.Status = models.ItemSkipped
		result.Reason = "task not found"
		return result, nil
	}
	result.TaskName = name

	path, ok := template.Expand(taskID, name, opts.Separator)
	if !ok {
		logger.Warn("Task name %s has too few parts separated by %q for template %s, skipping task %d.", name, opts.Separator, template, taskID)
		result.Status = models.ItemSkipped
		result.Reason = "task name does not match template"
		return result, nil
	}
	result.Path = path

	if _, err := os.Stat(path); err == nil && !opts.Force {
		logger.Warn("File %s exists, skipping dump task with id %d.", path, taskID)
		result.Status = models.ItemSkipped
		result.Reason = "file exists"
		return result, nil
	}

	if parent := filepath.Dir(path); parent != "" {
		if err := os.MkdirAll(parent, 0755); err != nil {
			result.Status = models.ItemFailed
			result.Error = err.Error()
			return result, fmt.Errorf("failed to create directory %s: %w", parent, err)
		}
	}

	if err := s.exporter.Export(ctx, taskID, name, opts.Format, path); err != nil {
		result.Status = models.ItemFailed
		result.Error = err.Error()
		return result, err
	}

	result.Status = models.ItemDumped
	return result, nil
}

// recordFailure stores a failed item. It returns the error that aborts the
// batch, or nil when the batch should go on.
func (s *BulkService) recordFailure(report *models.BatchReport, result models.ItemResult, err error) error {
	report.Add(result)
	s.observer.ItemFinished(result)

	if s.continueOnError && ctxErr(err) == nil {
		logger.Error("%s failed for %s: %v", report.Operation, result.Item, err)
		return nil
	}

	report.Finish(true)
	return fmt.Errorf("%s aborted at %s: %w", report.Operation, result.Item, err)
}

func (s *BulkService) finish(report *models.BatchReport) (*models.BatchReport, error) {
	report.Finish(false)
	logger.Info("%s", report.Summary())

	if failed := report.Count(models.ItemFailed); failed > 0 {
		return report, fmt.Errorf("%s: %d of %d items failed", report.Operation, failed, len(report.Items))
	}
	return report, nil
}

// ctxErr returns the context error wrapped in err, if any
func ctxErr(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	default:
		return nil
	}
}
