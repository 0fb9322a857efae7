package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/kelsos/cvat-cli/internal/apierr"
	"github.com/kelsos/cvat-cli/internal/logger"
	"github.com/kelsos/cvat-cli/internal/models"
)

// Upload attaches resources to an existing task. Local files are streamed one
// at a time; share paths and remote URLs are sent as form fields.
func (s *TaskService) Upload(ctx context.Context, taskID int, resourceType models.ResourceType, resources []string) error {
	if len(resources) == 0 {
		return &apierr.ValidationError{Field: "resources", Reason: "at least one resource is required"}
	}

	dataURL := s.endpoints.TaskData(taskID)

	var err error
	switch resourceType {
	case models.ResourceLocal:
		err = s.uploadLocal(ctx, dataURL, resources)
	case models.ResourceShare, models.ResourceRemote:
		err = s.client.PostForm(ctx, dataURL, indexedForm(resourceType.FieldPrefix(), resources))
	default:
		return &apierr.ValidationError{Field: "resource type", Value: resourceType.String(), Reason: "unsupported"}
	}
	if err != nil {
		return fmt.Errorf("failed to upload data to task %d: %w", taskID, err)
	}

	logger.Info("Uploaded %d %s resource(s) to task %d", len(resources), resourceType, taskID)
	return nil
}

func indexedForm(prefix string, values []string) url.Values {
	form := url.Values{}
	for i, value := range values {
		form.Set(fmt.Sprintf("%s[%d]", prefix, i), value)
	}
	return form
}

// uploadLocal streams the files through a pipe so that at most one of them is
// open at any time.
func (s *TaskService) uploadLocal(ctx context.Context, dataURL string, paths []string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return &apierr.ValidationError{Field: "resource", Value: path, Reason: err.Error()}
		}
		if info.IsDir() {
			return &apierr.ValidationError{Field: "resource", Value: path, Reason: "is a directory"}
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	prefix := models.ResourceLocal.FieldPrefix()

	var g errgroup.Group
	g.Go(func() error {
		err := writeFileParts(mw, prefix, paths)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
		return err
	})

	postErr := s.client.PostStream(ctx, dataURL, mw.FormDataContentType(), pr)
	// unblocks the writer when the request ended before consuming the body
	pr.Close()

	writeErr := g.Wait()
	if writeErr != nil && !errors.Is(writeErr, io.ErrClosedPipe) {
		return writeErr
	}
	return postErr
}

func writeFileParts(mw *multipart.Writer, prefix string, paths []string) error {
	for i, path := range paths {
		if err := writeFilePart(mw, fmt.Sprintf("%s[%d]", prefix, i), path); err != nil {
			return err
		}
	}
	return nil
}

func writeFilePart(mw *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open resource %s: %w", path, err)
	}
	defer file.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create part for %s: %w", path, err)
	}

	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to stream %s: %w", path, err)
	}
	logger.Debug("Streamed %s as %s", path, field)
	return nil
}
