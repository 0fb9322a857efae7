package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/cvat-cli/internal/apierr"
	"github.com/kelsos/cvat-cli/internal/models"
)

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) Export(ctx context.Context, taskID int, taskName, format, dest string) error {
	args := m.Called(ctx, taskID, taskName, format, dest)
	return args.Error(0)
}

func TestCreateTaskPostsBodyThenUploads(t *testing.T) {
	var (
		mu          sync.Mutex
		createBody  map[string]interface{}
		remoteField string
	)

	service := newTestTaskService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/tasks":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&createBody))
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id": 42, "name": "clip", "segments": []}`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/tasks/42/data":
			require.NoError(t, r.ParseForm())
			remoteField = r.PostForm.Get("remote_files[0]")
			w.WriteHeader(http.StatusAccepted)
		default:
			http.NotFound(w, r)
		}
	}), nil)

	params := models.TaskParams{
		Labels:       json.RawMessage(`[{"name": "car"}]`),
		BugTracker:   "https://bugs/7",
		ImageQuality: 70,
		FrameFilter:  "step=3",
		ResourceType: models.ResourceRemote,
	}
	taskID, err := service.CreateTask(context.Background(), "clip", params, []string{"https://media/clip.mp4"})

	require.NoError(t, err)
	assert.Equal(t, 42, taskID)
	assert.Equal(t, "clip", createBody["name"])
	assert.Equal(t, "https://bugs/7", createBody["bug_tracker"])
	assert.Equal(t, float64(70), createBody["image_quality"])
	assert.Equal(t, "step=3", createBody["frame_filter"])
	assert.Equal(t, []interface{}{map[string]interface{}{"name": "car"}}, createBody["labels"])
	assert.Equal(t, "https://media/clip.mp4", remoteField)
}

func TestCreateTaskFailureIsTransportError(t *testing.T) {
	service := newTestTaskService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"name": ["required"]}`, http.StatusBadRequest)
	}), nil)

	_, err := service.CreateTask(context.Background(), "", models.TaskParams{}, []string{"a.mp4"})

	var te *apierr.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
}

func TestDeleteTasksTreatsNotFoundAsDone(t *testing.T) {
	var deleted []string
	service := newTestTaskService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		deleted = append(deleted, r.URL.Path)
		if r.URL.Path == "/api/v1/tasks/2" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}), nil)

	require.NoError(t, service.DeleteTasks(context.Background(), []int{1, 2, 3}))
	assert.Equal(t, []string{"/api/v1/tasks/1", "/api/v1/tasks/2", "/api/v1/tasks/3"}, deleted)

	require.NoError(t, service.DeleteTasks(context.Background(), []int{2}))
}

func TestDeleteTasksAbortsOnOtherFailures(t *testing.T) {
	var deleted []string
	service := newTestTaskService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deleted = append(deleted, r.URL.Path)
		if r.URL.Path == "/api/v1/tasks/2" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}), nil)

	err := service.DeleteTasks(context.Background(), []int{1, 2, 3})

	assert.Equal(t, http.StatusForbidden, apierr.StatusCode(err))
	assert.Equal(t, []string{"/api/v1/tasks/1", "/api/v1/tasks/2"}, deleted)
}

func TestDumpTaskResolvesName(t *testing.T) {
	exporter := &mockExporter{}
	service := newTestTaskService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/tasks/9", r.URL.Path)
		_, _ = io.WriteString(w, `{"id": 9, "name": "tram_day_1", "segments": []}`)
	}), exporter)

	dest := filepath.Join(t.TempDir(), "out.xml")
	exporter.On("Export", mock.Anything, 9, "tram_day_1", "CVAT XML 1.1 for images", dest).Return(nil).Once()

	require.NoError(t, service.DumpTask(context.Background(), 9, "CVAT XML 1.1 for images", dest))
	exporter.AssertExpectations(t)
}

func TestDumpTaskUnknownTask(t *testing.T) {
	exporter := &mockExporter{}
	service := newTestTaskService(t, http.HandlerFunc(http.NotFound), exporter)

	err := service.DumpTask(context.Background(), 9, "CVAT XML 1.1 for images", filepath.Join(t.TempDir(), "x"))

	assert.True(t, apierr.IsNotFound(err))
	exporter.AssertNotCalled(t, "Export", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func writeTempFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}
