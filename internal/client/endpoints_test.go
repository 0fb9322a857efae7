package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpoints(t *testing.T) {
	e := NewEndpoints("http://localhost:8080/api/v1/")

	assert.Equal(t, "http://localhost:8080/api/v1/tasks", e.Tasks())
	assert.Equal(t, "http://localhost:8080/api/v1/tasks?page=3", e.TasksPage(3))
	assert.Equal(t, "http://localhost:8080/api/v1/tasks/12", e.Task(12))
	assert.Equal(t, "http://localhost:8080/api/v1/tasks/12/data", e.TaskData(12))
	assert.Equal(t, "http://localhost:8080/api/v1/tasks/12/frames/40", e.TaskFrame(12, 40))
}

func TestTaskAnnotationsEncoding(t *testing.T) {
	e := NewEndpoints("http://localhost:8080/api/v1")

	got := e.TaskAnnotations(7, "tram 1/left", "CVAT XML 1.1 for images")
	assert.Equal(t, "http://localhost:8080/api/v1/tasks/7/annotations/tram%201%2Fleft?format=CVAT+XML+1.1+for+images", got)
}

func TestDownloadURL(t *testing.T) {
	assert.Equal(t,
		"http://h/api/v1/tasks/7/annotations/t?format=YOLO+ZIP+1.0&action=download",
		DownloadURL("http://h/api/v1/tasks/7/annotations/t?format=YOLO+ZIP+1.0"))
	assert.Equal(t, "http://h/x?action=download", DownloadURL("http://h/x"))
}

func TestBuildURLWithParamsWithoutParams(t *testing.T) {
	assert.Equal(t, "http://h/x?a=1", BuildURLWithParams("http://h/x?a=1", nil))
}
