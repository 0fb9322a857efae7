package client

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoints builds the URLs of the CVAT REST API resources
type Endpoints struct {
	base string
}

// NewEndpoints creates a resolver for the API rooted at baseURL (e.g. http://localhost:8080/api/v1)
func NewEndpoints(baseURL string) Endpoints {
	return Endpoints{base: strings.TrimRight(baseURL, "/")}
}

func (e Endpoints) Tasks() string {
	return e.base + "/tasks"
}

func (e Endpoints) TasksPage(page int) string {
	return fmt.Sprintf("%s?page=%d", e.Tasks(), page)
}

func (e Endpoints) Task(taskID int) string {
	return fmt.Sprintf("%s/%d", e.Tasks(), taskID)
}

func (e Endpoints) TaskData(taskID int) string {
	return e.Task(taskID) + "/data"
}

func (e Endpoints) TaskFrame(taskID, frameID int) string {
	return fmt.Sprintf("%s/frames/%d", e.Task(taskID), frameID)
}

// TaskAnnotations is the export endpoint of a task; the server names the dump after name
func (e Endpoints) TaskAnnotations(taskID int, name, format string) string {
	query := url.Values{"format": []string{format}}
	return fmt.Sprintf("%s/annotations/%s?%s", e.Task(taskID), url.PathEscape(name), query.Encode())
}

// DownloadURL turns a ready export URL into the URL that returns the artifact
func DownloadURL(exportURL string) string {
	return BuildURLWithParams(exportURL, map[string]string{"action": "download"})
}

// BuildURLWithParams properly builds a URL with query parameters.
// Existing parameters keep their position; new ones are appended in key order.
func BuildURLWithParams(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}

	parts := strings.SplitN(endpoint, "?", 2)
	baseURL := parts[0]

	existing := ""
	if len(parts) > 1 {
		existing = parts[1]
	}

	added := url.Values{}
	for key, value := range params {
		added.Set(key, value)
	}

	if existing == "" {
		return baseURL + "?" + added.Encode()
	}
	return baseURL + "?" + existing + "&" + added.Encode()
}
