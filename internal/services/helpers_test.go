package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/kelsos/cvat-cli/internal/client"
	"github.com/kelsos/cvat-cli/internal/config"
)

func newAPIClient(baseURL string) *client.APIClient {
	cfg := config.NewConfig()
	cfg.BaseURL = baseURL + "/api/v1"
	cfg.HTTPRetries = 1
	return client.NewAPIClient(cfg)
}

// newTestTaskService starts handler and returns a task service talking to it
func newTestTaskService(t *testing.T, handler http.Handler, exporter Exporter) *TaskService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	apiClient := newAPIClient(srv.URL)
	return NewTaskService(apiClient, apiClient.Endpoints(), exporter)
}

// pagedTasks serves GET /api/v1/tasks from pre-built pages and counts requests
type pagedTasks struct {
	mu       sync.Mutex
	pages    [][]map[string]interface{}
	requests int
	failPage int
}

func newPagedTasks(pageSizes []int) *pagedTasks {
	p := &pagedTasks{}
	id := 1
	for page, size := range pageSizes {
		tasks := make([]map[string]interface{}, 0, size)
		for i := 0; i < size; i++ {
			tasks = append(tasks, map[string]interface{}{
				"id":       id,
				"name":     fmt.Sprintf("p%d-%d", page+1, i),
				"segments": []interface{}{},
			})
			id++
		}
		p.pages = append(p.pages, tasks)
	}
	return p
}

func (p *pagedTasks) expectedNames() []string {
	names := make([]string, 0)
	for _, page := range p.pages {
		for _, task := range page {
			names = append(names, task["name"].(string))
		}
	}
	return names
}

func (p *pagedTasks) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.Method != http.MethodGet || r.URL.Path != "/api/v1/tasks" {
		http.NotFound(w, r)
		return
	}
	p.requests++

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, _ = strconv.Atoi(raw)
	}
	if page == p.failPage {
		http.Error(w, "boom", http.StatusForbidden)
		return
	}
	if page < 1 || page > len(p.pages) {
		http.Error(w, `{"detail": "Invalid page."}`, http.StatusNotFound)
		return
	}

	var next interface{}
	if page < len(p.pages) {
		next = fmt.Sprintf("http://%s/api/v1/tasks?page=%d", r.Host, page+1)
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"count":    len(p.expectedNames()),
		"next":     next,
		"previous": nil,
		"results":  p.pages[page-1],
	})
}
