package models

import (
	"encoding/json"
)

// Job is a unit of annotation work inside a segment
type Job struct {
	ID     int    `json:"id"`
	Status string `json:"status,omitempty"`
}

// Segment is a frame range of a task and the jobs covering it
type Segment struct {
	StartFrame int   `json:"start_frame"`
	StopFrame  int   `json:"stop_frame"`
	Jobs       []Job `json:"jobs"`
}

// Task is a task record as returned by the server.
// Raw keeps the record exactly as received.
type Task struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	Size         int             `json:"size,omitempty"`
	Mode         string          `json:"mode,omitempty"`
	Status       string          `json:"status,omitempty"`
	BugTracker   string          `json:"bug_tracker,omitempty"`
	ImageQuality int             `json:"image_quality,omitempty"`
	FrameFilter  string          `json:"frame_filter,omitempty"`
	CreatedDate  string          `json:"created_date,omitempty"`
	Segments     []Segment       `json:"segments"`
	Raw          json.RawMessage `json:"-"`
}

func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*t = Task(decoded)
	t.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// JobIDs returns the ids of all jobs across the task's segments, in order
func (t Task) JobIDs() []int {
	var ids []int
	for _, segment := range t.Segments {
		for _, job := range segment.Jobs {
			ids = append(ids, job.ID)
		}
	}
	return ids
}

// TaskPage represents one page of the tasks listing
type TaskPage = Page[Task]

// TaskParams holds the parameters shared by every task created in one run
type TaskParams struct {
	Labels       json.RawMessage
	BugTracker   string
	ImageQuality int
	FrameFilter  string
	ResourceType ResourceType
}

// CreateTaskRequest is the body of POST /tasks
type CreateTaskRequest struct {
	Name         string          `json:"name"`
	Labels       json.RawMessage `json:"labels"`
	BugTracker   string          `json:"bug_tracker"`
	ImageQuality int             `json:"image_quality"`
	FrameFilter  string          `json:"frame_filter"`
}

// NewCreateTaskRequest builds the creation body for a task called name
func NewCreateTaskRequest(name string, params TaskParams) CreateTaskRequest {
	labels := params.Labels
	if len(labels) == 0 {
		labels = json.RawMessage("[]")
	}
	return CreateTaskRequest{
		Name:         name,
		Labels:       labels,
		BugTracker:   params.BugTracker,
		ImageQuality: params.ImageQuality,
		FrameFilter:  params.FrameFilter,
	}
}
