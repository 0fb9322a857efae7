package models

import (
	"fmt"
	"time"
)

type ItemStatus string

const (
	ItemCreated ItemStatus = "created"
	ItemDumped  ItemStatus = "dumped"
	ItemSkipped ItemStatus = "skipped"
	ItemFailed  ItemStatus = "failed"
)

// ItemResult is the outcome of one item of a batch operation
type ItemResult struct {
	Item     string     `json:"item"`
	TaskID   int        `json:"task_id,omitempty"`
	TaskName string     `json:"task_name,omitempty"`
	Path     string     `json:"path,omitempty"`
	Status   ItemStatus `json:"status"`
	Reason   string     `json:"reason,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// BatchReport collects the per-item outcomes of a mass operation
type BatchReport struct {
	Operation  string       `json:"operation"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Aborted    bool         `json:"aborted"`
	Items      []ItemResult `json:"items"`
}

func NewBatchReport(operation string) *BatchReport {
	return &BatchReport{
		Operation: operation,
		StartedAt: time.Now().UTC(),
		Items:     []ItemResult{},
	}
}

func (r *BatchReport) Add(result ItemResult) {
	r.Items = append(r.Items, result)
}

// Finish stamps the report; aborted marks a batch stopped by a failure
func (r *BatchReport) Finish(aborted bool) {
	r.FinishedAt = time.Now().UTC()
	r.Aborted = aborted
}

func (r *BatchReport) Count(status ItemStatus) int {
	n := 0
	for _, item := range r.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

func (r *BatchReport) Summary() string {
	return fmt.Sprintf("%s: %d created, %d dumped, %d skipped, %d failed",
		r.Operation, r.Count(ItemCreated), r.Count(ItemDumped), r.Count(ItemSkipped), r.Count(ItemFailed))
}
