package tui

import (
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kelsos/cvat-cli/internal/models"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// TaskRows returns one row per task, sorted by task id: job ids, task id, name
func TaskRows(tasks []models.Task) [][]string {
	sorted := make([]models.Task, len(tasks))
	copy(sorted, tasks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	rows := make([][]string, 0, len(sorted))
	for _, task := range sorted {
		jobs := make([]string, 0)
		for _, id := range task.JobIDs() {
			jobs = append(jobs, strconv.Itoa(id))
		}
		rows = append(rows, []string{strings.Join(jobs, ","), strconv.Itoa(task.ID), task.Name})
	}
	return rows
}

// RenderTaskTable renders the task listing printed by the ls command
func RenderTaskTable(tasks []models.Task) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Headers("JOBS", "ID", "NAME").
		Rows(TaskRows(tasks)...).
		String()
}

// ReportRows returns one row per batch item: status, item, task id, detail
func ReportRows(report *models.BatchReport) [][]string {
	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		taskID := ""
		if item.TaskID != 0 {
			taskID = strconv.Itoa(item.TaskID)
		}
		detail := item.Reason
		if item.Error != "" {
			detail = item.Error
		}
		if item.Path != "" && detail == "" {
			detail = item.Path
		}
		rows = append(rows, []string{string(item.Status), item.Item, taskID, detail})
	}
	return rows
}

// RenderReportTable renders a saved batch report
func RenderReportTable(report *models.BatchReport) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 0 && row >= 0 && row < len(report.Items) {
				return tableCellStyle.Foreground(lipgloss.Color(getStatusColor(report.Items[row].Status)))
			}
			return tableCellStyle
		}).
		Headers("STATUS", "ITEM", "TASK", "DETAIL").
		Rows(ReportRows(report)...).
		String()
}
