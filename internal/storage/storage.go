package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelsos/cvat-cli/internal/models"
)

// GetAppDataDir returns the application data directory
func GetAppDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	appDataDir := filepath.Join(homeDir, ".cvat-cli")
	if err := os.MkdirAll(appDataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app data directory: %w", err)
	}

	return appDataDir, nil
}

// GetLastReportPath returns where the report of the latest run of operation is kept
func GetLastReportPath(operation string) (string, error) {
	appDataDir, err := GetAppDataDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(appDataDir, fmt.Sprintf("%s_last_report.json", operation)), nil
}

// SaveReport writes report to path as indented JSON, creating parent directories
func SaveReport(path string, report *models.BatchReport) error {
	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batch report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	if err := os.WriteFile(path, append(jsonData, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	return nil
}

// SaveLastReport stores report as the latest run of its operation
func SaveLastReport(report *models.BatchReport) (string, error) {
	path, err := GetLastReportPath(report.Operation)
	if err != nil {
		return "", err
	}
	return path, SaveReport(path, report)
}

// LoadReport reads a report written by SaveReport. A missing file yields nil.
func LoadReport(path string) (*models.BatchReport, error) {
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return nil, nil
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report models.BatchReport
	if err := json.Unmarshal(fileData, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch report: %w", err)
	}

	return &report, nil
}
